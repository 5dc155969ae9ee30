package app

import (
	"math/big"

	"github.com/ggonzalez94/nftmp-cli/internal/amount"
	"github.com/ggonzalez94/nftmp-cli/internal/journal"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
	"github.com/ggonzalez94/nftmp-cli/internal/model"
)

func wei(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func ether(v *big.Int) string {
	if v == nil {
		return ""
	}
	return amount.FormatEther(v)
}

func tokenID(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func presentItems(items []marketplace.Item) []model.Item {
	rows := make([]model.Item, 0, len(items))
	for _, it := range items {
		rows = append(rows, presentItem(it))
	}
	return rows
}

func presentItem(it marketplace.Item) model.Item {
	return model.Item{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Image:       it.Image,
		NFTContract: it.NFTContract,
		TokenID:     tokenID(it.TokenID),
		Owner:       it.Owner,
		PriceWei:    wei(it.Price),
		PriceETH:    ether(it.Price),
		OfferOnly:   it.OfferOnly(),
	}
}

func presentForSale(views []marketplace.ForSaleView) []model.Item {
	rows := make([]model.Item, 0, len(views))
	for _, v := range views {
		rows = append(rows, model.Item{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Description,
			Owner:       v.Owner,
			PriceWei:    wei(v.Price),
			PriceETH:    ether(v.Price),
		})
	}
	return rows
}

func presentOfferEligible(views []marketplace.OfferEligibleView) []model.Item {
	rows := make([]model.Item, 0, len(views))
	for _, v := range views {
		rows = append(rows, model.Item{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Description,
			NFTContract: v.NFTContract,
			TokenID:     tokenID(v.TokenID),
			Owner:       v.Owner,
			OfferOnly:   true,
		})
	}
	return rows
}

func presentOwned(views []marketplace.OwnedView) []model.Item {
	rows := make([]model.Item, 0, len(views))
	for _, v := range views {
		rows = append(rows, model.Item{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Description,
			Image:       v.Image,
			TokenID:     tokenID(v.TokenID),
			Owner:       v.Owner,
			PriceWei:    wei(v.Price),
			PriceETH:    ether(v.Price),
			OfferOnly:   marketplace.IsZero(v.Price),
		})
	}
	return rows
}

func presentListable(views []marketplace.ListableView) []model.Token {
	rows := make([]model.Token, 0, len(views))
	for _, v := range views {
		rows = append(rows, model.Token{NFTContract: v.NFTContract, TokenID: tokenID(v.TokenID), Name: v.Name, Description: v.Description, Image: v.Image})
	}
	return rows
}

func presentAddable(views []marketplace.AddableView) []model.Token {
	rows := make([]model.Token, 0, len(views))
	for _, v := range views {
		rows = append(rows, model.Token{TokenID: tokenID(v.TokenID), Name: v.Name, Description: v.Description, Image: v.Image})
	}
	return rows
}

func presentOffers(offers []marketplace.Offer) []model.Offer {
	rows := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		rows = append(rows, model.Offer{
			ItemID:      o.ItemID,
			NFTContract: o.NFTContract,
			TokenID:     tokenID(o.TokenID),
			Offerer:     o.Offerer,
			Seller:      o.Seller,
			AmountWei:   wei(o.Price),
			AmountETH:   ether(o.Price),
			Accepted:    o.IsAccepted,
		})
	}
	return rows
}

func presentCollection(c marketplace.Collection) model.Collection {
	return model.Collection{Address: c.Address, Name: c.Name, Symbol: c.Symbol, Owner: c.Owner}
}

func presentCollections(cols []marketplace.Collection) []model.Collection {
	rows := make([]model.Collection, 0, len(cols))
	for _, c := range cols {
		rows = append(rows, presentCollection(c))
	}
	return rows
}

func presentCollectionViews(views []marketplace.CollectionView) []model.Collection {
	rows := make([]model.Collection, 0, len(views))
	for _, v := range views {
		rows = append(rows, model.Collection{Address: v.Address, Name: v.Name, Symbol: v.Symbol})
	}
	return rows
}

func presentReceipt(r marketplace.Receipt) model.Receipt {
	return model.Receipt{
		Operation:   r.Operation,
		Status:      r.Status,
		Code:        r.Code,
		TxHash:      r.TxHash,
		ItemID:      r.ItemID,
		NFTContract: r.NFTContract,
		TokenID:     tokenID(r.TokenID),
		AmountWei:   wei(r.Amount),
		AmountETH:   ether(r.Amount),
		TokenURI:    r.TokenURI,
		NewOwner:    r.NewOwner,
	}
}

func presentHistory(entries []journal.Entry) []model.HistoryEntry {
	rows := make([]model.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, model.HistoryEntry{
			ID:         e.ID,
			RecordedAt: e.RecordedAt,
			Account:    e.Account,
			Receipt:    presentReceipt(e.Receipt),
			Error:      e.Error,
			DurationMS: e.DurationMS,
		})
	}
	return rows
}
