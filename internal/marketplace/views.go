package marketplace

import "math/big"

// ForSaleView is an item another account can buy outright.
type ForSaleView struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *big.Int `json:"price"`
	Owner       string   `json:"owner"`
}

// OfferEligibleView is an offer-only item another account can bid on.
type OfferEligibleView struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	NFTContract string   `json:"nft_contract"`
	TokenID     *big.Int `json:"token_id"`
	Owner       string   `json:"owner"`
}

type OwnedView struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	TokenID     *big.Int `json:"token_id"`
	Owner       string   `json:"owner"`
	Price       *big.Int `json:"price"`
}

// ListableView is a held NFT in one of the account's collections that the
// marketplace does not track yet.
type ListableView struct {
	TokenID     *big.Int `json:"token_id"`
	NFTContract string   `json:"nft_contract"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
}

type AddableView struct {
	TokenID     *big.Int `json:"token_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
}

type CollectionView struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// ForSale keeps priced items not owned by account.
func ForSale(items []Item, account string) []ForSaleView {
	out := make([]ForSaleView, 0, len(items))
	for _, it := range items {
		if it.OfferOnly() || SameAddress(it.Owner, account) {
			continue
		}
		out = append(out, ForSaleView{ID: it.ID, Name: it.Name, Description: it.Description, Price: it.Price, Owner: it.Owner})
	}
	return out
}

// OfferEligible keeps offer-only items not owned by account.
func OfferEligible(items []Item, account string) []OfferEligibleView {
	out := make([]OfferEligibleView, 0, len(items))
	for _, it := range items {
		if !it.OfferOnly() || SameAddress(it.Owner, account) {
			continue
		}
		out = append(out, OfferEligibleView{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			NFTContract: it.NFTContract,
			TokenID:     it.TokenID,
			Owner:       it.Owner,
		})
	}
	return out
}

func OwnedBy(items []Item, account string) []OwnedView {
	out := make([]OwnedView, 0, len(items))
	for _, it := range items {
		if !SameAddress(it.Owner, account) {
			continue
		}
		out = append(out, OwnedView{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Image:       it.Image,
			TokenID:     it.TokenID,
			Owner:       it.Owner,
			Price:       it.Price,
		})
	}
	return out
}

// Listable keeps NFTs held by account inside collections it owns that have no
// marketplace item yet. owned must carry resolved owners.
func Listable(registered []RawItem, held []ListableItem, owned []Collection, account string) []ListableView {
	mine := make(map[string]struct{}, len(owned))
	for _, c := range owned {
		if SameAddress(c.Owner, account) {
			mine[KeyOf(c.Address, nil).Contract] = struct{}{}
		}
	}
	known := registeredKeys(registered)
	out := make([]ListableView, 0, len(held))
	for _, nft := range held {
		if !SameAddress(nft.Owner, account) {
			continue
		}
		key := nft.Key()
		if _, ok := mine[key.Contract]; !ok {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		out = append(out, ListableView{
			TokenID:     nft.TokenID,
			NFTContract: nft.NFTContract,
			Name:        nft.Name,
			Description: nft.Description,
			Image:       nft.Image,
		})
	}
	return out
}

// Addable keeps NFTs held by account that are not registered as items.
func Addable(registered []RawItem, held []ListableItem, account string) []AddableView {
	known := registeredKeys(registered)
	out := make([]AddableView, 0, len(held))
	for _, nft := range held {
		if !SameAddress(nft.Owner, account) {
			continue
		}
		if _, ok := known[nft.Key()]; ok {
			continue
		}
		out = append(out, AddableView{TokenID: nft.TokenID, Name: nft.Name, Description: nft.Description, Image: nft.Image})
	}
	return out
}

func OwnedCollections(cols []Collection, account string) []CollectionView {
	out := make([]CollectionView, 0, len(cols))
	for _, c := range cols {
		if !SameAddress(c.Owner, account) {
			continue
		}
		out = append(out, CollectionView{Address: c.Address, Name: c.Name, Symbol: c.Symbol})
	}
	return out
}

// PendingOffersFor keeps offers made to account that are still open.
func PendingOffersFor(offers []Offer, account string) []Offer {
	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if o.IsAccepted || !SameAddress(o.Seller, account) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// AcceptedOffersFor keeps offers account placed that a seller has accepted.
func AcceptedOffersFor(offers []Offer, account string) []Offer {
	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if !o.IsAccepted || !SameAddress(o.Offerer, account) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func registeredKeys(registered []RawItem) map[TokenKey]struct{} {
	known := make(map[TokenKey]struct{}, len(registered))
	for _, r := range registered {
		known[r.Key()] = struct{}{}
	}
	return known
}
