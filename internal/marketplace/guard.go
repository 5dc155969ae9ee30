package marketplace

import (
	"fmt"
	"math/big"
)

// CheckBuy allows a direct purchase of a priced item owned by someone else.
// Self-trade is reported ahead of price mode.
func CheckBuy(item Item, account string) error {
	if SameAddress(item.Owner, account) {
		return precondition(ErrSelfTrade, fmt.Sprintf("item %d", item.ID))
	}
	if item.OfferOnly() {
		return precondition(ErrNotForSale, fmt.Sprintf("item %d", item.ID))
	}
	return nil
}

// CheckPlaceOffer allows a bid on an offer-only item owned by someone else.
func CheckPlaceOffer(item Item, account string) error {
	if SameAddress(item.Owner, account) {
		return precondition(ErrSelfTrade, fmt.Sprintf("item %d", item.ID))
	}
	if !item.OfferOnly() {
		return precondition(ErrNotOfferOnly, fmt.Sprintf("item %d", item.ID))
	}
	return nil
}

// CheckAcceptOffer allows the seller to accept an offer that is still pending.
func CheckAcceptOffer(offer Offer, account string) error {
	if !SameAddress(offer.Seller, account) {
		return precondition(ErrNotSeller, fmt.Sprintf("offer on item %d from %s", offer.ItemID, offer.Offerer))
	}
	if offer.IsAccepted {
		return precondition(ErrOfferNotPending, fmt.Sprintf("offer on item %d from %s", offer.ItemID, offer.Offerer))
	}
	return nil
}

// CheckClaim allows the offerer to finalize an accepted offer.
func CheckClaim(offer Offer, account string) error {
	if !SameAddress(offer.Offerer, account) {
		return precondition(ErrNotOfferer, fmt.Sprintf("offer on item %d", offer.ItemID))
	}
	if !offer.IsAccepted {
		return precondition(ErrOfferNotAccepted, fmt.Sprintf("offer on item %d", offer.ItemID))
	}
	return nil
}

// CheckListForSale allows the owner of a registered item to set a price.
func CheckListForSale(item Item, account string, price *big.Int) error {
	if !SameAddress(item.Owner, account) {
		return precondition(ErrNotItemOwner, fmt.Sprintf("item %d", item.ID))
	}
	if price == nil || price.Sign() <= 0 {
		return validation(ErrInvalidAmount, "price must be positive")
	}
	return nil
}

// CheckAddToMarketplace allows registering a held token of an owned collection
// that the marketplace does not track yet.
func CheckAddToMarketplace(col Collection, held []ListableItem, registered []RawItem, tokenID *big.Int, account string) error {
	if !SameAddress(col.Owner, account) {
		return precondition(ErrCollectionNotOwned, col.Address)
	}
	key := KeyOf(col.Address, tokenID)
	holds := false
	for _, nft := range held {
		if nft.Key() == key && SameAddress(nft.Owner, account) {
			holds = true
			break
		}
	}
	if !holds {
		return precondition(ErrTokenNotOwned, key.String())
	}
	for _, r := range registered {
		if r.Key() == key {
			return precondition(ErrAlreadyRegistered, fmt.Sprintf("%s is item %d", key, r.ID))
		}
	}
	return nil
}

// CheckMint allows minting into a collection the account owns.
func CheckMint(col Collection, account string) error {
	if !SameAddress(col.Owner, account) {
		return precondition(ErrCollectionNotOwned, col.Address)
	}
	return nil
}

// CheckWithdraw allows the marketplace owner to withdraw.
func CheckWithdraw(isOwner bool) error {
	if !isOwner {
		return precondition(ErrNotMarketplaceOwner, "withdraw")
	}
	return nil
}
