package marketplace

import "math/big"

// State is the logical lifecycle position of a registered item. It is derived from
// the item and its offers on every read and never stored.
type State string

const (
	StateListed    State = "listed"
	StateOfferOnly State = "offer_only"
	StateOffered   State = "offered"
	StateAccepted  State = "accepted"
)

// StateOf classifies item given the offers currently recorded against it. Offers for
// other items are ignored.
func StateOf(item Item, offers []Offer) State {
	if !item.OfferOnly() {
		return StateListed
	}
	state := StateOfferOnly
	for _, o := range offers {
		if o.ItemID != item.ID {
			continue
		}
		if o.IsAccepted {
			return StateAccepted
		}
		state = StateOffered
	}
	return state
}

// AfterBuy is the item as the marketplace records it once buyer's purchase settles.
func AfterBuy(item Item, buyer string) Item {
	item.Owner = buyer
	item.Price = new(big.Int)
	return item
}

// AfterClaim is the item once the offerer of an accepted offer claims it.
func AfterClaim(item Item, offer Offer) Item {
	item.Owner = offer.Offerer
	item.Price = new(big.Int)
	return item
}
