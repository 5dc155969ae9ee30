package marketplace

import (
	"context"
	"math/big"
	"time"
)

// Client is the marketplace SDK surface the workflows depend on. Reads return raw
// records; writes return a TxResult whose Code is ResultSuccess on success.
type Client interface {
	LoadItems(ctx context.Context) ([]RawItem, []Metadata, error)
	GetItem(ctx context.Context, id uint64) (RawItem, Metadata, error)
	GetOffers(ctx context.Context, itemID uint64) ([]Offer, error)
	GetAccountsOffers(ctx context.Context, account string) ([]Offer, error)
	LoadCollections(ctx context.Context) ([]Collection, error)
	CollectionOwner(ctx context.Context, collection string) (string, error)
	LoadItemsForListing(ctx context.Context, account string) ([]RawItem, []ListableItem, error)
	LoadItemsForAdding(ctx context.Context, collection, account string) ([]ListableItem, error)

	BuyItem(ctx context.Context, id uint64, price *big.Int) (TxResult, error)
	PlaceOffer(ctx context.Context, id uint64, amount *big.Int) (TxResult, error)
	AcceptOffer(ctx context.Context, id uint64, offerer string) (TxResult, error)
	ClaimItem(ctx context.Context, id uint64, price *big.Int) (TxResult, error)
	ListItemForSale(ctx context.Context, nftContract string, tokenID, price *big.Int) (TxResult, error)
	AddItemToMarketplace(ctx context.Context, collection string, tokenID *big.Int) (TxResult, error)
	DeployNFTCollection(ctx context.Context, name, symbol string) (Collection, TxResult, error)
	MintNFT(ctx context.Context, collection, tokenURI string) (TxResult, error)

	IsMarketplaceOwner(ctx context.Context, account string) (bool, error)
	MarketplaceBalance(ctx context.Context) (*big.Int, error)
	WithdrawMoney(ctx context.Context) (TxResult, error)
}

// OfferFetcher is the slice of Client the offer aggregator needs.
type OfferFetcher interface {
	GetOffers(ctx context.Context, itemID uint64) ([]Offer, error)
}

// OwnerLookup is the slice of Client the collection owner fan-out needs.
type OwnerLookup interface {
	CollectionOwner(ctx context.Context, collection string) (string, error)
}

// Uploader pins off-chain content and returns its content URI.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
	UploadJSON(ctx context.Context, doc any) (string, error)
}

// Outcome is one settled state-mutating workflow.
type Outcome struct {
	Account  string
	Receipt  Receipt
	Err      error
	Duration time.Duration
}

// Recorder observes settled workflows.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome)
}

// Recorders fans an outcome out to several recorders.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, outcome Outcome) {
	for _, r := range rs {
		if r != nil {
			r.Record(ctx, outcome)
		}
	}
}
