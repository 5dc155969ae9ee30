package marketplace

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
)

// Receipt status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusFault     = "fault"
)

// Receipt describes one submitted state-mutating call.
type Receipt struct {
	Operation   string   `json:"operation"`
	ItemID      *uint64  `json:"item_id,omitempty"`
	NFTContract string   `json:"nft_contract,omitempty"`
	TokenID     *big.Int `json:"token_id,omitempty"`
	Amount      *big.Int `json:"amount,omitempty"`
	TokenURI    string   `json:"token_uri,omitempty"`
	TxHash      string   `json:"tx_hash,omitempty"`
	Code        uint64   `json:"code"`
	Status      string   `json:"status"`
	NewOwner    string   `json:"new_owner,omitempty"`
}

// MintRequest is the metadata for a new token. Image may be a URI or a path to a
// local file, which is pinned first.
type MintRequest struct {
	Collection  string
	Name        string
	Description string
	Image       string
}

// Orchestrator runs the marketplace workflows for one Session. Every operation reads
// fresh state from the client, checks its guards, and submits at most one write.
type Orchestrator struct {
	session  *Session
	uploader Uploader
	recorder Recorder
	log      logrus.FieldLogger
	fanout   int
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithUploader(u Uploader) Option { return func(o *Orchestrator) { o.uploader = u } }

func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithFanout bounds concurrent per-item reads.
func WithFanout(n int) Option { return func(o *Orchestrator) { o.fanout = n } }

func NewOrchestrator(session *Session, opts ...Option) *Orchestrator {
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	o := &Orchestrator{session: session, log: silent, fanout: DefaultFanout, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Session() *Session { return o.session }

func (o *Orchestrator) client() Client { return o.session.Client() }

func (o *Orchestrator) account() string { return o.session.Account() }

// Items returns every marketplace item joined with its metadata.
func (o *Orchestrator) Items(ctx context.Context) ([]Item, error) {
	raws, metas, err := o.client().LoadItems(ctx)
	if err != nil {
		return nil, readFailure("load items", err)
	}
	return Normalize(raws, metas)
}

// Item returns one item joined with its metadata.
func (o *Orchestrator) Item(ctx context.Context, id uint64) (Item, error) {
	raw, meta, err := o.client().GetItem(ctx, id)
	if err != nil {
		return Item{}, readFailure(fmt.Sprintf("load item %d", id), err)
	}
	if raw.ID != id || raw.NFTContract == "" {
		return Item{}, precondition(ErrItemNotFound, fmt.Sprintf("item %d", id))
	}
	items, err := NormalizePositional([]RawItem{raw}, []Metadata{meta})
	if err != nil {
		return Item{}, err
	}
	return items[0], nil
}

func (o *Orchestrator) ForSale(ctx context.Context) ([]ForSaleView, error) {
	items, err := o.Items(ctx)
	if err != nil {
		return nil, err
	}
	return ForSale(items, o.account()), nil
}

func (o *Orchestrator) OfferEligible(ctx context.Context) ([]OfferEligibleView, error) {
	items, err := o.Items(ctx)
	if err != nil {
		return nil, err
	}
	return OfferEligible(items, o.account()), nil
}

func (o *Orchestrator) Owned(ctx context.Context) ([]OwnedView, error) {
	items, err := o.Items(ctx)
	if err != nil {
		return nil, err
	}
	return OwnedBy(items, o.account()), nil
}

// Collections returns every registered collection with its owner resolved.
func (o *Orchestrator) Collections(ctx context.Context) ([]Collection, error) {
	cols, err := o.client().LoadCollections(ctx)
	if err != nil {
		return nil, readFailure("load collections", err)
	}
	return ResolveCollectionOwners(ctx, o.client(), cols, o.fanout)
}

func (o *Orchestrator) OwnedCollections(ctx context.Context) ([]CollectionView, error) {
	cols, err := o.Collections(ctx)
	if err != nil {
		return nil, err
	}
	return OwnedCollections(cols, o.account()), nil
}

// Listable returns held tokens in owned collections that are not marketplace items.
func (o *Orchestrator) Listable(ctx context.Context) ([]ListableView, error) {
	registered, held, err := o.client().LoadItemsForListing(ctx, o.account())
	if err != nil {
		return nil, readFailure("load items for listing", err)
	}
	cols, err := o.Collections(ctx)
	if err != nil {
		return nil, err
	}
	return Listable(registered, held, cols, o.account()), nil
}

// Addable returns held tokens of one owned collection that are not marketplace items.
func (o *Orchestrator) Addable(ctx context.Context, collection string) ([]AddableView, error) {
	col, err := o.ownedCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	held, err := o.client().LoadItemsForAdding(ctx, col.Address, o.account())
	if err != nil {
		return nil, readFailure("load items for adding", err)
	}
	registered, _, err := o.client().LoadItems(ctx)
	if err != nil {
		return nil, readFailure("load items", err)
	}
	return Addable(registered, held, o.account()), nil
}

// PendingOffers returns the open offers the account can accept.
func (o *Orchestrator) PendingOffers(ctx context.Context) ([]Offer, error) {
	raws, _, err := o.client().LoadItems(ctx)
	if err != nil {
		return nil, readFailure("load items", err)
	}
	return AggregatePendingOffers(ctx, o.client(), raws, o.account(), o.fanout)
}

// MyOffers returns the offers the account has placed, accepted or not.
func (o *Orchestrator) MyOffers(ctx context.Context) ([]Offer, error) {
	offers, err := o.client().GetAccountsOffers(ctx, o.account())
	if err != nil {
		return nil, readFailure("load account offers", err)
	}
	out := make([]Offer, 0, len(offers))
	for _, offer := range offers {
		if SameAddress(offer.Offerer, o.account()) {
			out = append(out, offer)
		}
	}
	return out, nil
}

// Buy purchases a priced item at its current price.
func (o *Orchestrator) Buy(ctx context.Context, id uint64) (Receipt, error) {
	item, err := o.Item(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if err := CheckBuy(item, o.account()); err != nil {
		return Receipt{}, err
	}
	receipt := itemReceipt("buy", item)
	receipt.Amount = item.Price
	started := o.now()
	res, err := o.client().BuyItem(ctx, item.ID, item.Price)
	receipt.NewOwner = o.account()
	return o.settle(ctx, receipt, res, err, started)
}

// PlaceOffer bids amount wei on an offer-only item.
func (o *Orchestrator) PlaceOffer(ctx context.Context, id uint64, amount string) (Receipt, error) {
	value, err := ParseAmount(amount)
	if err != nil {
		return Receipt{}, err
	}
	item, err := o.Item(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if err := CheckPlaceOffer(item, o.account()); err != nil {
		return Receipt{}, err
	}
	receipt := itemReceipt("place_offer", item)
	receipt.Amount = value
	started := o.now()
	res, err := o.client().PlaceOffer(ctx, item.ID, value)
	return o.settle(ctx, receipt, res, err, started)
}

// AcceptOffer accepts the pending offer offerer made on item id.
func (o *Orchestrator) AcceptOffer(ctx context.Context, id uint64, offerer string) (Receipt, error) {
	from, err := ParseAddress(offerer)
	if err != nil {
		return Receipt{}, err
	}
	pending, err := o.PendingOffers(ctx)
	if err != nil {
		return Receipt{}, err
	}
	if len(pending) == 0 {
		return Receipt{}, precondition(ErrNoPendingOffers, "accept offer")
	}
	offer, ok := findOffer(pending, func(o Offer) bool {
		return o.ItemID == id && SameAddress(o.Offerer, from)
	})
	if !ok {
		return Receipt{}, precondition(ErrOfferNotPending, fmt.Sprintf("no pending offer on item %d from %s", id, from))
	}
	if err := CheckAcceptOffer(offer, o.account()); err != nil {
		return Receipt{}, err
	}
	receipt := offerReceipt("accept_offer", offer)
	started := o.now()
	res, err := o.client().AcceptOffer(ctx, offer.ItemID, offer.Offerer)
	return o.settle(ctx, receipt, res, err, started)
}

// Claim pays for and takes ownership of an item whose offer was accepted.
func (o *Orchestrator) Claim(ctx context.Context, id uint64) (Receipt, error) {
	mine, err := o.MyOffers(ctx)
	if err != nil {
		return Receipt{}, err
	}
	accepted := AcceptedOffersFor(mine, o.account())
	if len(accepted) == 0 {
		return Receipt{}, precondition(ErrNoAcceptedOffers, "claim")
	}
	offer, ok := findOffer(accepted, func(o Offer) bool { return o.ItemID == id })
	if !ok {
		return Receipt{}, precondition(ErrOfferNotAccepted, fmt.Sprintf("no accepted offer on item %d", id))
	}
	if err := CheckClaim(offer, o.account()); err != nil {
		return Receipt{}, err
	}
	receipt := offerReceipt("claim", offer)
	receipt.NewOwner = o.account()
	started := o.now()
	res, err := o.client().ClaimItem(ctx, offer.ItemID, offer.Price)
	return o.settle(ctx, receipt, res, err, started)
}

// ListForSale sets a direct-sale price on an owned item.
func (o *Orchestrator) ListForSale(ctx context.Context, id uint64, price string) (Receipt, error) {
	value, err := ParseAmount(price)
	if err != nil {
		return Receipt{}, err
	}
	item, err := o.Item(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if err := CheckListForSale(item, o.account(), value); err != nil {
		return Receipt{}, err
	}
	receipt := itemReceipt("list_for_sale", item)
	receipt.Amount = value
	started := o.now()
	res, err := o.client().ListItemForSale(ctx, item.NFTContract, item.TokenID, value)
	return o.settle(ctx, receipt, res, err, started)
}

// AddToMarketplace registers a held token of an owned collection as an item.
func (o *Orchestrator) AddToMarketplace(ctx context.Context, collection string, tokenID *big.Int) (Receipt, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return Receipt{}, validation(ErrInvalidID, "token id is required")
	}
	col, err := o.collection(ctx, collection)
	if err != nil {
		return Receipt{}, err
	}
	if !SameAddress(col.Owner, o.account()) {
		return Receipt{}, precondition(ErrCollectionNotOwned, col.Address)
	}
	held, err := o.client().LoadItemsForAdding(ctx, col.Address, o.account())
	if err != nil {
		return Receipt{}, readFailure("load items for adding", err)
	}
	registered, _, err := o.client().LoadItems(ctx)
	if err != nil {
		return Receipt{}, readFailure("load items", err)
	}
	if err := CheckAddToMarketplace(col, held, registered, tokenID, o.account()); err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{Operation: "add_to_marketplace", NFTContract: col.Address, TokenID: tokenID}
	started := o.now()
	res, err := o.client().AddItemToMarketplace(ctx, col.Address, tokenID)
	return o.settle(ctx, receipt, res, err, started)
}

// CreateCollection deploys a new collection owned by the account.
func (o *Orchestrator) CreateCollection(ctx context.Context, name, symbol string) (Collection, Receipt, error) {
	name, err := requireText("name", name)
	if err != nil {
		return Collection{}, Receipt{}, err
	}
	symbol, err = requireText("symbol", symbol)
	if err != nil {
		return Collection{}, Receipt{}, err
	}
	receipt := Receipt{Operation: "create_collection"}
	started := o.now()
	col, res, err := o.client().DeployNFTCollection(ctx, name, symbol)
	receipt.NFTContract = col.Address
	receipt, err = o.settle(ctx, receipt, res, err, started)
	if err != nil {
		return Collection{}, receipt, err
	}
	if col.Owner == "" {
		col.Owner = o.account()
	}
	return col, receipt, nil
}

// Mint pins the token metadata and mints it into an owned collection. Nothing is
// submitted unless every upload succeeds.
func (o *Orchestrator) Mint(ctx context.Context, req MintRequest) (Receipt, error) {
	if o.uploader == nil {
		return Receipt{}, validation(ErrUploaderMissing, "mint needs an ipfs endpoint")
	}
	name, err := requireText("name", req.Name)
	if err != nil {
		return Receipt{}, err
	}
	col, err := o.collection(ctx, req.Collection)
	if err != nil {
		return Receipt{}, err
	}
	if err := CheckMint(col, o.account()); err != nil {
		return Receipt{}, err
	}

	image := req.Image
	if isLocalFile(image) {
		uri, err := o.uploader.UploadFile(ctx, image)
		if err != nil {
			return Receipt{}, readFailure("upload image", err)
		}
		image = uri
	}
	tokenURI, err := o.uploader.UploadJSON(ctx, map[string]string{
		"name":        name,
		"description": req.Description,
		"image":       image,
	})
	if err != nil {
		return Receipt{}, readFailure("upload metadata", err)
	}

	receipt := Receipt{Operation: "mint", NFTContract: col.Address, TokenURI: tokenURI}
	started := o.now()
	res, err := o.client().MintNFT(ctx, col.Address, tokenURI)
	return o.settle(ctx, receipt, res, err, started)
}

// MarketplaceBalance returns the withdrawable balance. Owner only.
func (o *Orchestrator) MarketplaceBalance(ctx context.Context) (*big.Int, error) {
	if err := o.requireOwner(ctx); err != nil {
		return nil, err
	}
	balance, err := o.client().MarketplaceBalance(ctx)
	if err != nil {
		return nil, readFailure("load marketplace balance", err)
	}
	return balance, nil
}

// Withdraw moves the marketplace balance to its owner.
func (o *Orchestrator) Withdraw(ctx context.Context) (Receipt, error) {
	if err := o.requireOwner(ctx); err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{Operation: "withdraw"}
	started := o.now()
	res, err := o.client().WithdrawMoney(ctx)
	return o.settle(ctx, receipt, res, err, started)
}

func (o *Orchestrator) requireOwner(ctx context.Context) error {
	isOwner, err := o.session.IsMarketplaceOwner(ctx)
	if err != nil {
		return err
	}
	return CheckWithdraw(isOwner)
}

func (o *Orchestrator) collection(ctx context.Context, address string) (Collection, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return Collection{}, err
	}
	owner, err := o.client().CollectionOwner(ctx, addr)
	if err != nil {
		return Collection{}, readFailure("load collection owner", err)
	}
	return Collection{Address: addr, Owner: owner}, nil
}

func (o *Orchestrator) ownedCollection(ctx context.Context, address string) (Collection, error) {
	col, err := o.collection(ctx, address)
	if err != nil {
		return Collection{}, err
	}
	if err := CheckMint(col, o.account()); err != nil {
		return Collection{}, err
	}
	return col, nil
}

// settle classifies a write. A fault and a non-success code are both reported as a
// failed operation and never retried.
func (o *Orchestrator) settle(ctx context.Context, receipt Receipt, res TxResult, callErr error, started time.Time) (Receipt, error) {
	receipt.TxHash = res.TxHash
	receipt.Code = res.Code
	var err error
	switch {
	case callErr != nil:
		receipt.Status = StatusFault
		receipt.NewOwner = ""
		err = clierr.Wrap(clierr.CodeOperationFailed, receipt.Operation+" failed", fmt.Errorf("%w: %w", ErrOperationFailed, callErr))
	case !res.Succeeded():
		receipt.Status = StatusFailed
		receipt.NewOwner = ""
		err = clierr.Wrap(clierr.CodeOperationFailed, receipt.Operation+" failed", fmt.Errorf("%w: result code %d", ErrOperationFailed, res.Code))
	default:
		receipt.Status = StatusSucceeded
	}

	elapsed := o.now().Sub(started)
	entry := o.log.WithFields(logrus.Fields{
		"operation": receipt.Operation,
		"status":    receipt.Status,
		"tx_hash":   receipt.TxHash,
		"elapsed":   elapsed.String(),
	})
	if err != nil {
		entry.WithError(err).Warn("workflow failed")
	} else {
		entry.Info("workflow succeeded")
	}
	if o.recorder != nil {
		o.recorder.Record(ctx, Outcome{Account: o.account(), Receipt: receipt, Err: err, Duration: elapsed})
	}
	return receipt, err
}

func itemReceipt(op string, item Item) Receipt {
	id := item.ID
	return Receipt{Operation: op, ItemID: &id, NFTContract: item.NFTContract, TokenID: item.TokenID}
}

func offerReceipt(op string, offer Offer) Receipt {
	id := offer.ItemID
	return Receipt{Operation: op, ItemID: &id, NFTContract: offer.NFTContract, TokenID: offer.TokenID, Amount: offer.Price}
}

func findOffer(offers []Offer, match func(Offer) bool) (Offer, bool) {
	for _, offer := range offers {
		if match(offer) {
			return offer, true
		}
	}
	return Offer{}, false
}

func isLocalFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
