package marketplace

import (
	"context"
	"math/big"
	"strings"
	"sync"
)

const (
	acctA = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
	acctB = "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb"
	acctC = "0xCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCcCc"
	nftX  = "0x1111111111111111111111111111111111111111"
	nftY  = "0x2222222222222222222222222222222222222222"
)

type fakeClient struct {
	mu sync.Mutex

	items         []RawItem
	metas         []Metadata
	offers        map[uint64][]Offer
	offerErr      map[uint64]error
	accountOffers []Offer
	collections   []Collection
	owners        map[string]string
	held          []ListableItem
	isOwner       bool
	ownerErr      error
	ownerCalls    int
	balance       *big.Int

	result   TxResult
	writeErr error
	writes   []string
	deployed Collection
	mintURI  string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		offers:   map[uint64][]Offer{},
		offerErr: map[uint64]error{},
		owners:   map[string]string{},
		result:   TxResult{Code: ResultSuccess, TxHash: "0xfeed"},
		balance:  big.NewInt(0),
	}
}

func (f *fakeClient) addItem(id uint64, contract string, token int64, owner string, price int64, name string) {
	f.items = append(f.items, RawItem{ID: id, NFTContract: contract, TokenID: big.NewInt(token), Owner: owner, Price: big.NewInt(price)})
	f.metas = append(f.metas, Metadata{NFTContract: contract, TokenID: big.NewInt(token), Name: name, Description: name + " description", Image: "ipfs://" + name})
}

func (f *fakeClient) LoadItems(context.Context) ([]RawItem, []Metadata, error) {
	return append([]RawItem(nil), f.items...), append([]Metadata(nil), f.metas...), nil
}

func (f *fakeClient) GetItem(_ context.Context, id uint64) (RawItem, Metadata, error) {
	for i, it := range f.items {
		if it.ID == id {
			return it, f.metas[i], nil
		}
	}
	return RawItem{}, Metadata{}, nil
}

func (f *fakeClient) GetOffers(_ context.Context, itemID uint64) ([]Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.offerErr[itemID]; err != nil {
		return nil, err
	}
	return append([]Offer(nil), f.offers[itemID]...), nil
}

func (f *fakeClient) GetAccountsOffers(context.Context, string) ([]Offer, error) {
	return append([]Offer(nil), f.accountOffers...), nil
}

func (f *fakeClient) LoadCollections(context.Context) ([]Collection, error) {
	return append([]Collection(nil), f.collections...), nil
}

func (f *fakeClient) CollectionOwner(_ context.Context, collection string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[strings.ToLower(collection)], nil
}

func (f *fakeClient) LoadItemsForListing(context.Context, string) ([]RawItem, []ListableItem, error) {
	return append([]RawItem(nil), f.items...), append([]ListableItem(nil), f.held...), nil
}

func (f *fakeClient) LoadItemsForAdding(_ context.Context, collection, _ string) ([]ListableItem, error) {
	var out []ListableItem
	for _, nft := range f.held {
		if SameAddress(nft.NFTContract, collection) {
			out = append(out, nft)
		}
	}
	return out, nil
}

func (f *fakeClient) write(name string) (TxResult, error) {
	f.writes = append(f.writes, name)
	if f.writeErr != nil {
		return TxResult{}, f.writeErr
	}
	return f.result, nil
}

func (f *fakeClient) BuyItem(context.Context, uint64, *big.Int) (TxResult, error) {
	return f.write("buyItem")
}

func (f *fakeClient) PlaceOffer(context.Context, uint64, *big.Int) (TxResult, error) {
	return f.write("placeOffer")
}

func (f *fakeClient) AcceptOffer(context.Context, uint64, string) (TxResult, error) {
	return f.write("acceptOffer")
}

func (f *fakeClient) ClaimItem(context.Context, uint64, *big.Int) (TxResult, error) {
	return f.write("claimItem")
}

func (f *fakeClient) ListItemForSale(context.Context, string, *big.Int, *big.Int) (TxResult, error) {
	return f.write("listItemForSale")
}

func (f *fakeClient) AddItemToMarketplace(context.Context, string, *big.Int) (TxResult, error) {
	return f.write("addItemToMarketplace")
}

func (f *fakeClient) DeployNFTCollection(_ context.Context, name, symbol string) (Collection, TxResult, error) {
	res, err := f.write("deployNFTCollection")
	col := f.deployed
	col.Name, col.Symbol = name, symbol
	return col, res, err
}

func (f *fakeClient) MintNFT(_ context.Context, _ string, tokenURI string) (TxResult, error) {
	f.mintURI = tokenURI
	return f.write("mint")
}

func (f *fakeClient) IsMarketplaceOwner(context.Context, string) (bool, error) {
	f.ownerCalls++
	if f.ownerErr != nil {
		return false, f.ownerErr
	}
	return f.isOwner, nil
}

func (f *fakeClient) MarketplaceBalance(context.Context) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeClient) WithdrawMoney(context.Context) (TxResult, error) {
	return f.write("withdrawMoney")
}

type fakeUploader struct {
	files []string
	docs  []any
	err   error
}

func (u *fakeUploader) UploadFile(_ context.Context, path string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.files = append(u.files, path)
	return "ipfs://QmImage", nil
}

func (u *fakeUploader) UploadJSON(_ context.Context, doc any) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.docs = append(u.docs, doc)
	return "ipfs://QmMeta", nil
}

type captureRecorder struct {
	outcomes []Outcome
}

func (r *captureRecorder) Record(_ context.Context, outcome Outcome) {
	r.outcomes = append(r.outcomes, outcome)
}

func mustSession(t interface{ Fatalf(string, ...any) }, client Client, account string) *Session {
	s, err := NewSession(client, account)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}
