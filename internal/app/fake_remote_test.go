package app

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

const (
	alice  = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
	bob    = "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb"
	nftOne = "0x1111111111111111111111111111111111111111"
)

// keyAccounts maps test private keys to the wallet they unlock.
var keyAccounts = map[string]string{
	"alice-key": alice,
	"bob-key":   bob,
}

type fakeMarket struct {
	mu     sync.Mutex
	items  []marketplace.RawItem
	metas  []marketplace.Metadata
	offers map[uint64][]marketplace.Offer
	owner  string
	result marketplace.TxResult
	writes []string
	closed []string
}

func newFakeMarket() *fakeMarket {
	m := &fakeMarket{
		offers: map[uint64][]marketplace.Offer{},
		owner:  alice,
		result: marketplace.TxResult{Code: marketplace.ResultSuccess, TxHash: "0xabc"},
	}
	m.add(1, 1, alice, 1_000_000_000_000_000_000, "Sunrise")
	m.add(2, 2, alice, 0, "Moonrise")
	m.add(3, 3, bob, 500_000_000_000_000_000, "Noon")
	return m
}

func (m *fakeMarket) add(id uint64, token int64, owner string, price int64, name string) {
	m.items = append(m.items, marketplace.RawItem{ID: id, NFTContract: nftOne, TokenID: big.NewInt(token), Owner: owner, Price: big.NewInt(price)})
	m.metas = append(m.metas, marketplace.Metadata{NFTContract: nftOne, TokenID: big.NewInt(token), Name: name})
}

func (m *fakeMarket) record(call string) marketplace.TxResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, call)
	return m.result
}

// Closed lists the accounts whose remote was released, in order.
func (m *fakeMarket) Closed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closed...)
}

func (m *fakeMarket) release(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, account)
}

func (m *fakeMarket) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func (m *fakeMarket) LoadItems(context.Context) ([]marketplace.RawItem, []marketplace.Metadata, error) {
	return m.items, m.metas, nil
}

func (m *fakeMarket) GetItem(_ context.Context, id uint64) (marketplace.RawItem, marketplace.Metadata, error) {
	for i, it := range m.items {
		if it.ID == id {
			return it, m.metas[i], nil
		}
	}
	return marketplace.RawItem{}, marketplace.Metadata{}, nil
}

func (m *fakeMarket) GetOffers(_ context.Context, id uint64) ([]marketplace.Offer, error) {
	return m.offers[id], nil
}

func (m *fakeMarket) GetAccountsOffers(_ context.Context, account string) ([]marketplace.Offer, error) {
	var out []marketplace.Offer
	for _, offers := range m.offers {
		for _, o := range offers {
			if strings.EqualFold(o.Offerer, account) {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (m *fakeMarket) LoadCollections(context.Context) ([]marketplace.Collection, error) {
	return []marketplace.Collection{{Address: nftOne, Name: "Days", Symbol: "DAY"}}, nil
}

func (m *fakeMarket) CollectionOwner(context.Context, string) (string, error) { return alice, nil }

func (m *fakeMarket) LoadItemsForListing(context.Context, string) ([]marketplace.RawItem, []marketplace.ListableItem, error) {
	return m.items, nil, nil
}

func (m *fakeMarket) LoadItemsForAdding(context.Context, string, string) ([]marketplace.ListableItem, error) {
	return nil, nil
}

func (m *fakeMarket) BuyItem(ctx context.Context, _ uint64, _ *big.Int) (marketplace.TxResult, error) {
	if err := ctx.Err(); err != nil {
		return marketplace.TxResult{}, err
	}
	return m.record("buyItem"), nil
}

func (m *fakeMarket) PlaceOffer(context.Context, uint64, *big.Int) (marketplace.TxResult, error) {
	return m.record("placeOffer"), nil
}

func (m *fakeMarket) AcceptOffer(context.Context, uint64, string) (marketplace.TxResult, error) {
	return m.record("acceptOffer"), nil
}

func (m *fakeMarket) ClaimItem(context.Context, uint64, *big.Int) (marketplace.TxResult, error) {
	return m.record("claimItem"), nil
}

func (m *fakeMarket) ListItemForSale(context.Context, string, *big.Int, *big.Int) (marketplace.TxResult, error) {
	return m.record("listItemForSale"), nil
}

func (m *fakeMarket) AddItemToMarketplace(context.Context, string, *big.Int) (marketplace.TxResult, error) {
	return m.record("addItemToMarketplace"), nil
}

func (m *fakeMarket) DeployNFTCollection(_ context.Context, name, symbol string) (marketplace.Collection, marketplace.TxResult, error) {
	res := m.record("createCollection")
	return marketplace.Collection{Address: "0x2222222222222222222222222222222222222222", Name: name, Symbol: symbol}, res, nil
}

func (m *fakeMarket) MintNFT(context.Context, string, string) (marketplace.TxResult, error) {
	return m.record("mint"), nil
}

func (m *fakeMarket) IsMarketplaceOwner(_ context.Context, account string) (bool, error) {
	return strings.EqualFold(account, m.owner), nil
}

func (m *fakeMarket) MarketplaceBalance(context.Context) (*big.Int, error) {
	return big.NewInt(250_000_000_000_000_000), nil
}

func (m *fakeMarket) WithdrawMoney(context.Context) (marketplace.TxResult, error) {
	return m.record("withdrawMoney"), nil
}

// fakeRemote connects every session to market. A known private key selects the
// wallet; anything else connects read-only.
func fakeRemote(market *fakeMarket) RemoteFactory {
	return func(_ context.Context, s *runtimeState, privateKey string) (Remote, error) {
		account := keyAccounts[strings.TrimSpace(privateKey)]
		var once sync.Once
		return Remote{
			Client:  market,
			Account: account,
			Closer:  func() { once.Do(func() { market.release(account) }) },
		}, nil
	}
}

// isolate keeps config, cache and journal files inside the test's temp dir.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Setenv("NFTMP_PRIVATE_KEY", "")
	t.Setenv("NFTMP_ACCOUNT", "")
	t.Chdir(dir)
}
