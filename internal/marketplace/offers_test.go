package marketplace

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
)

// orderedFetcher completes item 2 before item 1 no matter which starts first.
type orderedFetcher struct {
	offers  map[uint64][]Offer
	twoDone chan struct{}
	once    sync.Once
}

func (f *orderedFetcher) GetOffers(_ context.Context, itemID uint64) ([]Offer, error) {
	switch itemID {
	case 1:
		<-f.twoDone
	case 2:
		defer f.once.Do(func() { close(f.twoDone) })
	}
	return f.offers[itemID], nil
}

func TestAggregatePendingOffersTagsBeforeFlatten(t *testing.T) {
	items := []RawItem{
		{ID: 1, NFTContract: nftX, TokenID: big.NewInt(1), Owner: acctA, Price: big.NewInt(0)},
		{ID: 2, NFTContract: nftX, TokenID: big.NewInt(2), Owner: acctA, Price: big.NewInt(0)},
	}
	fetcher := &orderedFetcher{
		twoDone: make(chan struct{}),
		offers: map[uint64][]Offer{
			1: {{ItemID: 99, Offerer: acctB, Seller: acctA, Price: big.NewInt(1000000000000000000)}},
			2: {},
		},
	}

	got, err := AggregatePendingOffers(context.Background(), fetcher, items, acctA, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ItemID)
	assert.Equal(t, acctB, got[0].Offerer)
}

func TestAggregatePendingOffersFiltersCandidatesAndOffers(t *testing.T) {
	f := newFakeClient()
	f.addItem(1, nftX, 1, acctA, 0, "mine offer-only")
	f.addItem(2, nftX, 2, acctA, 10, "mine priced")
	f.addItem(3, nftX, 3, acctB, 0, "theirs")
	f.addItem(4, nftX, 4, strings.ToLower(acctA), 0, "mine lowercase")
	f.offers[1] = []Offer{
		{Offerer: acctB, Seller: acctA, Price: big.NewInt(1)},
		{Offerer: acctC, Seller: acctA, Price: big.NewInt(2), IsAccepted: true},
		{Offerer: acctC, Seller: acctB, Price: big.NewInt(3)},
	}
	f.offers[2] = []Offer{{Offerer: acctB, Seller: acctA, Price: big.NewInt(4)}}
	f.offers[3] = []Offer{{Offerer: acctC, Seller: acctA, Price: big.NewInt(5)}}
	f.offers[4] = []Offer{{Offerer: acctC, Seller: acctA, Price: big.NewInt(6)}}

	got, err := AggregatePendingOffers(context.Background(), f, f.items, acctA, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].ItemID)
	assert.Equal(t, int64(1), got[0].Price.Int64())
	assert.Equal(t, uint64(4), got[1].ItemID)
	for _, o := range got {
		assert.False(t, o.IsAccepted)
		assert.True(t, SameAddress(o.Seller, acctA))
	}
}

func TestAggregatePendingOffersNamesEveryFailedItem(t *testing.T) {
	f := newFakeClient()
	f.addItem(1, nftX, 1, acctA, 0, "a")
	f.addItem(2, nftX, 2, acctA, 0, "b")
	f.addItem(3, nftX, 3, acctA, 0, "c")
	f.offers[2] = []Offer{{Offerer: acctB, Seller: acctA, Price: big.NewInt(1)}}
	f.offerErr[1] = errors.New("rpc timeout")
	f.offerErr[3] = errors.New("rpc timeout")

	got, err := AggregatePendingOffers(context.Background(), f, f.items, acctA, 3)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, clierr.HasCode(err, clierr.CodeIntegrity))
	assert.ErrorIs(t, err, ErrOfferFetchFailed)
	assert.Contains(t, err.Error(), "item 1")
	assert.Contains(t, err.Error(), "item 3")
	assert.NotContains(t, err.Error(), "item 2:")
}

func TestAggregatePendingOffersWithoutCandidates(t *testing.T) {
	f := newFakeClient()
	f.addItem(1, nftX, 1, acctB, 0, "theirs")
	got, err := AggregatePendingOffers(context.Background(), f, f.items, acctA, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveCollectionOwnersMatchesByAddress(t *testing.T) {
	f := newFakeClient()
	f.owners[strings.ToLower(nftX)] = acctA
	f.owners[strings.ToLower(nftY)] = acctB
	cols := []Collection{{Address: nftY, Name: "Y"}, {Address: nftX, Name: "X"}}

	got, err := ResolveCollectionOwners(context.Background(), f, cols, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, acctB, got[0].Owner)
	assert.Equal(t, acctA, got[1].Owner)
	assert.Empty(t, cols[0].Owner)
}
