package marketplace

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems(t *testing.T) []Item {
	t.Helper()
	f := newFakeClient()
	f.addItem(1, nftX, 1, acctA, 0, "one")
	f.addItem(2, nftX, 2, acctA, 500, "two")
	f.addItem(3, nftY, 1, acctB, 0, "three")
	f.addItem(4, nftY, 2, acctC, 1000, "four")
	f.addItem(5, nftY, 3, strings.ToLower(acctB), 70, "five")
	items, err := Normalize(f.items, f.metas)
	require.NoError(t, err)
	return items
}

func TestOfferOnlyItemIsOfferEligibleForOtherAccount(t *testing.T) {
	items := sampleItems(t)

	eligible := OfferEligible(items, acctB)
	require.Len(t, eligible, 1)
	assert.Equal(t, uint64(1), eligible[0].ID)
	assert.Equal(t, nftX, eligible[0].NFTContract)
	assert.Equal(t, acctA, eligible[0].Owner)
}

func TestForSaleAndOfferEligiblePartitionForeignItems(t *testing.T) {
	items := sampleItems(t)
	for _, account := range []string{acctA, acctB, acctC} {
		forSale := map[uint64]bool{}
		for _, v := range ForSale(items, account) {
			forSale[v.ID] = true
		}
		eligible := map[uint64]bool{}
		for _, v := range OfferEligible(items, account) {
			eligible[v.ID] = true
		}
		for _, it := range items {
			if SameAddress(it.Owner, account) {
				assert.False(t, forSale[it.ID], "owned item %d listed for sale to %s", it.ID, account)
				assert.False(t, eligible[it.ID], "owned item %d offer-eligible to %s", it.ID, account)
				continue
			}
			assert.NotEqual(t, forSale[it.ID], eligible[it.ID], "item %d must be in exactly one view", it.ID)
			assert.Equal(t, it.Price.Sign() == 0, eligible[it.ID])
		}
	}
}

func TestOwnedByIgnoresChecksumCase(t *testing.T) {
	items := sampleItems(t)
	owned := OwnedBy(items, strings.ToUpper(acctB[:2])+strings.ToLower(acctB[2:]))
	require.Len(t, owned, 2)
	assert.Equal(t, uint64(3), owned[0].ID)
	assert.Equal(t, uint64(5), owned[1].ID)
	assert.Equal(t, "ipfs://five", owned[1].Image)
}

func TestViewFiltersAreIdempotent(t *testing.T) {
	items := sampleItems(t)
	assert.Equal(t, ForSale(items, acctB), ForSale(items, acctB))
	assert.Equal(t, OfferEligible(items, acctC), OfferEligible(items, acctC))
	assert.Equal(t, OwnedBy(items, acctA), OwnedBy(items, acctA))
}

func TestListableAndAddableSkipRegisteredTokens(t *testing.T) {
	registered := []RawItem{{ID: 1, NFTContract: nftX, TokenID: big.NewInt(1), Owner: acctA, Price: big.NewInt(0)}}
	held := []ListableItem{
		{NFTContract: nftX, TokenID: big.NewInt(1), Owner: acctA, Name: "registered"},
		{NFTContract: nftX, TokenID: big.NewInt(2), Owner: acctA, Name: "fresh"},
		{NFTContract: nftY, TokenID: big.NewInt(9), Owner: acctA, Name: "foreign collection"},
		{NFTContract: nftX, TokenID: big.NewInt(3), Owner: acctB, Name: "not held"},
	}
	cols := []Collection{
		{Address: nftX, Name: "X", Symbol: "X", Owner: strings.ToLower(acctA)},
		{Address: nftY, Name: "Y", Symbol: "Y", Owner: acctB},
	}

	listable := Listable(registered, held, cols, acctA)
	require.Len(t, listable, 1)
	assert.Equal(t, "fresh", listable[0].Name)
	assert.Equal(t, nftX, listable[0].NFTContract)

	addable := Addable(registered, held, acctA)
	require.Len(t, addable, 2)
	assert.Equal(t, "fresh", addable[0].Name)
	assert.Equal(t, "foreign collection", addable[1].Name)

	owned := OwnedCollections(cols, acctA)
	require.Len(t, owned, 1)
	assert.Equal(t, CollectionView{Address: nftX, Name: "X", Symbol: "X"}, owned[0])
}

func TestOfferFiltersByRole(t *testing.T) {
	offers := []Offer{
		{ItemID: 1, Offerer: acctB, Seller: acctA, Price: big.NewInt(5), IsAccepted: false},
		{ItemID: 1, Offerer: acctC, Seller: acctA, Price: big.NewInt(6), IsAccepted: true},
		{ItemID: 2, Offerer: acctB, Seller: acctC, Price: big.NewInt(7), IsAccepted: true},
	}
	pending := PendingOffersFor(offers, acctA)
	require.Len(t, pending, 1)
	assert.Equal(t, acctB, pending[0].Offerer)

	accepted := AcceptedOffersFor(offers, acctB)
	require.Len(t, accepted, 1)
	assert.Equal(t, uint64(2), accepted[0].ItemID)
}
