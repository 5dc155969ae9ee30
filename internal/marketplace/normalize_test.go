package marketplace

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
)

func TestNormalizeKeyedMergeIgnoresMetadataOrder(t *testing.T) {
	raws := []RawItem{
		{ID: 1, NFTContract: nftX, TokenID: big.NewInt(7), Owner: acctA, Price: big.NewInt(0)},
		{ID: 2, NFTContract: nftY, TokenID: big.NewInt(7), Owner: acctB, Price: big.NewInt(500)},
	}
	metas := []Metadata{
		{NFTContract: nftY, TokenID: big.NewInt(7), Name: "second"},
		{NFTContract: "0x" + strings.ToUpper(nftX[2:]), TokenID: big.NewInt(7), Name: "first"},
	}

	items, err := Normalize(raws, metas)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(1), items[0].ID)
	assert.Equal(t, "first", items[0].Name)
	assert.Equal(t, uint64(2), items[1].ID)
	assert.Equal(t, "second", items[1].Name)
}

func TestNormalizeMissingMetadataIsIntegrityError(t *testing.T) {
	raws := []RawItem{{ID: 9, NFTContract: nftX, TokenID: big.NewInt(1), Owner: acctA, Price: big.NewInt(1)}}
	metas := []Metadata{{NFTContract: nftX, TokenID: big.NewInt(2), Name: "other"}}

	_, err := Normalize(raws, metas)
	require.Error(t, err)
	assert.True(t, clierr.HasCode(err, clierr.CodeIntegrity))
	assert.ErrorIs(t, err, ErrMetadataNotFound)

	var itemErr *ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, uint64(9), itemErr.ItemID)
}

func TestNormalizeRejectsDuplicateMetadata(t *testing.T) {
	raws := []RawItem{{ID: 1, NFTContract: nftX, TokenID: big.NewInt(1), Owner: acctA, Price: big.NewInt(1)}}
	metas := []Metadata{
		{NFTContract: nftX, TokenID: big.NewInt(1), Name: "a"},
		{NFTContract: strings.ToUpper(nftX), TokenID: big.NewInt(1), Name: "b"},
	}
	_, err := Normalize(raws, metas)
	assert.ErrorIs(t, err, ErrAmbiguousMetadata)
}

func TestNormalizeRejectsMalformedRecords(t *testing.T) {
	metas := []Metadata{{NFTContract: nftX, TokenID: big.NewInt(1)}}
	_, err := Normalize([]RawItem{{ID: 3, NFTContract: nftX, TokenID: big.NewInt(1), Price: big.NewInt(-1)}}, metas)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = Normalize([]RawItem{{ID: 3, NFTContract: nftX, Price: big.NewInt(1)}}, metas)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNormalizePositionalChecksKeys(t *testing.T) {
	raws := []RawItem{
		{ID: 1, NFTContract: nftX, TokenID: big.NewInt(1), Owner: acctA, Price: big.NewInt(0)},
		{ID: 2, NFTContract: nftX, TokenID: big.NewInt(2), Owner: acctA, Price: big.NewInt(0)},
	}
	ordered := []Metadata{
		{NFTContract: nftX, TokenID: big.NewInt(1), Name: "one"},
		{NFTContract: nftX, TokenID: big.NewInt(2), Name: "two"},
	}
	items, err := NormalizePositional(raws, ordered)
	require.NoError(t, err)
	assert.Equal(t, "two", items[1].Name)

	swapped := []Metadata{ordered[1], ordered[0]}
	_, err = NormalizePositional(raws, swapped)
	require.Error(t, err)
	assert.True(t, clierr.HasCode(err, clierr.CodeIntegrity))

	_, err = NormalizePositional(raws, ordered[:1])
	assert.True(t, clierr.HasCode(err, clierr.CodeIntegrity))
}

func TestNormalizeLeavesNoFieldUnset(t *testing.T) {
	f := newFakeClient()
	f.addItem(1, nftX, 1, acctA, 0, "alpha")
	f.addItem(2, nftY, 1, acctB, 10, "beta")

	items, err := Normalize(f.items, f.metas)
	require.NoError(t, err)
	require.Len(t, items, len(f.items))
	for _, it := range items {
		assert.NotEmpty(t, it.Name)
		assert.NotEmpty(t, it.Description)
		assert.NotEmpty(t, it.Image)
	}
}
