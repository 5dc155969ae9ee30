package marketplace

import (
	"fmt"
)

// Normalize joins raw items with their metadata by (contract, token id). Every item
// must resolve to exactly one metadata record. Output keeps the order of raws.
func Normalize(raws []RawItem, metas []Metadata) ([]Item, error) {
	index, err := indexMetadata(metas)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		if err := checkRaw(raw); err != nil {
			return nil, err
		}
		meta, ok := index[raw.Key()]
		if !ok {
			return nil, integrity(&ItemError{ItemID: raw.ID, Err: ErrMetadataNotFound},
				fmt.Sprintf("no metadata for %s", raw.Key()))
		}
		items = append(items, merge(raw, meta))
	}
	return items, nil
}

// NormalizePositional pairs raws[i] with metas[i]. It is only for sources that
// guarantee ordering, and each pair is still key-checked.
func NormalizePositional(raws []RawItem, metas []Metadata) ([]Item, error) {
	if len(raws) != len(metas) {
		return nil, integrity(ErrMetadataNotFound,
			fmt.Sprintf("got %d items but %d metadata records", len(raws), len(metas)))
	}
	items := make([]Item, 0, len(raws))
	for i, raw := range raws {
		if err := checkRaw(raw); err != nil {
			return nil, err
		}
		if raw.Key() != metas[i].Key() {
			return nil, integrity(&ItemError{ItemID: raw.ID, Err: ErrMetadataNotFound},
				fmt.Sprintf("metadata at position %d is for %s, want %s", i, metas[i].Key(), raw.Key()))
		}
		items = append(items, merge(raw, metas[i]))
	}
	return items, nil
}

func indexMetadata(metas []Metadata) (map[TokenKey]Metadata, error) {
	index := make(map[TokenKey]Metadata, len(metas))
	for _, meta := range metas {
		key := meta.Key()
		if _, dup := index[key]; dup {
			return nil, integrity(ErrAmbiguousMetadata, fmt.Sprintf("duplicate metadata for %s", key))
		}
		index[key] = meta
	}
	return index, nil
}

func checkRaw(raw RawItem) error {
	switch {
	case raw.TokenID == nil:
		return integrity(&ItemError{ItemID: raw.ID, Err: ErrMalformedRecord}, "item has no token id")
	case raw.Price == nil || raw.Price.Sign() < 0:
		return integrity(&ItemError{ItemID: raw.ID, Err: ErrMalformedRecord}, "item has no valid price")
	}
	return nil
}

func merge(raw RawItem, meta Metadata) Item {
	return Item{
		ID:          raw.ID,
		NFTContract: raw.NFTContract,
		TokenID:     raw.TokenID,
		Owner:       raw.Owner,
		Price:       raw.Price,
		Name:        meta.Name,
		Description: meta.Description,
		Image:       meta.Image,
	}
}
