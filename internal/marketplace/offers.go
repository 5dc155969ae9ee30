package marketplace

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// DefaultFanout bounds concurrent per-item reads when no limit is configured.
const DefaultFanout = 8

// OfferCandidates returns the offer-only items owned by account, in input order.
func OfferCandidates(items []RawItem, account string) []RawItem {
	out := make([]RawItem, 0, len(items))
	for _, it := range items {
		if IsZero(it.Price) && SameAddress(it.Owner, account) {
			out = append(out, it)
		}
	}
	return out
}

// AggregatePendingOffers fetches offers for every offer-only item account owns and
// returns the pending ones addressed to account. Each fetched offer is tagged with
// the item id it was requested for before results are flattened, so attribution does
// not depend on completion order. A failure on any item fails the whole call and
// names every failing item.
func AggregatePendingOffers(ctx context.Context, fetcher OfferFetcher, items []RawItem, account string, limit int) ([]Offer, error) {
	candidates := OfferCandidates(items, account)
	if len(candidates) == 0 {
		return []Offer{}, nil
	}
	if limit <= 0 {
		limit = DefaultFanout
	}

	var (
		mu     sync.Mutex
		byItem = make(map[uint64][]Offer, len(candidates))
		errs   *multierror.Error
	)
	var g errgroup.Group
	g.SetLimit(limit)
	for _, candidate := range candidates {
		itemID := candidate.ID
		g.Go(func() error {
			offers, err := fetcher.GetOffers(ctx, itemID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, &ItemError{ItemID: itemID, Err: err})
				return nil
			}
			tagged := make([]Offer, len(offers))
			for i, o := range offers {
				o.ItemID = itemID
				tagged[i] = o
			}
			byItem[itemID] = tagged
			return nil
		})
	}
	_ = g.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		return nil, integrity(fmt.Errorf("%w: %w", ErrOfferFetchFailed, err),
			fmt.Sprintf("offer fetch failed for %d of %d items", len(errs.Errors), len(candidates)))
	}

	flat := make([]Offer, 0, len(candidates))
	for _, candidate := range candidates {
		flat = append(flat, byItem[candidate.ID]...)
	}
	return PendingOffersFor(flat, account), nil
}

// ResolveCollectionOwners fills Owner on every collection with one concurrent lookup
// per address. Results are matched back by address, not by completion order.
func ResolveCollectionOwners(ctx context.Context, lookup OwnerLookup, cols []Collection, limit int) ([]Collection, error) {
	if len(cols) == 0 {
		return []Collection{}, nil
	}
	if limit <= 0 {
		limit = DefaultFanout
	}

	var (
		mu     sync.Mutex
		owners = make(map[string]string, len(cols))
		errs   *multierror.Error
	)
	var g errgroup.Group
	g.SetLimit(limit)
	for _, col := range cols {
		address := col.Address
		g.Go(func() error {
			owner, err := lookup.CollectionOwner(ctx, address)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("collection %s: %w", address, err))
				return nil
			}
			owners[KeyOf(address, nil).Contract] = owner
			return nil
		})
	}
	_ = g.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		return nil, integrity(fmt.Errorf("%w: %w", ErrOwnerLookupFailed, err),
			fmt.Sprintf("owner lookup failed for %d of %d collections", len(errs.Errors), len(cols)))
	}

	out := make([]Collection, len(cols))
	for i, col := range cols {
		col.Owner = owners[KeyOf(col.Address, nil).Contract]
		out[i] = col
	}
	return out, nil
}
