package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

func (c *Client) LoadItems(ctx context.Context) ([]marketplace.RawItem, []marketplace.Metadata, error) {
	raws, err := c.marketItems(ctx)
	if err != nil {
		return nil, nil, err
	}
	metas, err := c.itemMetadata(ctx, raws)
	if err != nil {
		return nil, nil, err
	}
	return raws, metas, nil
}

func (c *Client) GetItem(ctx context.Context, id uint64) (marketplace.RawItem, marketplace.Metadata, error) {
	out, err := c.call(ctx, marketABI, c.market, "getItem", new(big.Int).SetUint64(id))
	if err != nil {
		return marketplace.RawItem{}, marketplace.Metadata{}, err
	}
	tuple := *abi.ConvertType(out[0], new(marketItemTuple)).(*marketItemTuple)
	if tuple.NftContract == (common.Address{}) || tuple.ItemId == nil || tuple.ItemId.Uint64() != id {
		return marketplace.RawItem{}, marketplace.Metadata{}, clierr.Wrap(clierr.CodePrecondition, fmt.Sprintf("item %d", id), marketplace.ErrItemNotFound)
	}
	raw := rawItem(tuple)
	meta, err := c.tokenMetadata(ctx, tuple.NftContract, tuple.TokenId)
	if err != nil {
		return marketplace.RawItem{}, marketplace.Metadata{}, err
	}
	return raw, meta, nil
}

func (c *Client) GetOffers(ctx context.Context, itemID uint64) ([]marketplace.Offer, error) {
	out, err := c.call(ctx, marketABI, c.market, "getOffers", new(big.Int).SetUint64(itemID))
	if err != nil {
		return nil, err
	}
	return offers(out[0]), nil
}

func (c *Client) GetAccountsOffers(ctx context.Context, account string) ([]marketplace.Offer, error) {
	out, err := c.call(ctx, marketABI, c.market, "getAccountsOffers", common.HexToAddress(account))
	if err != nil {
		return nil, err
	}
	return offers(out[0]), nil
}

// LoadCollections lists registered collections with name and symbol. Owners are
// left for CollectionOwner.
func (c *Client) LoadCollections(ctx context.Context) ([]marketplace.Collection, error) {
	addrs, err := c.collectionAddresses(ctx)
	if err != nil {
		return nil, err
	}
	cols := make([]marketplace.Collection, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Fanout)
	for i, addr := range addrs {
		g.Go(func() error {
			name, err := c.callString(gctx, addr, "name")
			if err != nil {
				return err
			}
			symbol, err := c.callString(gctx, addr, "symbol")
			if err != nil {
				return err
			}
			cols[i] = marketplace.Collection{Address: addr.Hex(), Name: name, Symbol: symbol}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cols, nil
}

func (c *Client) CollectionOwner(ctx context.Context, collection string) (string, error) {
	out, err := c.call(ctx, collectionABI, common.HexToAddress(collection), "owner")
	if err != nil {
		return "", err
	}
	return out[0].(common.Address).Hex(), nil
}

// LoadItemsForListing returns the registered items and every token account holds
// across the registered collections.
func (c *Client) LoadItemsForListing(ctx context.Context, account string) ([]marketplace.RawItem, []marketplace.ListableItem, error) {
	raws, err := c.marketItems(ctx)
	if err != nil {
		return nil, nil, err
	}
	addrs, err := c.collectionAddresses(ctx)
	if err != nil {
		return nil, nil, err
	}
	var held []marketplace.ListableItem
	for _, addr := range addrs {
		tokens, err := c.heldTokens(ctx, addr, common.HexToAddress(account))
		if err != nil {
			return nil, nil, err
		}
		held = append(held, tokens...)
	}
	return raws, held, nil
}

func (c *Client) LoadItemsForAdding(ctx context.Context, collection, account string) ([]marketplace.ListableItem, error) {
	return c.heldTokens(ctx, common.HexToAddress(collection), common.HexToAddress(account))
}

func (c *Client) IsMarketplaceOwner(ctx context.Context, account string) (bool, error) {
	out, err := c.call(ctx, marketABI, c.market, "owner")
	if err != nil {
		return false, err
	}
	return marketplace.SameAddress(out[0].(common.Address).Hex(), account), nil
}

func (c *Client) MarketplaceBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, c.market, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read marketplace balance", err)
	}
	return balance, nil
}

func (c *Client) marketItems(ctx context.Context) ([]marketplace.RawItem, error) {
	out, err := c.call(ctx, marketABI, c.market, "fetchMarketItems")
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]marketItemTuple)).(*[]marketItemTuple)
	raws := make([]marketplace.RawItem, 0, len(tuples))
	for _, t := range tuples {
		raws = append(raws, rawItem(t))
	}
	return raws, nil
}

func (c *Client) collectionAddresses(ctx context.Context) ([]common.Address, error) {
	out, err := c.call(ctx, marketABI, c.market, "getCollections")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// itemMetadata resolves one metadata record per distinct token behind raws.
func (c *Client) itemMetadata(ctx context.Context, raws []marketplace.RawItem) ([]marketplace.Metadata, error) {
	var (
		mu    sync.Mutex
		seen  = make(map[marketplace.TokenKey]bool, len(raws))
		metas = make([]marketplace.Metadata, 0, len(raws))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Fanout)
	for _, raw := range raws {
		if seen[raw.Key()] {
			continue
		}
		seen[raw.Key()] = true
		g.Go(func() error {
			meta, err := c.tokenMetadata(gctx, common.HexToAddress(raw.NFTContract), raw.TokenID)
			if err != nil {
				return fmt.Errorf("item %d: %w", raw.ID, err)
			}
			mu.Lock()
			metas = append(metas, meta)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return metas, nil
}

func (c *Client) heldTokens(ctx context.Context, collection, account common.Address) ([]marketplace.ListableItem, error) {
	out, err := c.call(ctx, collectionABI, collection, "totalSupply")
	if err != nil {
		return nil, err
	}
	supply := out[0].(*big.Int)
	if !supply.IsInt64() || supply.Int64() > c.opts.MaxSupply {
		return nil, clierr.Wrap(clierr.CodeIntegrity,
			fmt.Sprintf("collection %s reports a supply of %s, above the scan limit of %d", collection.Hex(), supply, c.opts.MaxSupply),
			marketplace.ErrMalformedRecord)
	}

	// Token ids are assigned sequentially from 1 by mint.
	n := supply.Int64()
	found := make([]*marketplace.ListableItem, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Fanout)
	for i := int64(0); i < n; i++ {
		tokenID := big.NewInt(i + 1)
		g.Go(func() error {
			out, err := c.call(gctx, collectionABI, collection, "ownerOf", tokenID)
			if err != nil {
				return err
			}
			owner := out[0].(common.Address)
			if owner != account {
				return nil
			}
			meta, err := c.tokenMetadata(gctx, collection, tokenID)
			if err != nil {
				return err
			}
			found[i] = &marketplace.ListableItem{
				NFTContract: collection.Hex(),
				TokenID:     tokenID,
				Owner:       owner.Hex(),
				Name:        meta.Name,
				Description: meta.Description,
				Image:       meta.Image,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	held := make([]marketplace.ListableItem, 0, len(found))
	for _, item := range found {
		if item != nil {
			held = append(held, *item)
		}
	}
	return held, nil
}

func (c *Client) tokenMetadata(ctx context.Context, contract common.Address, tokenID *big.Int) (marketplace.Metadata, error) {
	meta := marketplace.Metadata{NFTContract: contract.Hex(), TokenID: tokenID}
	if c.metadata == nil {
		return meta, nil
	}
	uri, err := c.callString(ctx, contract, "tokenURI", tokenID)
	if err != nil {
		return marketplace.Metadata{}, err
	}
	doc, err := c.metadata.Resolve(ctx, uri)
	if err != nil {
		return marketplace.Metadata{}, err
	}
	meta.Name, meta.Description, meta.Image = doc.Name, doc.Description, doc.Image
	return meta, nil
}

func (c *Client) callString(ctx context.Context, contract common.Address, method string, args ...any) (string, error) {
	out, err := c.call(ctx, collectionABI, contract, method, args...)
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", clierr.New(clierr.CodeIntegrity, method+" did not return a string")
	}
	return s, nil
}

func rawItem(t marketItemTuple) marketplace.RawItem {
	return marketplace.RawItem{
		ID:          t.ItemId.Uint64(),
		NFTContract: t.NftContract.Hex(),
		TokenID:     t.TokenId,
		Owner:       t.Owner.Hex(),
		Price:       t.Price,
	}
}

func offers(v any) []marketplace.Offer {
	tuples := *abi.ConvertType(v, new([]offerTuple)).(*[]offerTuple)
	out := make([]marketplace.Offer, 0, len(tuples))
	for _, t := range tuples {
		o := marketplace.Offer{
			Offerer:     t.Offerer.Hex(),
			Seller:      t.Seller.Hex(),
			Price:       t.Price,
			IsAccepted:  t.IsAccepted,
			NFTContract: t.NftContract.Hex(),
			TokenID:     t.TokenId,
		}
		if t.ItemId != nil {
			o.ItemID = t.ItemId.Uint64()
		}
		out = append(out, o)
	}
	return out
}
