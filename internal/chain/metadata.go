package chain

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ggonzalez94/nftmp-cli/internal/cache"
	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
)

// Fetcher returns the raw document behind a token URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Document is the part of an ERC-721 metadata JSON the marketplace shows.
type Document struct {
	Name        string
	Description string
	Image       string
}

// MetadataResolver loads token metadata documents, caching them by URI. The cache
// may be nil.
type MetadataResolver struct {
	fetcher Fetcher
	cache   *cache.Store
	ttl     time.Duration
}

func NewMetadataResolver(fetcher Fetcher, store *cache.Store, ttl time.Duration) *MetadataResolver {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &MetadataResolver{fetcher: fetcher, cache: store, ttl: ttl}
}

func (r *MetadataResolver) Resolve(ctx context.Context, uri string) (Document, error) {
	buf, _, err := r.cache.Remember(ctx, uri, r.ttl, func(ctx context.Context) ([]byte, error) {
		buf, err := r.fetcher.Fetch(ctx, uri)
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(buf) {
			return nil, clierr.New(clierr.CodeIntegrity, "metadata at "+uri+" is not valid JSON")
		}
		return buf, nil
	})
	if err != nil {
		return Document{}, err
	}
	doc := gjson.ParseBytes(buf)
	return Document{
		Name:        doc.Get("name").String(),
		Description: doc.Get("description").String(),
		Image:       doc.Get("image").String(),
	}, nil
}
