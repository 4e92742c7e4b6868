package jobs

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
)

// CatalogueCache keeps parsed catalogues for a while so repeated jobs and the
// trainer do not re-read the same file. Callers always receive a fresh clone.
type CatalogueCache struct {
	cache         *cache.Cache
	extraBuyLimit float64
	load          func(path string, extraBuyLimitFraction float64) (catalogue.Catalogue, error)
}

// NewCatalogueCache caches catalogues for ttl; ttl <= 0 uses the default.
func NewCatalogueCache(ttl time.Duration, extraBuyLimitFraction float64) *CatalogueCache {
	if ttl <= 0 {
		ttl = constants.DefaultCatalogueCacheMinutes * time.Minute
	}
	return &CatalogueCache{
		cache:         cache.New(ttl, 2*ttl),
		extraBuyLimit: extraBuyLimitFraction,
		load:          catalogue.Load,
	}
}

// Load returns a private copy of the catalogue at path.
func (c *CatalogueCache) Load(path string) (catalogue.Catalogue, error) {
	key := fmt.Sprintf("%s|%g", path, c.extraBuyLimit)
	if v, ok := c.cache.Get(key); ok {
		return v.(catalogue.Catalogue).Clone(), nil
	}
	items, err := c.load(path, c.extraBuyLimit)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, items)
	return items.Clone(), nil
}

// Forget drops every cached catalogue.
func (c *CatalogueCache) Forget() {
	c.cache.Flush()
}
