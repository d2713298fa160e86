package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
)

const inStockCacheKey = "catalog:in-stock"

// JSONCache is the subset of cache.Cache used here.
type JSONCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedLister serves ListInStock from a cache, refilling from next on miss.
// Cache errors degrade to a direct read.
type CachedLister struct {
	next  Lister
	cache JSONCache
	ttl   time.Duration
}

// NewCachedLister wraps next with cache for ttl.
func NewCachedLister(next Lister, cache JSONCache, ttl time.Duration) *CachedLister {
	return &CachedLister{next: next, cache: cache, ttl: ttl}
}

func (c *CachedLister) ListInStock(ctx context.Context) ([]Item, error) {
	var items []Item
	if c.cache.Get(ctx, inStockCacheKey, &items) {
		return items, nil
	}
	items, err := c.next.ListInStock(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, inStockCacheKey, items, c.ttl); err != nil {
		logger.FromContext(ctx).Warn("catalog cache set failed", zap.Error(err))
	}
	return items, nil
}

// Invalidate drops the cached snapshot after stock changes.
func (c *CachedLister) Invalidate(ctx context.Context) {
	if err := c.cache.Del(ctx, inStockCacheKey); err != nil {
		logger.FromContext(ctx).Warn("catalog cache invalidate failed", zap.Error(err))
	}
}
