package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
)

const catalogCacheKey = "servicedesk:inventory:catalog"

// CatalogSource loads the full inventory catalog.
type CatalogSource interface {
	List(ctx context.Context) ([]domain.InventoryItem, error)
}

// CatalogCache fronts the catalog listing with a short-lived Redis entry.
// Any write to stock must call Invalidate.
type CatalogCache struct {
	source CatalogSource
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogCache builds the cache; a nil client or zero ttl disables caching.
func NewCatalogCache(source CatalogSource, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{source: source, client: client, ttl: ttl, logger: logger}
}

// List returns the cached catalog or loads and caches it.
func (c *CatalogCache) List(ctx context.Context) ([]domain.InventoryItem, error) {
	if !c.enabled() {
		return c.source.List(ctx)
	}

	raw, err := c.client.Get(ctx, catalogCacheKey).Bytes()
	switch {
	case err == nil:
		var items []domain.InventoryItem
		if jsonErr := json.Unmarshal(raw, &items); jsonErr == nil {
			return items, nil
		}
		c.logger.Warn("discarding unreadable catalog cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed", zap.Error(err))
	}

	items, err := c.source.List(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(items); err == nil {
		if err := c.client.Set(ctx, catalogCacheKey, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

// Invalidate drops the cached catalog.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, catalogCacheKey).Err(); err != nil {
		c.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func (c *CatalogCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}
