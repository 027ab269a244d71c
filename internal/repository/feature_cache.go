package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/model"
)

// FeatureStore is the authoritative source of tenant feature maps.
type FeatureStore interface {
	Features(ctx context.Context, tenantID string) (model.Features, error)
	SetFeatures(ctx context.Context, tenantID string, f model.Features) error
}

// CachedFeatures fronts a FeatureStore with a Redis read-through cache.
// Writes go to the store first and then drop the cached entry.  Any Redis
// failure falls through to the store.
type CachedFeatures struct {
	store FeatureStore
	rdb   *redis.Client
	cfg   config.FeatureCacheConfig
}

// NewCachedFeatures wraps store.  A nil client or a disabled config returns
// a pass-through wrapper.
func NewCachedFeatures(store FeatureStore, rdb *redis.Client, cfg config.FeatureCacheConfig) *CachedFeatures {
	if !cfg.Enabled {
		rdb = nil
	}
	return &CachedFeatures{store: store, rdb: rdb, cfg: cfg}
}

func (c *CachedFeatures) key(tenantID string) string { return c.cfg.Prefix + ":" + tenantID }

// Features returns the tenant's map, from cache when possible.
func (c *CachedFeatures) Features(ctx context.Context, tenantID string) (model.Features, error) {
	if c.rdb != nil {
		if bs, err := c.rdb.Get(ctx, c.key(tenantID)).Bytes(); err == nil {
			var f model.Features
			if json.Unmarshal(bs, &f) == nil {
				return f, nil
			}
		}
	}
	f, err := c.store.Features(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if c.rdb != nil {
		if bs, err := json.Marshal(f); err == nil {
			_ = c.rdb.Set(ctx, c.key(tenantID), bs, c.cfg.TTL).Err()
		}
	}
	return f, nil
}

// SetFeatures writes through to the store and invalidates the cache entry.
func (c *CachedFeatures) SetFeatures(ctx context.Context, tenantID string, f model.Features) error {
	if err := c.store.SetFeatures(ctx, tenantID, f); err != nil {
		return err
	}
	return c.Invalidate(ctx, tenantID)
}

// Invalidate drops the cached map for tenantID.
func (c *CachedFeatures) Invalidate(ctx context.Context, tenantID string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(tenantID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
