package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/store"
)

const keyPrefix = "helper-features:"

// FeatureCache is a read-through, write-through cache in front of a durable
// feature store. Redis failures are logged and fall back to the backing store.
type FeatureCache struct {
	next store.FeatureStore
	rdb  Client
	ttl  time.Duration
	log  *zap.Logger
}

var _ store.FeatureStore = (*FeatureCache)(nil)

// NewFeatureCache wraps next. A non-positive ttl keeps entries until evicted.
func NewFeatureCache(next store.FeatureStore, rdb Client, ttl time.Duration, log *zap.Logger) *FeatureCache {
	return &FeatureCache{
		next: next,
		rdb:  rdb,
		ttl:  max(ttl, 0),
		log:  logger.WithFields(log, zap.String("component", "feature-cache")),
	}
}

func key(helperID string) string {
	return keyPrefix + helperID
}

func (c *FeatureCache) GetFeatures(ctx context.Context, helperID string) (*features.Vector, error) {
	raw, err := c.rdb.Get(ctx, key(helperID)).Bytes()
	switch {
	case err == nil:
		var v features.Vector
		if err := json.Unmarshal(raw, &v); err == nil {
			return &v, nil
		}
		c.log.Warn("dropping undecodable cache entry", zap.String(logger.FieldHelperID, helperID), zap.Error(err))
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("cache read failed", zap.String(logger.FieldHelperID, helperID), zap.Error(err))
	}

	v, err := c.next.GetFeatures(ctx, helperID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, helperID, v)
	return v, nil
}

func (c *FeatureCache) PutFeatures(ctx context.Context, helperID string, v *features.Vector) error {
	if err := c.next.PutFeatures(ctx, helperID, v); err != nil {
		return err
	}
	c.fill(ctx, helperID, v)
	return nil
}

func (c *FeatureCache) CountFeatures(ctx context.Context) (int, error) {
	return c.next.CountFeatures(ctx)
}

func (c *FeatureCache) fill(ctx context.Context, helperID string, v *features.Vector) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("encoding cache entry failed", zap.String(logger.FieldHelperID, helperID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key(helperID), payload, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String(logger.FieldHelperID, helperID), zap.Error(err))
	}
}
