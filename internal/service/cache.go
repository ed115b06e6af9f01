package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dirigovotes/dirigo/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "dirigo:cache:"

// CacheService is a Redis cache-aside layer. A nil client turns every
// operation into a miss/no-op.
type CacheService struct {
	rdb *redis.Client
}

func NewCacheService(rdb *redis.Client) *CacheService {
	return &CacheService{rdb: rdb}
}

func (c *CacheService) Enabled() bool {
	return c.rdb != nil
}

// GetJSON decodes the cached value into dest and reports whether it was found.
func (c *CacheService) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c.rdb == nil {
		return false, nil
	}

	data, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.AnalyticsCache.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.AnalyticsCache.WithLabelValues("error").Inc()
		return false, err
	}

	err = json.Unmarshal(data, dest)
	if err != nil {
		return false, err
	}

	metrics.AnalyticsCache.WithLabelValues("hit").Inc()
	return true, nil
}

func (c *CacheService) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKeyPrefix+key, b, ttl).Err()
}
