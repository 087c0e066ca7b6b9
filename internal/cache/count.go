package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CountCachePrefix is the key prefix for per-place active comment totals
	CountCachePrefix = "comments:count:place:"

	// CountCacheTTL bounds how stale a total can get if an invalidation is lost
	CountCacheTTL = 10 * time.Minute
)

// CountCache holds the active comment total of each place.
type CountCache interface {
	// Get returns (count, found, error). found=false if not cached.
	Get(ctx context.Context, placeID string) (int, bool, error)
	Set(ctx context.Context, placeID string, count int) error
	Delete(ctx context.Context, placeID string) error
}

// RedisCountCache implements CountCache with plain string keys.
type RedisCountCache struct {
	client *redis.Client
}

// NewCountCache creates a new CountCache backed by Redis.
func NewCountCache(client *redis.Client) CountCache {
	return &RedisCountCache{client: client}
}

func countKey(placeID string) string {
	return CountCachePrefix + placeID
}

func (c *RedisCountCache) Get(ctx context.Context, placeID string) (int, bool, error) {
	n, err := c.client.Get(ctx, countKey(placeID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		log.Printf("[CountCache] Get FAILED: place=%s err=%v", placeID, err)
		return 0, false, fmt.Errorf("get count: %w", err)
	}
	return n, true, nil
}

func (c *RedisCountCache) Set(ctx context.Context, placeID string, count int) error {
	if err := c.client.Set(ctx, countKey(placeID), count, CountCacheTTL).Err(); err != nil {
		log.Printf("[CountCache] Set FAILED: place=%s err=%v", placeID, err)
		return fmt.Errorf("set count: %w", err)
	}
	return nil
}

func (c *RedisCountCache) Delete(ctx context.Context, placeID string) error {
	if err := c.client.Del(ctx, countKey(placeID)).Err(); err != nil {
		log.Printf("[CountCache] Delete FAILED: place=%s err=%v", placeID, err)
		return fmt.Errorf("delete count: %w", err)
	}
	return nil
}
