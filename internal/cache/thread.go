package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yong-jelly/usemap-sub002/internal/model"
)

const (
	// ThreadCachePrefix is the key prefix for materialized comment threads
	ThreadCachePrefix = "thread:place:"

	// DefaultThreadCacheTTL is how long an untouched thread stays cached
	DefaultThreadCacheTTL = 30 * time.Minute
)

// ThreadCache holds the structured comment thread each viewer has loaded for
// a place, so local edits can be applied without refetching every page.
type ThreadCache interface {
	// Get returns the cached thread. found=false if nothing is cached.
	Get(ctx context.Context, placeID, viewerID string) (tree []model.Comment, found bool, err error)

	// Set stores the thread and records the viewer in the place's index.
	// Uses pipeline: SET + SADD + EXPIRE
	Set(ctx context.Context, placeID, viewerID string, tree []model.Comment) error

	// Delete drops one viewer's thread.
	Delete(ctx context.Context, placeID, viewerID string) error

	// InvalidatePlace drops every viewer's thread for a place except
	// exceptViewer's. Returns how many threads were dropped.
	InvalidatePlace(ctx context.Context, placeID, exceptViewer string) (int, error)
}

// RedisThreadCache implements ThreadCache with one JSON string per viewer and
// a set per place naming the viewers that have one.
type RedisThreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewThreadCache creates a new ThreadCache backed by Redis.
func NewThreadCache(client *redis.Client, ttl time.Duration) ThreadCache {
	if ttl <= 0 {
		ttl = DefaultThreadCacheTTL
	}
	return &RedisThreadCache{client: client, ttl: ttl}
}

// threadKey returns the Redis key for a viewer's thread on a place.
// Anonymous viewers share the "anon" slot.
func threadKey(placeID, viewerID string) string {
	return fmt.Sprintf("%s%s:viewer:%s", ThreadCachePrefix, placeID, viewerSlot(viewerID))
}

// viewersKey returns the Redis key of the set of viewers cached for a place.
func viewersKey(placeID string) string {
	return fmt.Sprintf("%s%s:viewers", ThreadCachePrefix, placeID)
}

func viewerSlot(viewerID string) string {
	if viewerID == "" {
		return "anon"
	}
	return viewerID
}

func (c *RedisThreadCache) Get(ctx context.Context, placeID, viewerID string) ([]model.Comment, bool, error) {
	key := threadKey(placeID, viewerID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		log.Printf("[ThreadCache] Get FAILED: place=%s viewer=%s err=%v", placeID, viewerSlot(viewerID), err)
		return nil, false, fmt.Errorf("get thread: %w", err)
	}

	var tree []model.Comment
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, false, fmt.Errorf("decode thread: %w", err)
	}
	for i := range tree {
		if tree[i].Replies == nil {
			tree[i].Replies = []model.Comment{}
		}
	}
	return tree, true, nil
}

func (c *RedisThreadCache) Set(ctx context.Context, placeID, viewerID string, tree []model.Comment) error {
	key := threadKey(placeID, viewerID)
	startTime := time.Now()

	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode thread: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, viewersKey(placeID), viewerSlot(viewerID))
	pipe.Expire(ctx, viewersKey(placeID), c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[ThreadCache] Set FAILED: place=%s viewer=%s err=%v", placeID, viewerSlot(viewerID), err)
		return fmt.Errorf("set thread: %w", err)
	}

	log.Printf("[ThreadCache] Set OK: place=%s viewer=%s roots=%d bytes=%d duration=%v",
		placeID, viewerSlot(viewerID), len(tree), len(data), time.Since(startTime))
	return nil
}

func (c *RedisThreadCache) Delete(ctx context.Context, placeID, viewerID string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, threadKey(placeID, viewerID))
	pipe.SRem(ctx, viewersKey(placeID), viewerSlot(viewerID))

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[ThreadCache] Delete FAILED: place=%s viewer=%s err=%v", placeID, viewerSlot(viewerID), err)
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

func (c *RedisThreadCache) InvalidatePlace(ctx context.Context, placeID, exceptViewer string) (int, error) {
	startTime := time.Now()

	viewers, err := c.client.SMembers(ctx, viewersKey(placeID)).Result()
	if err != nil {
		log.Printf("[ThreadCache] InvalidatePlace FAILED: place=%s err=%v", placeID, err)
		return 0, fmt.Errorf("list cached viewers: %w", err)
	}

	keep := viewerSlot(exceptViewer)
	var keys, dropped []string
	for _, v := range viewers {
		if exceptViewer != "" && v == keep {
			continue
		}
		keys = append(keys, fmt.Sprintf("%s%s:viewer:%s", ThreadCachePrefix, placeID, v))
		dropped = append(dropped, v)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, keys...)
	members := make([]interface{}, len(dropped))
	for i, v := range dropped {
		members[i] = v
	}
	pipe.SRem(ctx, viewersKey(placeID), members...)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[ThreadCache] InvalidatePlace FAILED: place=%s err=%v", placeID, err)
		return 0, fmt.Errorf("invalidate threads: %w", err)
	}

	log.Printf("[ThreadCache] InvalidatePlace OK: place=%s dropped=%d kept=%s duration=%v",
		placeID, len(keys), keep, time.Since(startTime))
	return len(keys), nil
}
