package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"loomgraph/internal/logger"
	"loomgraph/internal/redis"
)

const (
	// FeedCachePrefix is the key prefix for user feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of posts to cache per user
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// PostScore is a feed entry: the post uid and its creation timestamp,
// which doubles as the sorted set score.
type PostScore struct {
	PostUID   string
	Timestamp int64
}

// FeedCache defines the interface for feed cache operations.
// Using an interface enables testing with mocks and potential future backends.
type FeedCache interface {
	// AddPost adds a post to a user's feed cache.
	// Uses pipeline: ZADD + ZREMRANGEBYRANK (maintain cap) + EXPIRE (refresh TTL)
	AddPost(ctx context.Context, userUID, postUID string, timestamp int64) error

	// RemovePost removes a post from a user's feed cache.
	RemovePost(ctx context.Context, userUID, postUID string) error

	// GetFeed returns up to limit post uids from a user's feed cache,
	// newest first, skipping the first skip entries.
	GetFeed(ctx context.Context, userUID string, skip, limit int) ([]string, error)

	// WarmCache bulk-inserts posts into a user's feed cache.
	WarmCache(ctx context.Context, userUID string, posts []PostScore) error

	// Size returns the number of posts in a user's feed cache.
	Size(ctx context.Context, userUID string) (int64, error)

	// Exists checks if a user has a feed cache entry. False means the
	// cache was never built or its TTL lapsed; the service should fall
	// back to the graph and warm it.
	Exists(ctx context.Context, userUID string) (bool, error)

	// Invalidate drops a user's whole feed cache.
	Invalidate(ctx context.Context, userUID string) error
}

// RedisFeedCache implements FeedCache using Redis Sorted Sets.
type RedisFeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{client: client}
}

func feedKey(userUID string) string {
	return FeedCachePrefix + userUID
}

// AddPost adds a post to a user's feed cache using a pipeline.
// Pipeline: ZADD + ZREMRANGEBYRANK (trim to cap) + EXPIRE (refresh TTL)
func (c *RedisFeedCache) AddPost(ctx context.Context, userUID, postUID string, timestamp int64) error {
	key := feedKey(userUID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(timestamp),
		Member: postUID,
	})
	// Keep the newest FeedCacheCap entries; rank 0 is the oldest.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Get().Warn("feed cache add failed",
			zap.String("user_uid", userUID),
			zap.String("post_uid", postUID),
			zap.Error(err))
		return fmt.Errorf("add post to feed: %w", err)
	}
	return nil
}

// RemovePost removes a post from a user's feed cache.
func (c *RedisFeedCache) RemovePost(ctx context.Context, userUID, postUID string) error {
	if err := c.client.ZRem(ctx, feedKey(userUID), postUID).Err(); err != nil {
		logger.Get().Warn("feed cache remove failed",
			zap.String("user_uid", userUID),
			zap.String("post_uid", postUID),
			zap.Error(err))
		return fmt.Errorf("remove post from feed: %w", err)
	}
	return nil
}

// GetFeed reads a page of post uids, newest first. TTL is refreshed on
// access so active readers keep their cache alive.
func (c *RedisFeedCache) GetFeed(ctx context.Context, userUID string, skip, limit int) ([]string, error) {
	key := feedKey(userUID)

	uids, err := c.client.ZRevRange(ctx, key, int64(skip), int64(skip+limit-1)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("get feed: %w", err)
	}

	c.client.Expire(ctx, key, FeedCacheTTL)
	return uids, nil
}

// WarmCache bulk-inserts posts into a user's feed cache using a pipeline.
func (c *RedisFeedCache) WarmCache(ctx context.Context, userUID string, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}
	key := feedKey(userUID)

	members := make([]goredis.Z, len(posts))
	for i, p := range posts {
		members[i] = goredis.Z{
			Score:  float64(p.Timestamp),
			Member: p.PostUID,
		}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Get().Warn("feed cache warm failed",
			zap.String("user_uid", userUID),
			zap.Int("posts", len(posts)),
			zap.Error(err))
		return fmt.Errorf("warm cache: %w", err)
	}

	logger.Get().Debug("feed cache warmed",
		zap.String("user_uid", userUID),
		zap.Int("posts", len(posts)))
	return nil
}

// Size returns the number of posts in a user's feed cache.
func (c *RedisFeedCache) Size(ctx context.Context, userUID string) (int64, error) {
	size, err := c.client.ZCard(ctx, feedKey(userUID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get cache size: %w", err)
	}
	return size, nil
}

// Exists checks if a user has a feed cache entry.
func (c *RedisFeedCache) Exists(ctx context.Context, userUID string) (bool, error) {
	exists, err := c.client.Exists(ctx, feedKey(userUID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return exists > 0, nil
}

// Invalidate drops the whole cached feed, forcing the next read to
// rebuild from the graph.
func (c *RedisFeedCache) Invalidate(ctx context.Context, userUID string) error {
	if err := c.client.Del(ctx, feedKey(userUID)).Err(); err != nil {
		return fmt.Errorf("invalidate feed cache: %w", err)
	}
	return nil
}
