package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weatherapp/backend/internal/weather"
)

const defaultTTL = time.Hour

// Connect opens the Redis connection backing the video cache. Pool sizing
// and timeouts are fixed here rather than taken from the URL: video lookups
// are low-volume and a stale answer beats a slow one.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.PoolSize = 10
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}

// VideoCache wraps a Redis client and provides typed get/set for video
// search results, keyed by query and result limit.
type VideoCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVideoCache constructs a VideoCache with a 1-hour TTL.
func NewVideoCache(client *redis.Client) *VideoCache {
	return &VideoCache{client: client, ttl: defaultTTL}
}

// key returns the Redis key for the given query and limit.
func key(query string, limit int) string {
	return "videos:" + strings.ToLower(strings.TrimSpace(query)) + ":" + strconv.Itoa(limit)
}

// Get retrieves cached video results.
// Returns nil, nil on a cache miss (not an error).
func (c *VideoCache) Get(ctx context.Context, query string, limit int) ([]weather.Video, error) {
	val, err := c.client.Get(ctx, key(query, limit)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for query %q: %w", query, err)
	}

	var videos []weather.Video
	if err := json.Unmarshal([]byte(val), &videos); err != nil {
		return nil, fmt.Errorf("unmarshaling cached videos for query %q: %w", query, err)
	}

	return videos, nil
}

// Set stores video results in cache with the configured TTL.
func (c *VideoCache) Set(ctx context.Context, query string, limit int, videos []weather.Video) error {
	if videos == nil {
		return nil
	}

	b, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("marshaling videos for query %q: %w", query, err)
	}

	if err := c.client.Set(ctx, key(query, limit), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for query %q: %w", query, err)
	}

	return nil
}
