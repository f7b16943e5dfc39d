// Package ratelimit implements a fixed-window request limiter backed by redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per key in fixed windows
type RateLimiter struct {
	redis *redis.Client
	now   func() time.Time
}

// NewRateLimiter connects to redisURL and verifies the connection
func NewRateLimiter(ctx context.Context, redisURL string) (*RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing redis client
func NewWithClient(client *redis.Client) *RateLimiter {
	return &RateLimiter{redis: client, now: time.Now}
}

// Allow increments key's counter for the current window and reports whether
// the request is within limit, along with the count so far.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if window < time.Millisecond {
		window = time.Millisecond
	}
	bucketKey := windowKey(key, rl.now(), window)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.PExpire(ctx, bucketKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	return count <= limit, count, nil
}

// windowKey names the counter for the window containing now
func windowKey(key string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, now.UnixMilli()/window.Milliseconds())
}

// Close releases the redis connection
func (rl *RateLimiter) Close() error {
	return rl.redis.Close()
}
