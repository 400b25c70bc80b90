package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository keeps fixed-window hit counters in Redis so limits hold
// across server replicas.
type RateLimitRepository struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRepository constructs the repository. A nil client is allowed;
// Enabled then reports false and callers keep counters in memory.
func NewRateLimitRepository(client *redis.Client, prefix string) *RateLimitRepository {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimitRepository{client: client, prefix: prefix}
}

// Enabled reports whether a Redis client is configured.
func (r *RateLimitRepository) Enabled() bool {
	return r != nil && r.client != nil
}

// Hit increments the counter for key and returns the count within the
// current window together with the time left until it resets.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	fullKey := fmt.Sprintf("%s:%s", r.prefix, key)

	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr %s: %w", fullKey, err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis expire %s: %w", fullKey, err)
		}
		return count, window, nil
	}

	ttl, err := r.client.PTTL(ctx, fullKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis pttl %s: %w", fullKey, err)
	}
	if ttl < 0 {
		// Counter lost its expiry; restart the window.
		if err := r.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis expire %s: %w", fullKey, err)
		}
		ttl = window
	}
	return count, ttl, nil
}

// Reset clears the counter for key.
func (r *RateLimitRepository) Reset(ctx context.Context, key string) error {
	fullKey := fmt.Sprintf("%s:%s", r.prefix, key)
	if err := r.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", fullKey, err)
	}
	return nil
}
