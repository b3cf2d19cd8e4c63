package redis

import (
	"context"
	"fmt"
	"time"

	"vidnag-tracker/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter: the first hit in a window creates
// the key with a TTL of window, later hits only increment it.
type RateLimiter struct {
	client RedisClient
	prefix string
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, prefix: "vidnag:"}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := r.prefix + key
	count, err := r.client.Incr(ctx, k)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, k, window); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	} else if ttl, err := r.client.TTL(ctx, k); err == nil && ttl < 0 {
		// a crash between INCR and EXPIRE would otherwise pin the counter forever
		_ = r.client.Expire(ctx, k, window)
	}

	return count <= int64(limit), nil
}
