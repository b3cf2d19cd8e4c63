package adapter

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter keyed by caller identity.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
