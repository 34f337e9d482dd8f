package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single counter take.
type Result struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Store counts requests against a key over a rolling window. Implementations
// must not under-count or over-admit under concurrent takes for the same key.
type Store interface {
	Take(ctx context.Context, key string, limit int64, window time.Duration) (Result, error)
}
