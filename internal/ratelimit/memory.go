package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store using fixed windows at the window's
// granularity. Counting is atomic under the mutex; suitable for a single
// gateway instance.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
	now       func() time.Time
}

type entry struct {
	windowStart time.Time
	count       int64
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (m *Memory) Take(_ context.Context, key string, limit int64, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	// Drop idle keys so the map does not grow unbounded.
	if now.Sub(m.lastSweep) > window {
		for k, e := range m.entries {
			if now.Sub(e.windowStart) >= window {
				delete(m.entries, k)
			}
		}
		m.lastSweep = now
	}

	e := m.entries[key]
	if e == nil || now.Sub(e.windowStart) >= window {
		e = &entry{windowStart: now}
		m.entries[key] = e
	}

	resetAt := e.windowStart.Add(window)
	if e.count >= limit {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	e.count++
	return Result{
		Allowed:   true,
		Remaining: limit - e.count,
		ResetAt:   resetAt,
	}, nil
}
