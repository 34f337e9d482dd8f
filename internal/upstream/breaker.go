package upstream

import (
	"sync"
	"time"
)

const (
	breakerThreshold  = 5
	breakerProbeAfter = 30 * time.Second
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerProbing
)

// breaker suspends upstream calls after consecutive transport failures so a
// dead upstream fails fast instead of holding every caller for the full
// timeout. Only transport-level failures count; a responsive upstream that
// answers 4xx keeps the breaker closed.
type breaker struct {
	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

func newBreaker() *breaker {
	return &breaker{now: time.Now}
}

// allow reports whether a call may proceed. While open, one probe is let
// through after the probe interval elapses.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen && b.now().Sub(b.openedAt) >= breakerProbeAfter {
		b.state = breakerProbing
	}
	return b.state != breakerOpen
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == breakerProbing || b.failures >= breakerThreshold {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// observe routes a classified call outcome into the breaker. Auth and
// rate-limit rejections prove the upstream is reachable and count as
// successes here.
func (b *breaker) observe(err error) {
	if err == nil {
		b.success()
		return
	}
	switch kind, _ := KindOf(err); kind {
	case KindTimeout, KindNetwork:
		b.failure()
	case KindAuth, KindRateLimited:
		b.success()
	}
}
