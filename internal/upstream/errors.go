package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure for the orchestrator's response table.
type Kind int

const (
	// KindNetwork is a generic connection or protocol failure.
	KindNetwork Kind = iota
	// KindTimeout is an exceeded deadline on the call.
	KindTimeout
	// KindAuth is a credential rejection (401/403) — a configuration-level
	// problem on our side, never the caller's.
	KindAuth
	// KindRateLimited means the upstream itself throttled us (429).
	KindRateLimited
	// KindMalformed is an unexpected response shape; treated as transient.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	default:
		return "network"
	}
}

// Error is a classified upstream failure. The wrapped error is for server-side
// logs only and must never reach the caller.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, err: err}
}

// KindOf extracts the classification from an error chain. The second return
// is false when the error did not originate from the upstream client.
func KindOf(err error) (Kind, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind, true
	}
	return KindNetwork, false
}
