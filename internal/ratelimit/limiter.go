package ratelimit

import (
	"context"
	"time"
)

// Policy is a named request ceiling over a window.
type Policy struct {
	Name   string
	Limit  int64
	Window time.Duration
}

// Decision is the combined outcome of evaluating both policies.
type Decision struct {
	Allowed bool
	// Denied names the policy that denied the request; empty when allowed.
	Denied string
	// User is the user-policy result, used for outward rate-limit headers.
	User       Result
	RetryAfter time.Duration
}

// Limiter evaluates the two concurrent gateway policies. The user policy
// caps each identity (or each address, for anonymous callers); the anon
// policy caps each address regardless of identity, so rotating identities
// behind one address cannot multiply the user ceiling.
type Limiter struct {
	store    Store
	policies func() (user, anon Policy)
}

// New builds a limiter. Policies are read through a func so config hot
// reloads take effect without rebuilding the limiter.
func New(store Store, policies func() (user, anon Policy)) *Limiter {
	return &Limiter{store: store, policies: policies}
}

// Admit checks both policies and denies if either denies. identityID is
// empty for anonymous callers. Both counters are consumed independently.
func (l *Limiter) Admit(ctx context.Context, identityID, remoteAddr string) (Decision, error) {
	user, anon := l.policies()

	userKey := "user:" + identityID
	if identityID == "" {
		userKey = "user:" + remoteAddr
	}
	userRes, err := l.store.Take(ctx, userKey, user.Limit, user.Window)
	if err != nil {
		return Decision{}, err
	}

	anonRes, err := l.store.Take(ctx, "anon:"+remoteAddr, anon.Limit, anon.Window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: userRes.Allowed && anonRes.Allowed, User: userRes}
	switch {
	case !userRes.Allowed:
		d.Denied = user.Name
		d.RetryAfter = userRes.RetryAfter
	case !anonRes.Allowed:
		d.Denied = anon.Name
		d.RetryAfter = anonRes.RetryAfter
	}
	return d, nil
}

// UserPolicy exposes the current user policy for header reporting.
func (l *Limiter) UserPolicy() Policy {
	user, _ := l.policies()
	return user
}
