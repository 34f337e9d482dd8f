package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testSettings(srv.URL))
	for i := 0; i < breakerThreshold; i++ {
		if _, err := c.Complete(context.Background(), "hello"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if got := hits.Load(); got != breakerThreshold {
		t.Fatalf("upstream hit %d times, want %d", got, breakerThreshold)
	}

	// Next call fails fast without dialing.
	_, err := c.Complete(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected suspended error")
	}
	if !errors.Is(err, errSuspended) {
		t.Errorf("error = %v, want suspension", err)
	}
	if kind, _ := KindOf(err); kind != KindNetwork {
		t.Errorf("kind = %v, want KindNetwork", kind)
	}
	if got := hits.Load(); got != breakerThreshold {
		t.Errorf("upstream hit %d times after opening, want %d", got, breakerThreshold)
	}
}

func TestBreaker_ProbeRecovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"back"}}]}`)
	}))
	defer srv.Close()

	now := time.Now()
	c := NewClient(testSettings(srv.URL))
	c.breaker.now = func() time.Time { return now }

	for i := 0; i < breakerThreshold; i++ {
		c.Complete(context.Background(), "hello")
	}
	if c.breaker.allow() {
		t.Fatal("breaker should be open")
	}

	// Before the probe interval the circuit stays open even once the
	// upstream recovers.
	fail.Store(false)
	if _, err := c.Complete(context.Background(), "hello"); !errors.Is(err, errSuspended) {
		t.Fatalf("error = %v, want suspension", err)
	}

	// After the interval one probe goes through and closes the circuit.
	now = now.Add(breakerProbeAfter)
	got, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if got != "back" {
		t.Errorf("probe response = %q", got)
	}
	if _, err := c.Complete(context.Background(), "hello"); err != nil {
		t.Errorf("circuit did not close after successful probe: %v", err)
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := newBreaker()
	now := time.Now()
	b.now = func() time.Time { return now }

	for i := 0; i < breakerThreshold; i++ {
		b.failure()
	}
	now = now.Add(breakerProbeAfter)
	if !b.allow() {
		t.Fatal("probe not allowed after interval")
	}
	b.failure()
	if b.allow() {
		t.Fatal("breaker should reopen after failed probe")
	}
}

func TestBreaker_RejectionsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testSettings(srv.URL))
	for i := 0; i < breakerThreshold*2; i++ {
		if _, err := c.Complete(context.Background(), "hello"); err == nil {
			t.Fatal("expected rate-limit error")
		}
	}
	if !c.breaker.allow() {
		t.Error("upstream rejections tripped the breaker")
	}
}
