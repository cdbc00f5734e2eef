package resilience

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream unavailable")

func TestBreakerClosedAllowsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for range 3 {
		_ = b.Do(func() error { return errUpstream })
	}

	err := b.Do(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open state, got %s", b.State())
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)

	_ = b.Do(func() error { return errUpstream })
	_ = b.Do(func() error { return errUpstream })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errUpstream })

	// Two failures, a success, then one failure: still closed.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected closed circuit, got %v", err)
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Do(func() error { return errUpstream })
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(2 * time.Second)

	// Half-open admits a probe; success closes the circuit again.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed state after probe success, got %s", b.State())
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected closed circuit after probe success, got %v", err)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Do(func() error { return errUpstream })
	}

	now = now.Add(2 * time.Second)

	// The half-open probe fails: straight back to open.
	if err := b.Do(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
		t.Fatalf("expected probe error, got %v", err)
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	_ = b.Do(func() error { return errUpstream })
	now = now.Add(2 * time.Second)

	if !b.admit() {
		t.Fatal("expected probe to be admitted after cooldown")
	}
	// A second caller while the probe is in flight is rejected.
	if b.admit() {
		t.Fatal("expected concurrent caller to be rejected during probe")
	}
	b.record(nil)
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", b.State())
	}
}
