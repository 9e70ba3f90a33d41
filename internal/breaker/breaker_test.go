package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errDevice = errors.New("device unreachable")

// fakeClock provides manual control over the breaker's notion of time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	b := New(cfg)
	clock := newFakeClock()
	b.now = clock.now
	return b, clock
}

func failing(ctx context.Context) error    { return errDevice }
func succeeding(ctx context.Context) error { return nil }

// TestDo_ThresholdTripsOpen verifies that three consecutive monitored
// failures transition CLOSED to OPEN, and a fourth call before the timeout
// fails fast without invoking the operation.
func TestDo_ThresholdTripsOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Do(context.Background(), failing); !errors.Is(err, errDevice) {
			t.Fatalf("call %d: expected device error, got %v", i, err)
		}
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", got)
	}

	invoked := false
	err := b.Do(context.Background(), func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if invoked {
		t.Error("operation must not be invoked while open")
	}
}

// TestDo_HalfOpenRecovery verifies that after the open timeout elapses the
// next call is attempted as a probe, and success closes the circuit.
func TestDo_HalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failing)
	}
	clock.advance(61 * time.Second)

	if err := b.Do(context.Background(), succeeding); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", got)
	}
	if got := b.Stats().FailureCount; got != 0 {
		t.Errorf("expected failure count reset to 0, got %d", got)
	}
}

// TestDo_HalfOpenFailureReopens verifies a failing probe reopens the circuit
// once the threshold is reached again.
func TestDo_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Minute})

	_ = b.Do(context.Background(), failing) // trips open at threshold 1
	clock.advance(61 * time.Second)

	if err := b.Do(context.Background(), failing); !errors.Is(err, errDevice) {
		t.Fatalf("expected device error from probe, got %v", err)
	}
	if got := b.State(); got != StateOpen {
		t.Errorf("expected reopened circuit, got %s", got)
	}
}

// TestDo_HalfOpenBelowThresholdStays verifies a probe failure below the
// threshold keeps the breaker half-open.
func TestDo_HalfOpenBelowThresholdStays(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failing)
	}
	clock.advance(61 * time.Second)

	_ = b.Do(context.Background(), failing) // failure 1 of 3 in half-open
	if got := b.State(); got != StateHalfOpen {
		t.Errorf("expected half-open after sub-threshold probe failure, got %s", got)
	}
}

// TestDo_StuckProbeEscapeValve verifies that a breaker left half-open with
// no call for longer than the recovery timeout closes on the next attempt.
func TestDo_StuckProbeEscapeValve(t *testing.T) {
	b, clock := newTestBreaker(Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
		RecoveryTimeout:  30 * time.Second,
	})

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failing)
	}
	clock.advance(61 * time.Second)
	_ = b.Do(context.Background(), failing) // enters half-open, 1 failure

	clock.advance(31 * time.Second)
	// next call closes the circuit before running, so even a failure
	// is counted against a fresh closed state
	_ = b.Do(context.Background(), succeeding)
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed via escape valve, got %s", got)
	}
}

// TestDo_UnmonitoredErrorsNotCounted verifies errors outside the monitored
// set propagate without advancing the failure count.
func TestDo_UnmonitoredErrorsNotCounted(t *testing.T) {
	errValidation := errors.New("bad input")
	b, _ := newTestBreaker(Config{
		FailureThreshold: 2,
		Timeout:          time.Minute,
		Monitor: func(err error) bool {
			return errors.Is(err, errDevice)
		},
	})

	for i := 0; i < 5; i++ {
		err := b.Do(context.Background(), func(ctx context.Context) error {
			return errValidation
		})
		if !errors.Is(err, errValidation) {
			t.Fatalf("expected validation error to propagate, got %v", err)
		}
	}

	if got := b.State(); got != StateClosed {
		t.Errorf("unmonitored errors must not trip the breaker, got %s", got)
	}
	if got := b.Stats().FailureCount; got != 0 {
		t.Errorf("expected failure count 0, got %d", got)
	}
}

func TestDo_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Timeout: time.Minute})

	_ = b.Do(context.Background(), failing)
	_ = b.Do(context.Background(), failing)
	_ = b.Do(context.Background(), succeeding)

	if got := b.Stats().FailureCount; got != 0 {
		t.Errorf("expected failure count reset by success, got %d", got)
	}

	// two more failures should not trip: count restarted from zero
	_ = b.Do(context.Background(), failing)
	_ = b.Do(context.Background(), failing)
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed, got %s", got)
	}
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Hour})

	_ = b.Do(context.Background(), failing)
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}

	b.Reset()
	if got := b.State(); got != StateClosed {
		t.Errorf("expected closed after reset, got %s", got)
	}
	if err := b.Do(context.Background(), succeeding); err != nil {
		t.Errorf("call after reset failed: %v", err)
	}
}

func TestStats_Rejections(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Hour})

	_ = b.Do(context.Background(), failing)
	_ = b.Do(context.Background(), succeeding) // rejected
	_ = b.Do(context.Background(), succeeding) // rejected

	stats := b.Stats()
	if stats.TotalRejected != 2 {
		t.Errorf("expected 2 rejections, got %d", stats.TotalRejected)
	}
	if stats.TotalCalls != 1 {
		t.Errorf("expected 1 permitted call, got %d", stats.TotalCalls)
	}
	if stats.TotalFailures != 1 {
		t.Errorf("expected 1 failure, got %d", stats.TotalFailures)
	}
}
