// Package breaker implements a three-state circuit breaker for isolating a
// consistently failing dependency.
//
// The breaker wraps calls to the pool controller so that a device which has
// stopped responding fails fast instead of tying up the poll loop and
// command paths in timeouts. State transitions happen lazily on call
// attempts; there is no background timer.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] when the circuit is open and not yet
// eligible for a recovery probe. The wrapped operation is not invoked.
var ErrOpen = errors.New("breaker: circuit open")

// State is the breaker's position in its failure-isolation state machine.
type State string

const (
	// StateClosed is normal operation: calls pass through.
	StateClosed State = "closed"

	// StateOpen means calls fail immediately without reaching the device.
	StateOpen State = "open"

	// StateHalfOpen means trial calls are permitted to probe for recovery.
	StateHalfOpen State = "half_open"
)

// Config controls the breaker's thresholds and timing.
type Config struct {
	// FailureThreshold is the consecutive monitored-failure count that
	// trips the circuit. Defaults to 3.
	FailureThreshold int

	// Timeout is how long the circuit stays open before the next call is
	// allowed through as a half-open probe. Defaults to 60s.
	Timeout time.Duration

	// RecoveryTimeout bounds how long the breaker may sit half-open with no
	// call arriving before it gives up waiting and closes. Defaults to 30s.
	RecoveryTimeout time.Duration

	// Monitor reports whether an error counts toward the failure threshold.
	// Errors it rejects still propagate to the caller but leave the failure
	// count untouched. Defaults to counting every non-nil error.
	Monitor func(error) bool
}

// Stats is a point-in-time snapshot of breaker state for observability.
type Stats struct {
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	TotalCalls      int64     `json:"total_calls"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejected   int64     `json:"total_rejected"`
}

// Breaker is a circuit breaker with CLOSED, OPEN, and HALF_OPEN states.
//
// One Breaker typically wraps one API client instance and lives for the
// process lifetime. All methods are safe for concurrent use; exactly one
// state or counter mutation happens per call attempt.
type Breaker struct {
	mu sync.Mutex

	state           State
	failureCount    int
	lastFailureTime time.Time
	halfOpenStart   time.Time

	failureThreshold int
	timeout          time.Duration
	recoveryTimeout  time.Duration
	monitor          func(error) bool

	totalCalls    int64
	totalFailures int64
	totalRejected int64

	// now is swappable in tests.
	now func() time.Time
}

// New creates a [Breaker] in the closed state, applying defaults for any
// zero-valued Config field.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.Monitor == nil {
		cfg.Monitor = func(err error) bool { return err != nil }
	}

	return &Breaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		timeout:          cfg.Timeout,
		recoveryTimeout:  cfg.RecoveryTimeout,
		monitor:          cfg.Monitor,
		now:              time.Now,
	}
}

// Do executes fn through the breaker.
//
// In the closed and half-open states fn runs and its error (if any) is
// returned unchanged after bookkeeping. In the open state, Do returns
// [ErrOpen] immediately without invoking fn, unless the open timeout has
// elapsed, in which case the call proceeds as a half-open probe.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	b.afterCall(err)
	return err
}

// State returns the breaker's current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
		TotalCalls:      b.totalCalls,
		TotalFailures:   b.totalFailures,
		TotalRejected:   b.totalRejected,
	}
}

// Reset forces the breaker back to closed with a zero failure count.
//
// Administrative only; automatic recovery goes through the half-open probe.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
}

// beforeCall applies lazy state transitions and decides whether the call
// may proceed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case StateOpen:
		if now.Sub(b.lastFailureTime) > b.timeout {
			b.state = StateHalfOpen
			b.halfOpenStart = now
			break
		}
		b.totalRejected++
		return ErrOpen

	case StateHalfOpen:
		// stuck-probe escape valve: nothing called for too long, close
		if now.Sub(b.halfOpenStart) > b.recoveryTimeout {
			b.state = StateClosed
			b.failureCount = 0
		}
	}

	b.totalCalls++
	return nil
}

// afterCall records the outcome of a permitted call.
func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
		b.failureCount = 0
		return
	}

	if !b.monitor(err) {
		// unmonitored errors propagate but do not count
		return
	}

	b.totalFailures++
	b.failureCount++
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.lastFailureTime = b.now()
	}
}
