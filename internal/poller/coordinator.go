package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/aquapoll/internal/state"
)

const (
	// DefaultInterval is the polling interval used when none is configured.
	DefaultInterval = 30 * time.Second

	// DefaultFailureThreshold is the number of consecutive poll failures
	// after which the device is marked unavailable.
	DefaultFailureThreshold = 3

	// maxRecoveryBackoff caps the delay before a recovery probe.
	maxRecoveryBackoff = 300 * time.Second
)

// Reader is the device-facing surface the coordinator polls.
//
// It is satisfied by the API client; tests substitute a stub.
type Reader interface {
	GetReadings(ctx context.Context) (map[string]any, error)
}

// Config holds the coordinator's tunables. Zero values are replaced with
// defaults by [New].
type Config struct {
	// Interval is the time between poll cycles.
	Interval time.Duration

	// FailureThreshold is the number of consecutive failures before the
	// device is marked unavailable and recovery begins.
	FailureThreshold int

	// Logger receives poll and recovery events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Coordinator polls the device at a fixed interval and maintains the
// snapshot store.
//
// A successful poll replaces the full snapshot and resets the failure
// count. Failures keep the last snapshot; once the consecutive-failure
// threshold is crossed the device is marked unavailable and a recovery
// cycle is kicked off in the background.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Coordinator struct {
	client    Reader
	store     state.Store
	interval  time.Duration
	threshold int
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	stopped  bool
	failures int

	recoveryMu       sync.Mutex
	recovering       bool
	recoveryAttempts int

	// backoffUnit scales the recovery backoff. Shortened in tests.
	backoffUnit time.Duration
}

// Stats is a point-in-time view of the coordinator's failure tracking.
type Stats struct {
	ConsecutiveFailures int  `json:"consecutive_failures"`
	Recovering          bool `json:"recovering"`
	RecoveryAttempts    int  `json:"recovery_attempts"`
}

// New creates a [Coordinator] polling client into store.
//
// The coordinator must be started with [Coordinator.Start] and stopped
// with [Coordinator.Stop].
func New(client Reader, store state.Store, cfg Config) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		client:      client,
		store:       store,
		interval:    cfg.Interval,
		threshold:   cfg.FailureThreshold,
		logger:      cfg.Logger,
		backoffUnit: time.Second,
	}
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The coordinator polls
// once immediately, then on every interval tick until [Coordinator.Stop]
// is called or the context is cancelled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	pollCtx := c.ctx // capture under lock to avoid race
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		c.pollOnce(pollCtx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				c.pollOnce(pollCtx)
			}
		}
	}()
}

// Stop halts the coordinator and waits for all goroutines to complete,
// including any in-flight recovery attempt.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// pollOnce performs a single poll cycle and updates the failure tracking.
func (c *Coordinator) pollOnce(ctx context.Context) {
	values, err := c.client.GetReadings(ctx)
	if err != nil {
		c.handleFailure(ctx, err)
		return
	}

	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()

	c.store.Replace(values, time.Now())
}

// handleFailure increments the consecutive-failure count, marks the device
// unavailable once the threshold is crossed, and kicks off recovery.
func (c *Coordinator) handleFailure(ctx context.Context, err error) {
	c.mu.Lock()
	c.failures++
	failures := c.failures
	c.mu.Unlock()

	c.logger.Warn("poll failed",
		"error", err,
		"consecutive_failures", failures,
		"threshold", c.threshold,
	)

	if failures < c.threshold {
		return
	}

	c.store.MarkUnavailable()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.TryRecover(ctx)
	}()
}

// TryRecover attempts to re-establish contact with the device.
//
// Only one recovery runs at a time: if a recovery attempt is already in
// flight, TryRecover returns false immediately without probing. Otherwise
// it sleeps for an exponential backoff (10s doubling per prior attempt,
// capped at 5 minutes), probes the device once, and reports whether the
// probe succeeded. A successful probe resets the failure and attempt
// counters and republishes the fresh snapshot.
func (c *Coordinator) TryRecover(ctx context.Context) bool {
	c.recoveryMu.Lock()
	if c.recovering {
		c.recoveryMu.Unlock()
		return false
	}
	c.recovering = true
	attempts := c.recoveryAttempts
	c.recoveryMu.Unlock()

	defer func() {
		c.recoveryMu.Lock()
		c.recovering = false
		c.recoveryMu.Unlock()
	}()

	recoveryID := uuid.NewString()
	backoff := recoveryBackoff(attempts, c.backoffUnit)

	c.logger.Info("attempting recovery",
		"recovery_id", recoveryID,
		"attempt", attempts+1,
		"backoff", backoff,
	)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(backoff):
	}

	values, err := c.client.GetReadings(ctx)
	if err != nil {
		c.recoveryMu.Lock()
		c.recoveryAttempts++
		c.recoveryMu.Unlock()

		c.logger.Warn("recovery probe failed",
			"recovery_id", recoveryID,
			"error", err,
		)
		return false
	}

	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()

	c.recoveryMu.Lock()
	c.recoveryAttempts = 0
	c.recoveryMu.Unlock()

	c.store.Replace(values, time.Now())

	c.logger.Info("recovery succeeded", "recovery_id", recoveryID)
	return true
}

// Stats returns the current failure-tracking counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	failures := c.failures
	c.mu.Unlock()

	c.recoveryMu.Lock()
	defer c.recoveryMu.Unlock()
	return Stats{
		ConsecutiveFailures: failures,
		Recovering:          c.recovering,
		RecoveryAttempts:    c.recoveryAttempts,
	}
}

// recoveryBackoff returns the delay before the next recovery probe:
// 10 units doubling per prior attempt, capped at 300 units.
func recoveryBackoff(attempts int, unit time.Duration) time.Duration {
	if attempts > 5 {
		attempts = 5 // 10 << 5 already exceeds the cap
	}
	d := time.Duration(10<<attempts) * unit
	if limit := 300 * unit; d > limit {
		d = limit
	}
	return d
}
