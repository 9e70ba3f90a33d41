// Package ratelimit provides token-bucket admission control for outbound
// device requests.
//
// A single Limiter is created by the composition root and shared by
// reference across every component that talks to the controller, so the
// process as a whole never exceeds the configured request rate. Priority
// is advisory metadata recorded for statistics; it does not reorder grants.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaitTimeout is returned by [Limiter.WaitIfNeeded] when no token became
// available within the caller's wait budget.
var ErrWaitTimeout = errors.New("ratelimit: timed out waiting for token")

// retryAfter is the fixed sleep between acquire attempts while waiting.
const retryAfter = 100 * time.Millisecond

// recentWindow is the lookback used for the rolling request/block counters.
const recentWindow = 60 * time.Second

// Priority is an advisory hint recorded alongside each acquire attempt.
//
// The bucket is shared regardless of priority; the hint exists so that
// stats can show which class of caller is consuming or being blocked.
type Priority string

const (
	// PriorityLow marks background work such as history fetches.
	PriorityLow Priority = "low"

	// PriorityNormal marks routine polling traffic.
	PriorityNormal Priority = "normal"

	// PriorityHigh marks user-initiated commands.
	PriorityHigh Priority = "high"
)

// Limiter is a token-bucket rate limiter.
//
// The bucket holds up to maxRequests + burst tokens and refills continuously
// at maxRequests/window tokens per second. One token is consumed per admitted
// request. All state is mutated under a single mutex so concurrent callers
// never observe a partially refilled bucket or double-spend a token.
//
// All methods are safe for concurrent use.
type Limiter struct {
	mu sync.Mutex

	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	// counters for Stats
	totalRequests   int64
	blockedRequests int64
	recent          []event // pruned to the last 60s

	// now is swappable in tests for deterministic refill behaviour.
	now func() time.Time
}

// event records a single acquire attempt for the rolling window counters.
type event struct {
	at       time.Time
	blocked  bool
	priority Priority
}

// Stats is a point-in-time snapshot of limiter counters.
type Stats struct {
	TotalRequests   int64   `json:"total_requests"`
	BlockedRequests int64   `json:"blocked_requests"`
	RecentRequests  int     `json:"recent_requests"`
	RecentBlocked   int     `json:"recent_blocked"`
	CurrentTokens   float64 `json:"current_tokens"`
	MaxTokens       float64 `json:"max_tokens"`
	BlockRatePct    float64 `json:"block_rate_pct"`
}

// New creates a [Limiter] admitting at most maxRequests per window, with an
// additional burst allowance on top of the steady-state capacity.
//
// The bucket starts full. Returns an error if maxRequests or window is not
// positive, or if burst is negative; these are configuration mistakes, not
// runtime states.
func New(maxRequests int, window time.Duration, burst int) (*Limiter, error) {
	if maxRequests <= 0 {
		return nil, errors.New("ratelimit: max requests must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: time window must be positive")
	}
	if burst < 0 {
		return nil, errors.New("ratelimit: burst size cannot be negative")
	}

	max := float64(maxRequests + burst)
	l := &Limiter{
		tokens:     max,
		maxTokens:  max,
		refillRate: float64(maxRequests) / window.Seconds(),
		now:        time.Now,
	}
	l.lastRefill = l.now()
	return l, nil
}

// Acquire attempts to take one token without blocking.
//
// Tokens accrued since the last refill are credited first, capped at the
// bucket's capacity so idle periods never accumulate unbounded credit.
// Returns true if a token was consumed.
func (l *Limiter) Acquire(priority Priority) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.refillLocked(now)

	l.totalRequests++
	granted := l.tokens >= 1
	if granted {
		l.tokens--
	} else {
		l.blockedRequests++
	}
	l.recordLocked(now, !granted, priority)
	return granted
}

// WaitIfNeeded blocks cooperatively until a token is available.
//
// It loops over [Limiter.Acquire], sleeping a fixed interval between
// attempts. Returns [ErrWaitTimeout] once the elapsed wait exceeds timeout,
// or ctx.Err() if the context is cancelled first. A nil return means a
// token was consumed.
func (l *Limiter) WaitIfNeeded(ctx context.Context, priority Priority, timeout time.Duration) error {
	deadline := l.now().Add(timeout)

	for {
		if l.Acquire(priority) {
			return nil
		}
		if !l.now().Before(deadline) {
			return ErrWaitTimeout
		}

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stats returns a snapshot of the limiter's counters.
//
// Observability only; no behaviour depends on these values.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.refillLocked(now)
	l.pruneLocked(now)

	var recentBlocked int
	for _, e := range l.recent {
		if e.blocked {
			recentBlocked++
		}
	}

	var blockRate float64
	if l.totalRequests > 0 {
		blockRate = float64(l.blockedRequests) / float64(l.totalRequests) * 100
	}

	return Stats{
		TotalRequests:   l.totalRequests,
		BlockedRequests: l.blockedRequests,
		RecentRequests:  len(l.recent),
		RecentBlocked:   recentBlocked,
		CurrentTokens:   l.tokens,
		MaxTokens:       l.maxTokens,
		BlockRatePct:    blockRate,
	}
}

// Reset refills the bucket to capacity and zeroes all counters.
//
// Administrative only; normal operation never calls this.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = l.maxTokens
	l.lastRefill = l.now()
	l.totalRequests = 0
	l.blockedRequests = 0
	l.recent = nil
}

// refillLocked credits tokens for time elapsed since the last refill.
// Caller must hold mu.
func (l *Limiter) refillLocked(now time.Time) {
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// recordLocked appends an event to the rolling window, pruning stale ones.
// Caller must hold mu.
func (l *Limiter) recordLocked(now time.Time, blocked bool, priority Priority) {
	l.pruneLocked(now)
	l.recent = append(l.recent, event{at: now, blocked: blocked, priority: priority})
}

// pruneLocked drops events older than the rolling window.
// Caller must hold mu.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-recentWindow)
	i := 0
	for ; i < len(l.recent); i++ {
		if l.recent[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		l.recent = append(l.recent[:0], l.recent[i:]...)
	}
}
