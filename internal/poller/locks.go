package poller

import (
	"sync"
	"time"
)

// Locks is a table of per-device safety locks.
//
// Engaging a lock on a device key blocks dosing and force-off commands for
// that key until the lock expires. Expired entries are pruned lazily on
// access. Safe for concurrent use.
type Locks struct {
	mu      sync.Mutex
	expires map[string]time.Time

	now func() time.Time
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Engage locks key for the given duration, extending or shortening any
// existing lock. Non-positive durations release the lock.
func (l *Locks) Engage(key string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d <= 0 {
		delete(l.expires, key)
		return
	}
	l.expires[key] = l.now().Add(d)
}

// Remaining reports how long key stays locked. Zero means unlocked.
func (l *Locks) Remaining(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.expires[key]
	if !ok {
		return 0
	}
	remaining := expiry.Sub(l.now())
	if remaining <= 0 {
		delete(l.expires, key)
		return 0
	}
	return remaining
}
