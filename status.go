package aquapoll

import (
	"time"

	"github.com/jpalmerr/aquapoll/internal/server"
)

// Snapshot returns a copy of the most recent readings.
//
// The returned map is a copy; modifying it does not affect the controller.
// Before the first successful poll the map is empty.
func (c *Controller) Snapshot() map[string]any {
	return c.store.Snapshot().Values
}

// Available reports whether the device responded to the most recent polls.
func (c *Controller) Available() bool {
	return c.store.Snapshot().Available
}

// LastUpdate returns the time of the last successful poll. The zero value
// means no poll has succeeded yet.
func (c *Controller) LastUpdate() time.Time {
	return c.store.Snapshot().UpdatedAt
}

// PollingInterval returns the configured interval between polls.
func (c *Controller) PollingInterval() time.Duration {
	return c.pollingInterval
}

// statsSnapshot aggregates resilience counters for the status server.
func (c *Controller) statsSnapshot() server.StatsSnapshot {
	snap := server.StatsSnapshot{
		RateLimiter: c.limiter.Stats(),
		Breaker:     c.breaker.Stats(),
	}
	c.mu.Lock()
	coord := c.coord
	c.mu.Unlock()
	if coord != nil {
		snap.Poller = coord.Stats()
	}
	return snap
}
