package state

import "time"

// Snapshot is a point-in-time view of the pool controller's readings.
//
// Snapshot is the storage representation of device state, optimized for
// JSON serialization (used by the status API and SSE). Values holds the
// raw reading map exactly as the device reported it.
type Snapshot struct {
	// Values contains all readings keyed by device key (e.g. "pH_value").
	Values map[string]any `json:"values"`

	// UpdatedAt is the timestamp of the last successful poll. The zero
	// value means no poll has succeeded yet.
	UpdatedAt time.Time `json:"updated_at"`

	// Available reports whether the controller is currently reachable.
	// A stale snapshot is retained even while Available is false.
	Available bool `json:"available"`
}

// Store defines the interface for holding the latest device snapshot and
// subscribing to snapshot changes.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Replace atomically swaps in a full set of readings and marks the
	// device available. All subscribers are notified.
	Replace(values map[string]any, at time.Time)

	// MarkUnavailable flags the device as unreachable while keeping the
	// last known readings. All subscribers are notified.
	MarkUnavailable()

	// Snapshot returns a copy of the current state.
	// Modifications to the returned map do not affect the store.
	Snapshot() Snapshot

	// Subscribe returns a channel that receives snapshot updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
