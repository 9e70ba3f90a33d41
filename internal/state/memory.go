package state

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore keeps a single full snapshot of the device's readings. Each
// successful poll replaces the whole map atomically, so readers never see
// a half-applied update. When the device becomes unreachable the readings
// are kept and only the availability flag flips.
//
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber to prevent blocking the poll loop.
type MemoryStore struct {
	mu        sync.RWMutex
	values    map[string]any
	updatedAt time.Time
	available bool

	subMu       sync.RWMutex
	subscribers map[chan Snapshot]struct{}
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store starts empty and unavailable. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:      make(map[string]any),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Replace atomically swaps in a full set of readings and notifies all
// subscribers.
//
// The incoming map is copied, so the caller may reuse or mutate it after
// Replace returns. The device is marked available.
func (m *MemoryStore) Replace(values map[string]any, at time.Time) {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}

	m.mu.Lock()
	m.values = copied
	m.updatedAt = at
	m.available = true
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// MarkUnavailable flags the device as unreachable and notifies all
// subscribers. The last known readings and timestamp are retained so
// callers can still serve stale data.
func (m *MemoryStore) MarkUnavailable() {
	m.mu.Lock()
	m.available = false
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// Snapshot returns a copy of the current state.
//
// The returned Values map is a copy; modifications do not affect the store.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// snapshotLocked builds a Snapshot with a copied values map.
// Caller must hold m.mu (read or write).
func (m *MemoryStore) snapshotLocked() Snapshot {
	values := make(map[string]any, len(m.values))
	for k, v := range m.values {
		values[k] = v
	}
	return Snapshot{
		Values:    values,
		UpdatedAt: m.updatedAt,
		Available: m.available,
	}
}

// Subscribe creates a new subscription and returns a channel for receiving
// snapshot updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the message
// is dropped for that subscriber rather than blocking the update path.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the message
		}
	}
}
