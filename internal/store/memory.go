package store

import (
	"sort"
	"sync"
)

// DefaultMaxRecords bounds how many polls a [MemoryStore] keeps.
const DefaultMaxRecords = 1000

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Records are keyed by poll ID, with new records
// replacing previous values. When the store is full, the oldest finished
// record is evicted; running polls are never evicted.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the entire system.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[string]PollRecord
	maxRecords  int
	subscribers map[chan PollRecord]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] holding at most maxRecords
// records. A non-positive maxRecords means [DefaultMaxRecords].
func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &MemoryStore{
		records:     make(map[string]PollRecord),
		maxRecords:  maxRecords,
		subscribers: make(map[chan PollRecord]struct{}),
	}
}

// Update stores a [PollRecord] and notifies all subscribers.
func (m *MemoryStore) Update(record PollRecord) {
	m.mu.Lock()
	m.records[record.ID] = record
	m.evictLocked()
	m.mu.Unlock()

	m.notifySubscribers(record)
}

// evictLocked drops the oldest finished records until the store fits.
// Caller must hold m.mu.
func (m *MemoryStore) evictLocked() {
	for len(m.records) > m.maxRecords {
		oldestID := ""
		for id, r := range m.records {
			if !r.Finished() {
				continue
			}
			if oldestID == "" || r.StartedAt.Before(m.records[oldestID].StartedAt) {
				oldestID = id
			}
		}
		if oldestID == "" {
			return // everything is still running
		}
		delete(m.records, oldestID)
	}
}

// Get returns the record with the given ID.
func (m *MemoryStore) Get(id string) (PollRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	return r, ok
}

// GetAll returns a snapshot of all stored records, oldest first.
func (m *MemoryStore) GetAll() []PollRecord {
	m.mu.RLock()
	results := make([]PollRecord, 0, len(m.records))
	for _, r := range m.records {
		results = append(results, r)
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].StartedAt.Equal(results[j].StartedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].StartedAt.Before(results[j].StartedAt)
	})
	return results
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan PollRecord {
	ch := make(chan PollRecord, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan PollRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the record to all active subscribers without
// blocking; a full subscriber buffer drops the message.
func (m *MemoryStore) notifySubscribers(record PollRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// subscriber is slow, drop the message
		}
	}
}
