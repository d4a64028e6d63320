package capture

import (
	"sync"
	"time"

	"github.com/gettapd/tapd/internal/id"
	"github.com/gettapd/tapd/pkg/metrics"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// MemoryStore implements tracelog.SubscribableStore with an in-memory
// circular buffer. Insertion order is the only ordering key: List returns
// newest-first, and eviction removes the oldest record first.
type MemoryStore struct {
	entries     []*tracelog.Record
	maxEntries  int
	mu          sync.RWMutex
	subscribers map[tracelog.Subscriber]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a MemoryStore with the given capacity.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:     make([]*tracelog.Record, 0, maxEntries),
		maxEntries:  maxEntries,
		subscribers: make(map[tracelog.Subscriber]struct{}),
	}
}

// Insert stores a record, evicting the oldest record when capacity is
// exceeded. Records enter the store exactly once, at settlement, so Insert
// performs no dedup.
func (s *MemoryStore) Insert(rec *tracelog.Record) {
	if rec == nil {
		return
	}

	s.mu.Lock()

	if rec.ID == "" {
		rec.ID = id.Request()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.Transport == "" {
		rec.Transport = tracelog.TransportHTTP
	}

	// FIFO eviction: remove oldest while at capacity.
	for len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
		metrics.RecordsEvicted.Inc()
	}

	s.entries = append(s.entries, rec)
	s.mu.Unlock()

	// Notify channel subscribers (non-blocking).
	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- rec:
		default:
			// Drop if subscriber is slow.
		}
	}
	s.subMu.RUnlock()
}

// Get retrieves a record by ID, nil if absent or already evicted.
func (s *MemoryStore) Get(recordID string) *tracelog.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.entries {
		if rec.ID == recordID {
			return rec
		}
	}
	return nil
}

// List returns a snapshot newest-first, optionally filtered. The returned
// slice is independent of the live buffer: later inserts, evictions, or a
// Clear never invalidate an in-progress iteration over it.
func (s *MemoryStore) List(filter *tracelog.Filter) []*tracelog.Record {
	s.mu.RLock()
	snapshot := make([]*tracelog.Record, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		snapshot = append(snapshot, s.entries[i])
	}
	s.mu.RUnlock()

	if filter == nil {
		return snapshot
	}
	return filter.Apply(snapshot)
}

// Clear removes all records.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*tracelog.Record, 0, s.maxEntries)
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SubscribeChan registers a subscriber channel that receives each newly
// inserted record. The returned unsubscribe function is idempotent.
func (s *MemoryStore) SubscribeChan() (tracelog.Subscriber, func()) {
	ch := make(tracelog.Subscriber, 100) // Buffer to prevent blocking.

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}

	return ch, unsubscribe
}
