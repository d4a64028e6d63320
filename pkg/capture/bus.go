package capture

import (
	"log/slog"
	"sync"

	"github.com/gettapd/tapd/pkg/metrics"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// snapshotBus fans out "buffer changed" notifications. Every successful
// insert or clear triggers exactly one notify, delivering the full current
// snapshot to each subscribed observer synchronously. A panicking observer
// is recovered and logged individually; delivery continues to the rest.
type snapshotBus struct {
	mu        sync.RWMutex
	nextID    int
	observers map[int]func([]*tracelog.Record)
	log       *slog.Logger
}

func newSnapshotBus(log *slog.Logger) *snapshotBus {
	return &snapshotBus{
		observers: make(map[int]func([]*tracelog.Record)),
		log:       log,
	}
}

// subscribe registers an observer. The returned unsubscribe function is
// idempotent: calling it more than once has no effect and raises no error.
func (b *snapshotBus) subscribe(fn func([]*tracelog.Record)) func() {
	b.mu.Lock()
	b.nextID++
	key := b.nextID
	b.observers[key] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.observers, key)
		b.mu.Unlock()
	}
}

// notify invokes every currently-subscribed observer once with the snapshot.
// Runs outside any store lock; observers may query the store freely.
func (b *snapshotBus) notify(snapshot []*tracelog.Record) {
	b.mu.RLock()
	keys := make([]int, 0, len(b.observers))
	for key := range b.observers {
		keys = append(keys, key)
	}
	fns := make(map[int]func([]*tracelog.Record), len(keys))
	for _, key := range keys {
		fns[key] = b.observers[key]
	}
	b.mu.RUnlock()

	for key, fn := range fns {
		b.deliver(key, fn, snapshot)
	}
}

func (b *snapshotBus) deliver(key int, fn func([]*tracelog.Record), snapshot []*tracelog.Record) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserverPanics.Inc()
			b.log.Error("trace observer panicked", "observer", key, "panic", r)
		}
	}()
	fn(snapshot)
}

func (b *snapshotBus) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}
