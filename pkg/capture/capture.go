package capture

import (
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gettapd/tapd/pkg/logging"
	"github.com/gettapd/tapd/pkg/metrics"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// Capture is the traffic capture engine: one trace store, one subscription
// bus, and the shared write path both transport adapters record through.
//
// A Capture is explicitly constructed with New and passed by reference to
// whatever needs it. All methods are safe for concurrent use.
type Capture struct {
	cfg     Config
	store   *MemoryStore
	bus     *snapshotBus
	enabled atomic.Bool
	redact  map[string]struct{}
	log     *slog.Logger
}

// New creates a Capture engine from cfg. Zero-valued fields take defaults:
// 100 entries, 64KiB body cap, capture enabled, standard header redaction.
func New(cfg Config) *Capture {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	c := &Capture{
		cfg:    cfg,
		store:  NewMemoryStore(cfg.maxEntries()),
		bus:    newSnapshotBus(log),
		redact: make(map[string]struct{}),
		log:    log,
	}
	for _, name := range cfg.redactHeaders() {
		c.redact[strings.ToLower(name)] = struct{}{}
	}
	c.enabled.Store(cfg.enabled())
	return c
}

// Logs returns a newest-first snapshot of all records.
func (c *Capture) Logs() []*tracelog.Record {
	return c.store.List(nil)
}

// FilteredLogs returns a newest-first snapshot of records matching filter.
func (c *Capture) FilteredLogs(filter *tracelog.Filter) []*tracelog.Record {
	return c.store.List(filter)
}

// Get retrieves a record by ID, nil if absent.
func (c *Capture) Get(id string) *tracelog.Record {
	return c.store.Get(id)
}

// Count returns the number of stored records.
func (c *Capture) Count() int {
	return c.store.Count()
}

// ClearLogs empties the store. Subscribers observe the clear as a single
// notification carrying the empty snapshot.
func (c *Capture) ClearLogs() {
	c.store.Clear()
	c.bus.notify(c.store.List(nil))
}

// Subscribe registers an observer that receives the full current snapshot
// after every insert or clear. The returned unsubscribe function is
// idempotent.
func (c *Capture) Subscribe(fn func(logs []*tracelog.Record)) (unsubscribe func()) {
	return c.bus.subscribe(fn)
}

// SubscribeChan registers a channel subscriber that receives each newly
// inserted record, for streaming surfaces (SSE, WebSocket, forwarders).
func (c *Capture) SubscribeChan() (tracelog.Subscriber, func()) {
	return c.store.SubscribeChan()
}

// Enable turns capture on.
func (c *Capture) Enable() {
	c.enabled.Store(true)
}

// Disable turns capture off without dropping already-recorded entries.
// While disabled the real transport still executes; no record is produced.
func (c *Capture) Disable() {
	c.enabled.Store(false)
}

// Enabled reports whether capture is on.
func (c *Capture) Enabled() bool {
	return c.enabled.Load()
}

// Store exposes the underlying trace store for read-only consumers.
func (c *Capture) Store() tracelog.SubscribableStore {
	return c.store
}

// Record runs a settled record through the full write path: annotate,
// redact, insert, notify. It is the entry point for adapters living
// outside this package; the built-in adapters use the same path.
func (c *Capture) Record(rec *tracelog.Record) {
	c.record(rec)
}

// record is the single write path shared by all adapters: annotate, redact,
// insert, notify. Called exactly once per settled call, never before
// settlement. Failures inside annotators are contained here so they can
// never surface into the caller's own call.
func (c *Capture) record(rec *tracelog.Record) {
	for _, a := range c.cfg.Annotators {
		c.annotate(a, rec)
	}
	c.redactHeaders(rec.RequestHeaders)
	c.redactHeaders(rec.ResponseHeaders)

	c.store.Insert(rec)
	metrics.RecordsCaptured.WithLabel(rec.Transport).Inc()
	if rec.DurationMs >= 0 {
		metrics.CaptureDuration.Observe(float64(rec.DurationMs) / 1000)
	}

	c.bus.notify(c.store.List(nil))
}

func (c *Capture) annotate(a Annotator, rec *tracelog.Record) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CaptureErrors.WithLabel("annotator").Inc()
			c.log.Error("annotator panicked", "record", rec.ID, "panic", r)
		}
	}()
	a.Annotate(rec)
}

func (c *Capture) redactHeaders(headers map[string]string) {
	if len(c.redact) == 0 {
		return
	}
	for key := range headers {
		if _, ok := c.redact[strings.ToLower(key)]; ok {
			headers[key] = RedactedValue
		}
	}
}

// ignored reports whether the raw URL's path matches an IgnorePaths glob.
func (c *Capture) ignored(rawURL string) bool {
	if len(c.cfg.IgnorePaths) == 0 {
		return false
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	for _, pattern := range c.cfg.IgnorePaths {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
