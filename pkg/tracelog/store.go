package tracelog

// Sink is the minimal interface for recording trace records.
// Capture adapters accept this interface so they can write through any
// implementation, whether an in-memory ring buffer or a forwarding store.
type Sink interface {
	Insert(rec *Record)
}

// Store defines the interface for trace history storage.
// Implementations store request/response records for inspection via the
// inspect API and CLI. Store embeds Sink, so any Store can be used
// wherever a Sink is expected.
type Store interface {
	Sink

	// Get retrieves a record by ID, nil if absent (including after eviction).
	Get(id string) *Record

	// List returns a snapshot of records newest-first, optionally filtered.
	List(filter *Filter) []*Record

	// Clear removes all records.
	Clear()

	// Count returns the number of stored records.
	Count() int
}

// Subscriber is a channel that receives newly inserted records.
// Used for real-time streaming surfaces (SSE, WebSocket, forwarders).
type Subscriber chan *Record

// SubscribableStore extends Store with per-record subscription support.
type SubscribableStore interface {
	Store

	// SubscribeChan registers a subscriber channel for new records.
	// Returns the channel and an idempotent unsubscribe function.
	SubscribeChan() (Subscriber, func())
}
