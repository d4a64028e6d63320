// Package tracelog provides the record schema, filter predicates, and store
// interfaces for captured network traffic.
//
// This package serves tapd users who need to inspect what outbound calls
// their application made, what came back, and how long it took. It is
// distinct from operational logging (which uses log/slog for platform
// debugging).
//
// # Core Types
//
// Record is the central type representing one observed request/response.
// It is built in two phases: an initial partial record the instant a call
// is issued, and a completion patch once the call settles. Between the two
// phases the record lives only in the capture adapter's local state; it
// enters a Store exactly once, when its outcome is known.
//
// Filter evaluates method/status-class/text-search predicates over a
// snapshot. Fields compose by logical AND; omitted fields impose no
// constraint.
//
// # Store Interface
//
// Store defines the interface for trace history storage, supporting:
//   - Recording new records
//   - Querying by ID or with filters
//   - Subscribing to new records in real-time
//   - Clearing history
//
// # Package Design
//
// This is a leaf package with no internal dependencies, allowing it to be
// imported by any package without creating import cycles.
package tracelog
