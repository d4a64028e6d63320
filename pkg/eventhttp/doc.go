// Package eventhttp provides the callback-style HTTP transport: a call
// whose completion is signaled through ready-state listeners rather than a
// returned value.
//
// A Call walks a one-way state machine:
//
//	Unsent -> Opened -> Sent -> HeadersReceived -> Done
//
// Listeners registered with OnReadyStateChange fire on every transition in
// registration order; OnDone listeners fire exactly once, when the call
// reaches its terminal state. Done is one-shot: no transition ever leaves
// it, and re-settlement is impossible.
//
// Instrumentation attaches through Client.Instrument, which runs a hook for
// each new call before the caller sees it. Hooks keep all per-call state in
// their own closure; the package itself holds no correlation state between
// calls, so concurrent calls interleave freely without interference.
package eventhttp
