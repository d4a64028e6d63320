// Package capture implements transparent client-side network traffic capture:
// a fixed-capacity trace store with FIFO eviction, a subscription bus pushing
// live updates to observers, and transport adapters that observe calls
// without altering what the caller sees.
//
// The engine is explicitly constructed and explicitly owned; there is no
// package-level singleton:
//
//	cap := capture.New(capture.Config{MaxEntries: 200})
//	cap.Install(http.DefaultClient)
//
// Two adapters write through the same store. The http.RoundTripper decorator
// wraps the future-style transport (Install/Uninstall on an *http.Client,
// idempotent). InstrumentEventClient attaches a capture hook to the
// callback-style eventhttp.Client, patching each call's record when its
// state machine reaches Done, before the caller's own listeners run.
//
// Transparency is the hard correctness requirement throughout: the wrapped
// transport returns the identical response or error the unwrapped transport
// would, bodies are duplicated without consuming the caller's stream, and
// every failure inside the capture machinery itself is contained.
package capture
