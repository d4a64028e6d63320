// Package inspect embeds an HTTP surface over a capture engine: query,
// clear, live streaming (SSE and WebSocket), export, capture control,
// metrics, and health.
//
// The server binds loopback by default and carries no auth; it is a
// development tool, not a production surface.
package inspect
