// Package id provides unique identifier generation utilities.
//
// This is the canonical source for ID generation across the tapd codebase.
// It provides several ID formats for different use cases:
//
//   - Request: process-unique "req-<base36>" record identifiers, assigned
//     at capture start and never reused within a process lifetime
//   - Session: standard UUID v4 for session-scoped identifiers
//   - Short: 16-character hex IDs for user-facing contexts where brevity matters
package id
