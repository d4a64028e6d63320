// Package id provides unique identifier generation utilities.
// This is the canonical source for ID generation across the codebase.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"

	"github.com/google/uuid"
)

var requestSeq atomic.Int64

// Request returns a process-unique request record ID of the form "req-<base36>".
// IDs are never reused within the lifetime of the process; they are the sole
// correlation key between a call's start and its completion.
func Request() string {
	return "req-" + base36(requestSeq.Add(1))
}

// Session generates a UUID v4 session identifier.
func Session() string {
	return uuid.NewString()
}

// Short generates a short random hex ID (16 characters).
// Suitable for user-facing IDs where brevity matters.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func base36(n int64) string {
	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}

	var result []byte
	for n > 0 {
		result = append([]byte{charset[n%36]}, result...)
		n /= 36
	}
	return string(result)
}
