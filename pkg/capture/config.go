package capture

import (
	"log/slog"

	"github.com/gettapd/tapd/pkg/tracelog"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxEntries   = 100
	DefaultMaxBodyBytes = 64 * 1024
)

// DefaultRedactHeaders are the header names whose values are masked in
// stored records when Config.RedactHeaders is nil.
var DefaultRedactHeaders = []string{"Authorization", "Cookie", "Set-Cookie", "Proxy-Authorization"}

// RedactedValue replaces redacted header values in stored records.
const RedactedValue = "[REDACTED]"

// Annotator derives metadata from a record before it is stored.
// Annotators run against the unredacted record; a panicking annotator is
// contained and the record is stored without its annotations.
type Annotator interface {
	Annotate(rec *tracelog.Record)
}

// Config configures a Capture engine.
type Config struct {
	// MaxEntries is the trace store capacity (default 100).
	// The oldest record is evicted first when capacity is exceeded.
	MaxEntries int

	// MaxBodyBytes caps how many body bytes are normalized per direction
	// (default 64KiB). The caller always receives the complete stream;
	// only the recorded copy is truncated.
	MaxBodyBytes int64

	// Enabled controls whether calls are recorded (default true).
	// While disabled the real transport executes normally and no record
	// is produced; already-recorded entries are kept.
	Enabled *bool

	// RedactHeaders lists header names (case-insensitive) whose values are
	// masked in stored records. nil means DefaultRedactHeaders; an empty
	// slice disables redaction.
	RedactHeaders []string

	// IgnorePaths are doublestar URL-path globs skipped entirely,
	// e.g. "/healthz" or "/internal/**".
	IgnorePaths []string

	// Annotators run over each record before insertion.
	Annotators []Annotator

	// Logger receives capture-internal diagnostics. Defaults to a no-op
	// logger; capture never writes to a caller's output uninvited.
	Logger *slog.Logger
}

func (c Config) maxEntries() int {
	if c.MaxEntries <= 0 {
		return DefaultMaxEntries
	}
	return c.MaxEntries
}

func (c Config) maxBodyBytes() int64 {
	if c.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return c.MaxBodyBytes
}

func (c Config) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c Config) redactHeaders() []string {
	if c.RedactHeaders == nil {
		return DefaultRedactHeaders
	}
	return c.RedactHeaders
}
