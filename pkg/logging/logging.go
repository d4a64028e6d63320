// Package logging builds the diagnostic slog logger for tapd. Capture
// machinery takes a *slog.Logger and defaults to Nop: traffic capture
// must never write to a host application's output uninvited, so every
// subsystem logs only what it is explicitly handed.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config mirrors the log section of the tapd configuration: level and
// format arrive as the strings users write in config files.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn, or error.
	// Unrecognized or empty values mean info.
	Level string

	// Format is "text" or "json" (default text).
	Format string

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer

	// AddSource adds source file and line to entries.
	AddSource bool
}

// New builds a slog.Logger from cfg. Unrecognized level and format
// strings fall back to their defaults rather than failing: a typo in a
// log setting must not keep the pipeline from starting.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// Nop returns a logger that discards everything. It is the default for
// every subsystem that is not handed a logger.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component scopes a logger to one pipeline subsystem, so intermixed
// capture, inspect, and forward diagnostics stay attributable.
func Component(log *slog.Logger, name string) *slog.Logger {
	return log.With("component", name)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
