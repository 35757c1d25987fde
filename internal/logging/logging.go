// Package logging builds the structured loggers used by the sealedvoice
// binaries. Every logger is wrapped in a handler that keeps key material and
// message content out of log output.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options configures New.
type Options struct {
	// Level is "debug", "info", "warn" or "error". Anything else means info.
	Level string
	// FingerprintUsernames replaces username attributes with fingerprints.
	FingerprintUsernames bool
}

// New returns a JSON logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return slog.New(WrapHandler(handler, opts.FingerprintUsernames))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
