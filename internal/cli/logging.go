package cli

import (
	"io"
	"log/slog"
)

// newLogger builds the process logger. JSON output gets JSON logs so both
// streams are machine-readable; --verbose enables debug records.
func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
