// Package logging builds the slog loggers used by the analyzer and routes
// the output of external tools into them.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Attribute keys shared by every record about one trace.
const (
	TraceKey = "trace"
	RunIDKey = "run_id"
)

// Options selects the handler behind a logger.
type Options struct {
	Format string // "text", anything else is JSON
	Level  string // see ParseLevel

	// Verbose forces debug level and adds source locations.
	Verbose bool
}

// New returns a logger writing to w. A nil w discards every record.
func New(w io.Writer, o Options) *slog.Logger {
	if w == nil {
		return Discard()
	}

	level, err := ParseLevel(o.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: o.Verbose}

	if strings.EqualFold(o.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// NewLogger returns a logger writing to stderr.
func NewLogger(format, level string, verbose bool) *slog.Logger {
	return New(os.Stderr, Options{Format: format, Level: level, Verbose: verbose})
}

// Discard returns a logger that drops every record, used while the report
// viewer owns the terminal.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel accepts the slog level names in any case, with optional
// offsets such as "warn+2", plus "warning". An empty level is info.
func ParseLevel(level string) (slog.Level, error) {
	s := strings.TrimSpace(level)
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", level, err)
	}
	return l, nil
}

// ForTrace tags logger with the trace directory being analyzed.
func ForTrace(logger *slog.Logger, dir string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(TraceKey, dir)
}

// ForRun tags logger with a batch run id. An empty id leaves it untagged.
func ForRun(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if runID == "" {
		return logger
	}
	return logger.With(RunIDKey, runID)
}

// SetDefault installs logger as the slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
