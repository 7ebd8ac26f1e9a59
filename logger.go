package relstash

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with relstash-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON lines to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// WithPass adds a pass field to the logger.
func (l *Logger) WithPass(pass int) *Logger {
	return &Logger{
		Logger: l.Logger.With("pass", pass),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithInput adds an input field to the logger.
func (l *Logger) WithInput(uri string) *Logger {
	return &Logger{
		Logger: l.Logger.With("input", uri),
	}
}

// LogPass logs the end of a pass over the input.
func (l *Logger) LogPass(ctx context.Context, pass, items int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "pass failed",
			"pass", pass,
			"items", items,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "pass completed",
			"pass", pass,
			"items", items,
			"elapsed", elapsed,
		)
	}
}

// LogComplete logs a relation whose members have all been seen.
func (l *Logger) LogComplete(ctx context.Context, id int64, members int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "relation handler failed",
			"relation", id,
			"members", members,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "relation complete",
			"relation", id,
			"members", members,
		)
	}
}

// LogIncomplete logs a relation still missing members at the end of a run.
func (l *Logger) LogIncomplete(ctx context.Context, id int64, missing int) {
	l.WarnContext(ctx, "relation incomplete",
		"relation", id,
		"missing", missing,
	)
}
