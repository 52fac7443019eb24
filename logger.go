package ecsmem

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/ecsmem/pool"
)

// Logger wraps slog.Logger with ecsmem-specific context.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithComponent adds the record type name to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogAllocate logs a record allocation.
func (l *Logger) LogAllocate(ctx context.Context, h pool.Handle, loc pool.Location, err error) {
	if err != nil {
		l.WarnContext(ctx, "allocate failed",
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "allocate completed",
		"handle", h.String(),
		"location", loc.String(),
	)
}

// LogCompaction logs a failed compaction run. Successful runs are logged by
// the pool itself.
func (l *Logger) LogCompaction(ctx context.Context, err error) {
	if err == nil {
		return
	}
	l.ErrorContext(ctx, "compaction failed",
		"error", err,
	)
}

// LogClose logs a store shutdown.
func (l *Logger) LogClose(ctx context.Context, pools int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"pools", pools,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "store closed",
		"pools", pools,
	)
}
