package segbloom

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with segbloom-specific context.
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

// WithSegment adds a segment_number field to the logger.
func (l *Logger) WithSegment(id SegmentID) *Logger {
	return &Logger{
		Logger: l.Logger.With("segment_number", id),
	}
}

// LogCreate logs the outcome of a segment build.
func (l *Logger) LogCreate(ctx context.Context, id SegmentID, terms uint64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "failed to build segment",
			"segment_number", id,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "segment built",
		"segment_number", id,
		"terms", terms,
		"duration", duration,
	)
}

// LogCommit logs a registry commit together with memory diagnostics.
func (l *Logger) LogCommit(ctx context.Context, id SegmentID, segments int, filterBytes, trackedBytes, peakRSS int64) {
	l.InfoContext(ctx, "stored segment summary",
		"segment_number", id,
		"total_segments", segments,
		"filter_mb", filterBytes>>20,
		"tracked_filter_mb", trackedBytes>>20,
		"peak_rss_mb", peakRSS>>20,
	)
}

// LogQuery logs a point query.
func (l *Logger) LogQuery(ctx context.Context, id SegmentID, term []byte, found, exists bool) {
	if !found {
		l.DebugContext(ctx, "segment not found",
			"segment_number", id,
		)
		return
	}
	l.DebugContext(ctx, "query segment",
		"segment_number", id,
		"term", string(term),
		"exists", exists,
	)
}
