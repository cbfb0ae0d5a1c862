package sentvec

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with one helper per embeddings operation so every
// operation logs the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger from handler. A nil handler logs text at info
// level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewJSONLoggerTo(os.Stderr, level)
}

// NewJSONLoggerTo creates a Logger that writes JSON lines to w.
func NewJSONLoggerTo(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes key=value text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// done logs the outcome of op. Failures are logged at error level with only
// the failure attrs, successes at level with attrs.
func (l *Logger) done(ctx context.Context, op string, level slog.Level, err error, failure, attrs []any) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed", append(failure, "error", err)...)
		return
	}
	l.Log(ctx, level, op+" completed", attrs...)
}

// LogScore logs a scoring build over count documents.
func (l *Logger) LogScore(ctx context.Context, model string, count int, err error) {
	attrs := []any{"model", model, "count", count}
	l.done(ctx, "scoring", slog.LevelDebug, err, attrs, attrs)
}

// LogIndex logs an index build.
func (l *Logger) LogIndex(ctx context.Context, count, dimension int, structure string, err error) {
	l.done(ctx, "index build", slog.LevelInfo, err,
		[]any{"count", count},
		[]any{"count", count, "dimension", dimension, "structure", structure},
	)
}

// LogSearch logs a search.
func (l *Logger) LogSearch(ctx context.Context, limit, results int, err error) {
	l.done(ctx, "search", slog.LevelDebug, err,
		[]any{"limit", limit},
		[]any{"limit", limit, "results", results},
	)
}

// LogSave logs a save of artifacts blobs.
func (l *Logger) LogSave(ctx context.Context, artifacts int, err error) {
	l.done(ctx, "save", slog.LevelInfo, err, nil, []any{"artifacts", artifacts})
}

// LogLoad logs a load.
func (l *Logger) LogLoad(ctx context.Context, count int, structure string, err error) {
	l.done(ctx, "load", slog.LevelInfo, err, nil, []any{"count", count, "structure", structure})
}
