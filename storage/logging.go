package storage

import (
	"context"
	"log/slog"
	"time"
)

type loggingBackend struct {
	inner  Backend
	logger *slog.Logger
}

// WithLogging wraps b so that every call is logged at debug level, and
// failures at warn level.
func WithLogging(b Backend, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingBackend{
		inner:  b,
		logger: logger.With("component", "storage", "backend", NameOf(b)),
	}
}

func (l *loggingBackend) Name() string { return NameOf(l.inner) }

func (l *loggingBackend) Exists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	ok, err := l.inner.Exists(ctx, path)
	l.log(ctx, "exists", path, start, err, "exists", ok)
	return ok, err
}

func (l *loggingBackend) Read(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	data, err := l.inner.Read(ctx, path)
	l.log(ctx, "read", path, start, err, "bytes", len(data))
	return data, err
}

func (l *loggingBackend) List(ctx context.Context, prefix string) ([]Entry, error) {
	start := time.Now()
	entries, err := l.inner.List(ctx, prefix)
	l.log(ctx, "list", prefix, start, err, "entries", len(entries))
	return entries, err
}

func (l *loggingBackend) log(ctx context.Context, op, path string, start time.Time, err error, args ...any) {
	args = append(args, "op", op, "path", path, "duration", time.Since(start))
	if err != nil {
		l.logger.WarnContext(ctx, "storage operation failed", append(args, "error", err)...)
		return
	}
	l.logger.DebugContext(ctx, "storage operation", args...)
}
