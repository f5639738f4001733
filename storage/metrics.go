package storage

import (
	"context"
	"time"

	"github.com/florinutz/icelake/metrics"
)

type metricsBackend struct {
	inner Backend
	name  string
}

// WithMetrics wraps b so that every call is counted and timed.
func WithMetrics(b Backend) Backend {
	return &metricsBackend{inner: b, name: NameOf(b)}
}

func (m *metricsBackend) Name() string { return m.name }

func (m *metricsBackend) Exists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	ok, err := m.inner.Exists(ctx, path)
	m.observe("exists", start, err)
	return ok, err
}

func (m *metricsBackend) Read(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	data, err := m.inner.Read(ctx, path)
	m.observe("read", start, err)
	if err == nil {
		metrics.StorageBytesRead.WithLabelValues(m.name).Add(float64(len(data)))
	}
	return data, err
}

func (m *metricsBackend) List(ctx context.Context, prefix string) ([]Entry, error) {
	start := time.Now()
	entries, err := m.inner.List(ctx, prefix)
	m.observe("list", start, err)
	return entries, err
}

func (m *metricsBackend) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StorageOperations.WithLabelValues(m.name, op, result).Inc()
	metrics.StorageOperationDuration.WithLabelValues(m.name, op).Observe(time.Since(start).Seconds())
}
