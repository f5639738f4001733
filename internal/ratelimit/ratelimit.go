package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/florinutz/icelake/metrics"
)

// Limiter wraps a token-bucket rate limiter with metrics.
type Limiter struct {
	limiter *rate.Limiter
	backend string
}

// New creates a limiter for requests to the named backend. If
// requestsPerSecond is <= 0, the limiter is a no-op.
func New(requestsPerSecond float64, burst int, backend string) *Limiter {
	var l *rate.Limiter
	if requestsPerSecond > 0 {
		l = rate.NewLimiter(rate.Limit(requestsPerSecond), max(burst, 1))
	}
	return &Limiter{limiter: l, backend: backend}
}

// Enabled reports whether the limiter ever blocks.
func (l *Limiter) Enabled() bool { return l.limiter != nil }

// Wait blocks until the limiter allows a request, or ctx is cancelled.
// Returns nil immediately in no-op mode.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}

	start := time.Now()
	err := l.limiter.Wait(ctx)
	elapsed := time.Since(start)

	if err == nil && elapsed > time.Millisecond {
		metrics.StorageRateLimitWaits.WithLabelValues(l.backend).Inc()
		metrics.StorageRateLimitWaitDuration.WithLabelValues(l.backend).Observe(elapsed.Seconds())
	}

	return err
}
