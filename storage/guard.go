package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/florinutz/icelake/internal/circuitbreaker"
	"github.com/florinutz/icelake/internal/ratelimit"
)

// ErrCircuitOpen is returned while a circuit breaker added by
// WithCircuitBreaker rejects calls.
var ErrCircuitOpen = circuitbreaker.ErrOpen

type rateLimitedBackend struct {
	inner   Backend
	limiter *ratelimit.Limiter
}

// WithRateLimit wraps b so that calls wait for a token from a bucket
// refilled at requestsPerSecond. A rate <= 0 returns b unchanged.
func WithRateLimit(b Backend, requestsPerSecond float64, burst int) Backend {
	l := ratelimit.New(requestsPerSecond, burst, NameOf(b))
	if !l.Enabled() {
		return b
	}
	return &rateLimitedBackend{inner: b, limiter: l}
}

func (r *rateLimitedBackend) Name() string { return NameOf(r.inner) }

func (r *rateLimitedBackend) Exists(ctx context.Context, path string) (bool, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return false, err
	}
	return r.inner.Exists(ctx, path)
}

func (r *rateLimitedBackend) Read(ctx context.Context, path string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Read(ctx, path)
}

func (r *rateLimitedBackend) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.List(ctx, prefix)
}

type breakerBackend struct {
	inner   Backend
	breaker *circuitbreaker.CircuitBreaker
}

// WithCircuitBreaker wraps b so that after maxFailures consecutive failed
// calls every call fails fast with ErrCircuitOpen until a trial call, let
// through every resetTimeout, succeeds. ErrNotFound and context errors do not
// count as failures. maxFailures <= 0 returns b unchanged.
func WithCircuitBreaker(b Backend, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) Backend {
	if maxFailures <= 0 {
		return b
	}
	return &breakerBackend{
		inner:   b,
		breaker: circuitbreaker.New(NameOf(b), maxFailures, resetTimeout, logger),
	}
}

func (c *breakerBackend) Name() string { return NameOf(c.inner) }

func (c *breakerBackend) Exists(ctx context.Context, path string) (ok bool, err error) {
	err = c.breaker.Do(func() error {
		ok, err = c.inner.Exists(ctx, path)
		return err
	}, countable)
	return ok, err
}

func (c *breakerBackend) Read(ctx context.Context, path string) (data []byte, err error) {
	err = c.breaker.Do(func() error {
		data, err = c.inner.Read(ctx, path)
		return err
	}, countable)
	return data, err
}

func (c *breakerBackend) List(ctx context.Context, prefix string) (entries []Entry, err error) {
	err = c.breaker.Do(func() error {
		entries, err = c.inner.List(ctx, prefix)
		return err
	}, countable)
	return entries, err
}

func countable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
