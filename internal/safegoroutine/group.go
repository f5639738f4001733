// Package safegoroutine runs errgroup goroutines that turn panics into
// errors instead of crashing the process.
package safegoroutine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/florinutz/icelake/metrics"
)

// Group is an errgroup.Group whose goroutines recover from panics. A
// recovered panic is logged with its stack, counted, and returned from
// Wait as an error naming the goroutine.
type Group struct {
	g      *errgroup.Group
	logger *slog.Logger
}

// WithContext returns a Group and a context cancelled when the first
// goroutine fails or panics.
func WithContext(ctx context.Context, logger *slog.Logger) (*Group, context.Context) {
	if logger == nil {
		logger = slog.Default()
	}
	g, ctx := errgroup.WithContext(ctx)
	return &Group{g: g, logger: logger}, ctx
}

// SetLimit caps the number of goroutines running at once.
func (g *Group) SetLimit(n int) { g.g.SetLimit(n) }

// Go runs fn in a new goroutine. name labels logs and metrics.
func (g *Group) Go(name string, fn func() error) {
	g.g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				metrics.PanicsRecovered.WithLabelValues(name).Inc()
				g.logger.Error("panic recovered",
					"component", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				err = fmt.Errorf("panic in %s: %v", name, r)
			}
		}()
		return fn()
	})
}

// Wait blocks until every goroutine returned and reports the first error.
func (g *Group) Wait() error { return g.g.Wait() }
