package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/florinutz/icelake"
	"github.com/florinutz/icelake/health"
	"github.com/florinutz/icelake/internal/backoff"
	"github.com/florinutz/icelake/metrics"
)

// ComponentTable is the health component reporting the table state.
const ComponentTable = "table"

// RefreshConfig controls the reload loop run by Refresher.Run.
type RefreshConfig struct {
	Interval    time.Duration // 0 loads once and then idles
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// RefreshStatus is the runtime state of a Refresher.
type RefreshStatus struct {
	LastAttempt         *time.Time `json:"last_attempt,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// Refresher keeps a table current by calling Load periodically. Failed loads
// are retried with jittered exponential backoff; the table keeps serving the
// last good version meanwhile.
type Refresher struct {
	table  *icelake.Table
	health *health.Checker
	logger *slog.Logger
	cfg    RefreshConfig

	reloadMu sync.Mutex

	mu     sync.RWMutex
	status RefreshStatus
}

// NewRefresher creates a refresher for t. The table health component starts
// down unless t is already loaded.
func NewRefresher(t *icelake.Table, cfg RefreshConfig, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = cfg.BackoffBase
	}
	r := &Refresher{
		table:  t,
		health: health.NewChecker(),
		logger: logger.With("component", "refresher"),
		cfg:    cfg,
	}
	if v := t.Version(); v != 0 {
		r.health.Set(ComponentTable, health.StatusUp, versionDetail(v))
	} else {
		r.health.Register(ComponentTable)
	}
	return r
}

// Table returns the refreshed table.
func (r *Refresher) Table() *icelake.Table { return r.table }

// Health returns the refresher's health checker.
func (r *Refresher) Health() *health.Checker { return r.health }

// Status returns a copy of the refresh state.
func (r *Refresher) Status() RefreshStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Reload loads the table once and reports whether the current version
// changed. Concurrent calls are serialized.
func (r *Refresher) Reload(ctx context.Context) (bool, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	before := r.table.Version()
	err := r.table.Load(ctx)
	now := time.Now().UTC()

	r.mu.Lock()
	r.status.LastAttempt = &now
	if err != nil {
		r.status.LastError = err.Error()
		r.status.ConsecutiveFailures++
	} else {
		r.status.LastSuccess = &now
		r.status.LastError = ""
		r.status.ConsecutiveFailures = 0
	}
	failures := r.status.ConsecutiveFailures
	r.mu.Unlock()

	if err != nil {
		metrics.RefreshFailures.Inc()
		status := health.StatusDegraded
		if r.table.Version() == 0 {
			status = health.StatusDown
		}
		r.health.Set(ComponentTable, status, err.Error())
		r.logger.WarnContext(ctx, "table refresh failed", "error", err, "consecutive_failures", failures)
		return false, err
	}

	after := r.table.Version()
	r.health.Set(ComponentTable, health.StatusUp, versionDetail(after))
	return after != before, nil
}

// Run reloads the table until ctx is cancelled. An unloaded table is loaded
// immediately. It always returns nil.
func (r *Refresher) Run(ctx context.Context) error {
	policy := backoff.Policy{Base: r.cfg.BackoffBase, Cap: r.cfg.BackoffCap}

	var delay time.Duration
	if r.table.Version() != 0 {
		if r.cfg.Interval <= 0 {
			<-ctx.Done()
			return nil
		}
		delay = r.cfg.Interval
	}

	r.logger.Info("refresher started", "interval", r.cfg.Interval)
	for {
		if err := backoff.Sleep(ctx, delay); err != nil {
			r.logger.Info("refresher stopped")
			return nil
		}

		if _, err := r.Reload(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay = policy.Next()
			r.logger.Info("retrying table load", "attempt", policy.Attempts(), "delay", delay)
			continue
		}
		policy.Reset()

		if r.cfg.Interval <= 0 {
			<-ctx.Done()
			return nil
		}
		delay = r.cfg.Interval
	}
}

func versionDetail(v int64) string {
	return fmt.Sprintf("version %d", v)
}
