package circuitbreaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/florinutz/icelake/metrics"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// State represents the current state of the circuit breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// CircuitBreaker stops calling a failing backend after maxFailures
// consecutive failures and lets one trial call through every resetTimeout.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	openedAt     time.Time
	trial        bool
	logger       *slog.Logger
}

// New creates a closed breaker for the named backend.
func New(name string, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		name:         name,
		state:        StateClosed,
		maxFailures:  max(maxFailures, 1),
		resetTimeout: resetTimeout,
		logger:       logger.With("component", "circuitbreaker", "backend", name),
	}
}

// Do runs fn unless the breaker is open. Errors for which countable returns
// false pass through without touching the failure count.
func (cb *CircuitBreaker) Do(fn func() error, countable func(error) bool) error {
	if !cb.allow() {
		metrics.StorageBreakerRejections.WithLabelValues(cb.name).Inc()
		return ErrOpen
	}
	err := fn()
	if err != nil && countable(err) {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

// allow admits every call while closed, and a single trial call once the
// open breaker's reset timeout has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.trial = true
		cb.logger.Info("circuit breaker half-open", "previous_failures", cb.failures)
		return true
	case StateHalfOpen:
		if cb.trial {
			return false
		}
		cb.trial = true
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.logger.Info("circuit breaker closed after successful trial")
	}
	cb.failures = 0
	cb.trial = false
	cb.setState(StateClosed)
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.trial = false

	switch {
	case cb.state == StateHalfOpen:
		cb.openedAt = time.Now()
		cb.setState(StateOpen)
		cb.logger.Warn("circuit breaker re-opened after half-open failure", "failures", cb.failures)
	case cb.state == StateClosed && cb.failures >= cb.maxFailures:
		cb.openedAt = time.Now()
		cb.setState(StateOpen)
		cb.logger.Warn("circuit breaker opened", "failures", cb.failures, "max_failures", cb.maxFailures)
	}
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	open := 0.0
	if s == StateOpen {
		open = 1
	}
	metrics.StorageBreakerOpen.WithLabelValues(cb.name).Set(open)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
