package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health state of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Component is the last reported state of one component.
type Component struct {
	Status Status    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	Since  time.Time `json:"since"`
}

// Checker tracks the health of registered components. The table component
// is down until the first successful load and degraded while background
// refreshes fail after that.
type Checker struct {
	mu         sync.RWMutex
	components map[string]Component
}

// NewChecker creates a Checker with no registered components.
func NewChecker() *Checker {
	return &Checker{components: make(map[string]Component)}
}

// Register adds a component with an initial status of down.
func (c *Checker) Register(name string) {
	c.Set(name, StatusDown, "not started")
}

// Set records the status of a named component. Since only moves when the
// status changes.
func (c *Checker) Set(name string, status Status, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.components[name]
	since := prev.Since
	if !ok || prev.Status != status {
		since = time.Now().UTC()
	}
	c.components[name] = Component{Status: status, Detail: detail, Since: since}
}

// Get returns the state of a component.
func (c *Checker) Get(name string) (Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.components[name]
	return comp, ok
}

// Overall folds every component into one status: down wins over degraded,
// degraded over up.
func (c *Checker) Overall() Status {
	overall, _ := c.snapshot()
	return overall
}

func (c *Checker) snapshot() (Status, map[string]Component) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	overall := StatusUp
	comps := make(map[string]Component, len(c.components))
	for name, comp := range c.components {
		comps[name] = comp
		switch comp.Status {
		case StatusDown:
			overall = StatusDown
		case StatusDegraded:
			if overall == StatusUp {
				overall = StatusDegraded
			}
		}
	}
	return overall, comps
}

type response struct {
	Status     Status               `json:"status"`
	Components map[string]Component `json:"components"`
}

// ServeHTTP responds with the aggregated health status.
// Returns 200 when no component is down, 503 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	overall, comps := c.snapshot()

	w.Header().Set("Content-Type", "application/json")
	if overall == StatusDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response{Status: overall, Components: comps})
}

// Readiness returns a handler answering 200 {"ready":true} once no
// component is down, and 503 before that. A degraded table still serves the
// last loaded version, so it counts as ready.
func (c *Checker) Readiness() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ready := c.Overall() != StatusDown
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
	})
}
