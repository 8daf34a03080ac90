// Package health tracks service readiness and serves the liveness and
// readiness probes. Readiness also requires every registered dependency,
// such as the config store, to answer a ping.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// defaultPingTimeout bounds each dependency ping during a readiness probe.
const defaultPingTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name   string
	pinger Pinger
}

// Checker tracks the readiness state of the service.
// It is safe for concurrent use.
type Checker struct {
	state       atomic.Int32
	mu          sync.RWMutex
	deps        []dependency
	pingTimeout time.Duration
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{pingTimeout: defaultPingTimeout}
}

// AddDependency registers p under name. Readiness fails while p.Ping fails.
func (c *Checker) AddDependency(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps = append(c.deps, dependency{name: name, pinger: p})
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// CheckDependencies pings every dependency and returns the failures by name.
// An empty map means all dependencies answered.
func (c *Checker) CheckDependencies(ctx context.Context) map[string]string {
	c.mu.RLock()
	deps := c.deps
	c.mu.RUnlock()

	failures := make(map[string]string)
	for _, d := range deps {
		pingCtx, cancel := context.WithTimeout(ctx, c.pingTimeout)
		err := d.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			failures[d.name] = err.Error()
		}
	}
	return failures
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
// Use this for K8s livenessProbe (/healthz).
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 when ready
// and every dependency answers, and 503 otherwise.
// Use this for K8s readinessProbe (/readyz).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		if failures := c.CheckDependencies(r.Context()); len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Dependencies: failures})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
