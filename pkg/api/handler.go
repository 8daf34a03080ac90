// Package api provides the REST endpoints for named configurations.
package api

import (
	"net/http"
	"time"

	"github.com/txn2/configs-api/pkg/configs"
)

// maxBodyBytes caps request bodies for create and update.
const maxBodyBytes = 1 << 20

const pathParamName = "name"

// Handler serves the config REST API.
type Handler struct {
	mux     *http.ServeMux
	svc     *configs.Service
	metrics *Metrics
	handler http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records request counts and latencies in m.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a new config API handler over svc.
func NewHandler(svc *configs.Service, opts ...Option) *Handler {
	h := &Handler{
		mux: http.NewServeMux(),
		svc: svc,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registerRoutes()
	h.handler = RequestID(LogRequests(h.mux))
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// registerRoutes registers all config API routes.
func (h *Handler) registerRoutes() {
	h.handle("GET /configs", h.listConfigs)
	h.handle("POST /configs", h.createConfig)
	h.handle("GET /configs/{name}", h.getConfig)
	h.handle("PUT /configs/{name}", h.updateConfig)
	h.handle("DELETE /configs/{name}", h.deleteConfig)
	h.handle("GET /search", h.searchConfigs)
}

// handle registers fn under pattern, instrumented with the pattern as its route label.
func (h *Handler) handle(pattern string, fn http.HandlerFunc) {
	if h.metrics == nil {
		h.mux.HandleFunc(pattern, fn)
		return
	}
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		fn(rec, r)
		h.metrics.observe(pattern, rec.status, time.Since(start))
	})
}
