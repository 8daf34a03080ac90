package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for the config API.
type Metrics struct {
	requests *prometheus.CounterVec   // by route and code
	duration *prometheus.HistogramVec // by route
}

// NewMetrics creates the API collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "configs",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of config API requests",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "configs",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Config API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe records one completed request. route is the mux pattern and
// already carries the method.
func (m *Metrics) observe(route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}
