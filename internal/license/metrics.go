package license

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for calls to the licensing server.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewMetrics creates and registers license metrics with the given registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eddlicense_remote_requests_total",
			Help: "Total number of licensing server requests by action and result",
		}, []string{"action", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eddlicense_remote_request_duration_seconds",
			Help:    "Duration of licensing server requests by action",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		}, []string{"action"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eddlicense_operation_outcomes_total",
			Help: "Total number of license operations by operation and outcome",
		}, []string{"operation", "outcome"}),
	}

	registry.MustRegister(m.requests, m.duration, m.outcomes)
	return m
}

// Request results.
const (
	resultSuccess   = "success"
	resultHTTPError = "http_error"
	resultFailure   = "failure"
)

// RequestDone records one licensing server round trip.
func (m *Metrics) RequestDone(action Action, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(action), result).Inc()
	m.duration.WithLabelValues(string(action)).Observe(d.Seconds())
}

// OperationDone records the branch a license operation took.
func (m *Metrics) OperationDone(operation string, outcome Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, string(outcome)).Inc()
}
