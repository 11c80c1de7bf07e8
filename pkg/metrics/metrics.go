// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks backend request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatkit_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total backend requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_requests_total",
			Help: "Total backend requests",
		},
		[]string{"method", "path", "status"},
	)

	// TokenRefreshesTotal tracks refresh attempts by outcome.
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_token_refreshes_total",
			Help: "Token refresh attempts",
		},
		[]string{"outcome"},
	)

	// MessagesSentTotal tracks messages appended to conversations.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_messages_sent_total",
			Help: "Messages appended to conversations",
		},
		[]string{"role", "mode"},
	)

	// SendFailuresTotal tracks failed AI round trips.
	SendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatkit_send_failures_total",
			Help: "Failed AI message round trips",
		},
	)
)

// RecordRequest records metrics for one backend request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRefresh records one token refresh attempt.
func RecordRefresh(outcome string) {
	TokenRefreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordMessage records one message append.
func RecordMessage(role, mode string) {
	MessagesSentTotal.WithLabelValues(role, mode).Inc()
}
