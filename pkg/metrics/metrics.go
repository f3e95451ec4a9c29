package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projects_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	accessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projects_access_decisions_total",
			Help: "Project authorization decisions by action and outcome",
		},
		[]string{"action", "allowed"},
	)
	accessRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projects_access_requests_total",
			Help: "Access request lifecycle events",
		},
		[]string{"event"},
	)
)

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route, status string, seconds float64) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// RecordAccessDecision records an authorization check for action.
func RecordAccessDecision(action string, allowed bool) {
	label := "false"
	if allowed {
		label = "true"
	}
	accessDecisions.WithLabelValues(action, label).Inc()
}

// RecordAccessRequest records a request event: created, accepted or rejected.
func RecordAccessRequest(event string) {
	accessRequests.WithLabelValues(event).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
