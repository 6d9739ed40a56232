// ABOUTME: Prometheus collectors for turns, outbound activities, and token operations
// ABOUTME: Registered on the default registry and served from /metrics

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coven_adapter_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coven_adapter_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Turn metrics
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coven_adapter_turns_total",
			Help: "Inbound turns processed, by channel and response status",
		},
		[]string{"channel", "status"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coven_adapter_turn_duration_seconds",
			Help:    "Time from request receipt to response",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	ProactiveTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coven_adapter_proactive_turns_total",
			Help: "Proactive turns started, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "continue" or "create"
	)

	// Outbound metrics
	OutboundActivities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coven_adapter_outbound_activities_total",
			Help: "Outgoing activities handled by the dispatcher, by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: "ok", "error", "dropped", "cached"
	)

	// Token metrics
	TokenOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coven_adapter_token_operations_total",
			Help: "Token-service operations, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Middleware metrics
	DuplicateActivities = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coven_adapter_duplicate_activities_total",
			Help: "Redelivered activities dropped by deduplication",
		},
	)
)

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
