package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AcceptedRequests counts requests that passed validation and were
	// handed to the dispatcher.
	AcceptedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vllm_gateway",
		Name:      "accepted_requests_total",
		Help:      "Number of chat-completion requests accepted for background processing",
	})

	// RejectedRequests counts requests refused before dispatch, by reason.
	RejectedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vllm_gateway",
		Name:      "rejected_requests_total",
		Help:      "Number of chat-completion requests rejected before dispatch",
	}, []string{"reason"})

	// Outcomes counts outcome rows written, by status (success / backend_error).
	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vllm_gateway",
		Name:      "outcomes_total",
		Help:      "Number of outcome records written to the store",
	}, []string{"status"})

	// InFlightTasks tracks currently running background tasks.
	InFlightTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vllm_gateway",
		Name:      "in_flight_tasks",
		Help:      "Number of background tasks currently processing",
	})

	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vllm_gateway",
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of backend chat-completion calls",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"outcome"})
)

// ObserveBackendLatency records one backend call's duration.
func ObserveBackendLatency(start time.Time, failed bool) {
	outcome := "success"
	if failed {
		outcome = "error"
	}
	backendDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
