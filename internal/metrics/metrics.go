// Package metrics exposes the Prometheus instruments served on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	EmailsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_synced_total",
			Help: "Emails stored by sync passes",
		},
		[]string{"outcome"}, // stored, duplicate
	)

	SyncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_sync_passes_total",
			Help: "Email sync passes by result",
		},
		[]string{"result"}, // success, error
	)

	CompletionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_calls_total",
			Help: "LLM completion calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_latency_seconds",
			Help:    "LLM completion call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"operation"},
	)
)

// ObserveCompletion records one LLM call.
func ObserveCompletion(operation string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	CompletionCalls.WithLabelValues(operation, result).Inc()
	CompletionLatency.WithLabelValues(operation).Observe(duration.Seconds())
}
