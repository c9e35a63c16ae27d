package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics, registered once via promauto on the default registry
// and served at /metrics.
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimirgw_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mimirgw_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mimirgw_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	queriesRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mimirgw_queries_rejected_total",
			Help: "Queries refused by the read-only classifier",
		},
	)

	expansionsTruncatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mimirgw_expansions_truncated_total",
			Help: "Neighborhood expansions halted by the node budget",
		},
	)
)
