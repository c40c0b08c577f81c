package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manualsearch",
			Name:      "search_requests_total",
			Help:      "Search requests by mode and decision status",
		},
		[]string{"mode", "status"}, // mode: "list" / "ask"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "manualsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end retrieval pipeline duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	SearchDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manualsearch",
			Name:      "search_degraded_total",
			Help:      "Queries served in a degraded mode",
		},
		[]string{"reason"}, // "embedding_unavailable" / "intent_fallback" / "arbiter_unavailable"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers retrieval metrics. Called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchDegradedTotal)
	searchMetricsRegistered = true
}
