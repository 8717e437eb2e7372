package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"status"}, // "ok" / "validation_error" / "error"
	)

	StrategyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mnemo",
			Name:      "search_strategy_duration_seconds",
			Help:      "Per-strategy execution duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	StrategyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "search_strategy_failures_total",
			Help:      "Strategy executions excluded from fusion",
		},
		[]string{"strategy", "reason"}, // reason: "timeout" / "backend_error"
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "search_cache_total",
			Help:      "Result cache hits, misses, bypasses, and shared single-flight waits",
		},
		[]string{"result"}, // "hit" / "miss" / "bypass" / "shared"
	)

	AnalyzerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "query_analyzer_total",
			Help:      "Query analyses by source",
		},
		[]string{"source"}, // "llm" / "heuristic" / "cache"
	)

	RerankTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Name:      "rerank_requests_total",
			Help:      "Reranker calls by outcome",
		},
		[]string{"status"}, // "ok" / "failed_open" / "skipped"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search pipeline metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(StrategyDuration)
	prometheus.MustRegister(StrategyFailuresTotal)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(AnalyzerTotal)
	prometheus.MustRegister(RerankTotal)
	searchMetricsRegistered = true
}
