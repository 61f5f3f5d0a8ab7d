package metrics

import "github.com/prometheus/client_golang/prometheus"

// Evaluation and upstream harvesting metrics.
var (
	EvalMAP = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eval_map_at_k",
			Help:      "Mean average precision at k of the last evaluation run",
		},
		[]string{"ranker", "k"},
	)

	EvalAnyAtTop = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eval_any_at_top",
			Help:      "Queries with a relevant document in the first results of the last evaluation run",
		},
		[]string{"ranker", "top"},
	)

	EvalQueries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eval_queries",
			Help:      "Queries evaluated in the last evaluation run",
		},
		[]string{"ranker"},
	)

	EvalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_duration_seconds",
			Help:      "Evaluation run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"ranker"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to external metadata APIs",
		},
		[]string{"api", "status"},
	)
)

var evalMetricsRegistered bool

// RegisterEvalMetrics registers evaluation and upstream metrics. Safe to call repeatedly.
func RegisterEvalMetrics() {
	if evalMetricsRegistered {
		return
	}
	prometheus.MustRegister(EvalMAP)
	prometheus.MustRegister(EvalAnyAtTop)
	prometheus.MustRegister(EvalQueries)
	prometheus.MustRegister(EvalDuration)
	prometheus.MustRegister(UpstreamRequestsTotal)
	evalMetricsRegistered = true
}
