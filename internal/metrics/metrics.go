package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query status label values
const (
	StatusOK       = "ok"
	StatusInvalid  = "invalid"
	StatusTooLarge = "too_large"
	StatusError    = "error"
)

var (
	// QueriesTotal counts evaluated queries by outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightq_queries_total",
			Help: "Total number of evaluated queries",
		},
		[]string{"status"},
	)
	// QueryDuration is the latency of query evaluation.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightq_query_duration_seconds",
			Help:    "Query evaluation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	// QueryResultRows is the number of rows returned by successful queries.
	QueryResultRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightq_query_result_rows",
			Help:    "Rows returned per successful query",
			Buckets: []float64{0, 1, 10, 100, 500, 1000, 2500, 5000},
		},
	)
	// Datasets is the number of registered datasets.
	Datasets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insightq_datasets",
			Help: "Number of registered datasets",
		},
	)
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightq_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
