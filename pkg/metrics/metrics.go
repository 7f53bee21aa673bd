// Package metrics defines the Prometheus collectors for the fast-terms
// bridge and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the bridge.
type Metrics struct {
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	QueryDocCount      prometheus.Histogram
	ResponseByteSize   prometheus.Histogram
	ShardFailuresTotal *prometheus.CounterVec
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	RowsMaterialized   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastterms_queries_total",
				Help: "Total fast-terms queries by index, data type, and status.",
			},
			[]string{"index", "data_type", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fastterms_query_duration_seconds",
				Help:    "Broadcast-and-merge latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"index", "data_type"},
		),
		QueryDocCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fastterms_query_doc_count",
				Help:    "Distinct values returned per query.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
		),
		ResponseByteSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fastterms_response_bytes_estimate",
				Help:    "Estimated response payload size in bytes.",
				Buckets: prometheus.ExponentialBuckets(64, 4, 10),
			},
		),
		ShardFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastterms_shard_failures_total",
				Help: "Shard failures recorded during broadcasts, by index.",
			},
			[]string{"index"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fastterms_cache_hits_total",
				Help: "Result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fastterms_cache_misses_total",
				Help: "Result cache misses.",
			},
		),
		RowsMaterialized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fastterms_rows_materialized_total",
				Help: "Rows bulk-loaded into Postgres by the bridge.",
			},
		),
	}
	prometheus.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.QueryDocCount,
		m.ResponseByteSize,
		m.ShardFailuresTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RowsMaterialized,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
