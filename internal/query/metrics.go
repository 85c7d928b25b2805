package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bagbrowser_query_cache_hits_total",
		Help: "Queries answered from the result cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bagbrowser_query_cache_misses_total",
		Help: "Queries that had to be computed against the store.",
	})
	cachePurgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bagbrowser_query_cache_purges_total",
		Help: "Whole-cache purges caused by a store change or explicit invalidation.",
	})
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bagbrowser_query_duration_seconds",
		Help:    "Time to compute one query result against the store.",
		Buckets: prometheus.DefBuckets,
	})
)
