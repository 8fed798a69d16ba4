// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_fetches_total",
			Help: "Total number of upstream provider fetches",
		},
		[]string{"provider", "outcome"},
	)

	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "provider_fetch_duration_seconds",
			Help: "Duration of upstream provider fetches in seconds",
		},
		[]string{"provider"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)

	AggregationsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregations_degraded_total",
			Help: "Aggregations that returned with fewer providers than attempted",
		},
	)

	LanguageModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "language_model_calls_total",
			Help: "Language model calls by outcome",
		},
		[]string{"outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"route", "status"},
	)
)
