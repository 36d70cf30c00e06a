package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotrack_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neurotrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotrack_analyses_total",
			Help: "Session analyses by outcome",
		},
		[]string{"status"},
	)

	QualityRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotrack_quality_rejections_total",
			Help: "Recordings rejected by the signal quality gate",
		},
		[]string{"reason"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neurotrack_analysis_duration_seconds",
			Help:    "Time spent analysing a session, cache misses only",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2},
		},
	)

	SamplesImportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotrack_samples_imported_total",
			Help: "EEG samples imported by file format",
		},
		[]string{"format"},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotrack_cache_requests_total",
			Help: "Analysis cache lookups by result",
		},
		[]string{"result"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurotrack_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

// PrometheusHandler serves the default registry.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
