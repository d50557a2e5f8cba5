package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foerderscout_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foerderscout_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foerderscout_jobs_completed_total",
			Help: "Total number of background jobs completed",
		},
		[]string{"job_type"},
	)

	JobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foerderscout_jobs_failed_total",
			Help: "Total number of background jobs failed",
		},
		[]string{"job_type"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foerderscout_job_duration_seconds",
			Help:    "Duration of background job processing in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"job_type"},
	)

	GrantSearchCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foerderscout_grant_search_cache_total",
			Help: "Grant search cache lookups by result",
		},
		[]string{"result"},
	)
)
