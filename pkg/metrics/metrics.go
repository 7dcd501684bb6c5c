package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Custom histogram buckets optimized for API response times ranging from
	// milliseconds to 30+ seconds
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55}

	// Remote API client metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_client_request_duration_seconds",
			Help:    "Remote API request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"method", "path", "status"},
	)

	APIRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_request_total",
			Help: "Total number of remote API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_request_retries_total",
			Help: "Total number of requests re-issued after a token refresh",
		},
		[]string{"path"},
	)

	// Token refresh metrics
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_token_refresh_total",
			Help: "Total number of token refresh attempts",
		},
		[]string{"status"},
	)

	// Session restoration metrics
	SessionRestoreTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_restore_total",
			Help: "Total number of boot-time session restorations",
		},
		[]string{"status"},
	)

	// Upload metrics
	UploadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_upload_total",
			Help: "Total number of multipart uploads",
		},
		[]string{"status"},
	)

	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_client_upload_duration_seconds",
			Help:    "Multipart upload duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"status"},
	)

	// Offline cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_hits_total",
			Help: "Total number of offline cache hits",
		},
		[]string{"route"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_misses_total",
			Help: "Total number of offline cache misses",
		},
		[]string{"route"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offline_cache_entries",
			Help: "Number of entries in the current offline cache version",
		},
		[]string{"version"},
	)

	CacheVersionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_cache_versions_swept_total",
			Help: "Total number of stale cache versions deleted on activation",
		},
	)
)

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
