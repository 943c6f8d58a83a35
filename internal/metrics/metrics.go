// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the playlist engine:
// - Generation pipeline throughput and latency per variant
// - Cache-aside hit/miss rates and circuit breaker state
// - Background refresh batch progress
// - Database query performance (DuckDB)

var (
	// Generation Metrics
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wavemix_generation_total",
			Help: "Total number of playlist generation attempts",
		},
		[]string{"variant", "outcome"}, // outcome: "ok", "empty", "error"
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wavemix_generation_duration_seconds",
			Help:    "Duration of playlist generation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	TracksSelected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wavemix_tracks_selected",
			Help:    "Number of tracks selected per generated playlist",
			Buckets: []float64{0, 5, 10, 20, 30, 50, 75, 100},
		},
		[]string{"variant"},
	)

	// Cache Metrics
	PlaylistCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wavemix_playlist_cache_hits_total",
			Help: "Total number of playlist bundle cache hits",
		},
	)

	PlaylistCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wavemix_playlist_cache_misses_total",
			Help: "Total number of playlist bundle cache misses",
		},
	)

	PlaylistCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wavemix_playlist_cache_invalidations_total",
			Help: "Total number of explicit playlist bundle invalidations",
		},
	)

	CacheBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wavemix_cache_breaker_state",
			Help: "Cache circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	CacheBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wavemix_cache_breaker_requests_total",
			Help: "Cache requests seen by the circuit breaker, by result",
		},
		[]string{"breaker", "result"}, // result: "success", "failure", "rejected"
	)

	// Refresh Scheduler Metrics
	RefreshBatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wavemix_refresh_batches_total",
			Help: "Total number of scheduled refresh batches started",
		},
	)

	RefreshUsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wavemix_refresh_users_total",
			Help: "Total number of per-user refreshes, by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	RefreshBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wavemix_refresh_batch_duration_seconds",
			Help:    "Duration of a full refresh batch in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wavemix_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wavemix_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wavemix_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wavemix_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wavemix_api_active_requests",
			Help: "Number of API requests currently in flight",
		},
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
