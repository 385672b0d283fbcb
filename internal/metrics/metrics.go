// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Build Metrics
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_build_duration_seconds",
			Help:    "Duration of snapshot builds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_builds_total",
			Help: "Total number of snapshot builds by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "rejected"
	)

	SnapshotItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_snapshot_items",
			Help: "Corpus size of the active snapshot",
		},
	)

	SnapshotVocabulary = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_snapshot_vocabulary_terms",
			Help: "Vocabulary size of the active snapshot",
		},
	)

	SnapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_snapshot_version",
			Help: "Number of snapshot swaps since process start",
		},
	)

	ArtifactBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_artifact_bytes",
			Help: "Size of the last persisted artifact in bytes",
		},
	)

	// Query Metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_queries_total",
			Help: "Total number of recommendation queries",
		},
		[]string{"operation", "outcome"}, // operation: "single", "many"
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_query_duration_seconds",
			Help:    "Latency of recommendation queries in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"operation"},
	)

	SkippedTitles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_batch_skipped_titles_total",
			Help: "Batch query input titles that were not found in the corpus",
		},
	)

	// Cache Metrics
	QueryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_query_cache_hits_total",
			Help: "Total number of query cache hits",
		},
	)

	QueryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_query_cache_misses_total",
			Help: "Total number of query cache misses",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordBuild records the outcome of one snapshot build.
func RecordBuild(duration time.Duration, err error) {
	if err != nil {
		BuildsTotal.WithLabelValues("failure").Inc()
		return
	}
	BuildsTotal.WithLabelValues("success").Inc()
	BuildDuration.Observe(duration.Seconds())
}

// RecordBuildRejected counts a rebuild refused because another was running.
func RecordBuildRejected() {
	BuildsTotal.WithLabelValues("rejected").Inc()
}

// UpdateSnapshot publishes the shape of a newly activated snapshot.
func UpdateSnapshot(version int64, items, vocabulary int) {
	SnapshotVersion.Set(float64(version))
	SnapshotItems.Set(float64(items))
	SnapshotVocabulary.Set(float64(vocabulary))
}

// RecordQuery records one query. outcome is "ok", "not_found", "invalid" or "error".
func RecordQuery(operation, outcome string, duration time.Duration) {
	QueriesTotal.WithLabelValues(operation, outcome).Inc()
	QueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
