/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus collectors, HTTP middleware and
// OpenTelemetry tracing helpers.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Playback metrics.
var (
	PlaybackEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_playback_evaluations_total",
		Help: "Number of live now-playing evaluations, by answer kind.",
	}, []string{"kind"})

	PlaybackAdvancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mimir_playback_advances_total",
		Help: "Number of explicit playback advance signals handled.",
	})

	AdBreaksStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mimir_adbreak_started_total",
		Help: "Number of commercial breaks entered.",
	})

	AdBreakCommercialsServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mimir_adbreak_commercials_served_total",
		Help: "Number of commercials served inside breaks.",
	})
)

// Guide metrics.
var (
	GuideSimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_guide_simulations_total",
		Help: "Number of guide simulations run, by outcome.",
	}, []string{"status"})

	GuideSimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mimir_guide_simulation_duration_seconds",
		Help:    "Wall time spent simulating guide windows.",
		Buckets: prometheus.DefBuckets,
	})

	GuideRefreshTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mimir_guide_refresh_ticks_total",
		Help: "Number of background guide refresher ticks.",
	})

	GuideArchivesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_guide_archives_total",
		Help: "XMLTV snapshots uploaded to object storage, by outcome.",
	}, []string{"status"})
)

// API metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_api_requests_total",
		Help: "Number of API requests by method, endpoint and status code.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mimir_api_request_duration_seconds",
		Help:    "API request latency by method, endpoint and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mimir_api_active_connections",
		Help: "Number of in-flight API requests.",
	})

	WebsocketClientsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mimir_websocket_clients_active",
		Help: "Number of connected now-playing websocket clients.",
	})
)

// Database metrics.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mimir_database_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_database_errors_total",
		Help: "Database errors by operation and error type.",
	}, []string{"operation", "type"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mimir_database_connections_active",
		Help: "Open database connections.",
	})
)

// Cache and event metrics.
var (
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_cache_hits_total",
		Help: "Cache hits by cache name.",
	}, []string{"cache"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_cache_misses_total",
		Help: "Cache misses by cache name.",
	}, []string{"cache"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mimir_events_published_total",
		Help: "Events published on the internal bus by topic.",
	}, []string{"topic"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
