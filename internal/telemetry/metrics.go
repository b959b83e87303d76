/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP surface metrics, recorded by MetricsMiddleware.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_api_requests_total",
		Help: "HTTP requests by method, endpoint, and status code.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skald_api_request_duration_seconds",
		Help:    "HTTP request latency by method, endpoint, and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skald_api_active_connections",
		Help: "HTTP requests currently in flight.",
	})
)

// Database metrics, recorded by the GORM callbacks in internal/db.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skald_db_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_db_errors_total",
		Help: "Database errors by operation and kind.",
	}, []string{"operation", "kind"})
)

// Engine command socket metrics, recorded by the liquidsoap client.
var (
	EngineCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_engine_commands_total",
		Help: "Engine commands issued by command kind and outcome.",
	}, []string{"command", "outcome"})

	EngineCommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skald_engine_command_duration_seconds",
		Help:    "Engine command round-trip latency by command kind.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"command"})

	EngineReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_engine_reconnects_total",
		Help: "Engine socket reconnect attempts by station.",
	}, []string{"station_id"})
)

// Queue coordinator metrics.
var (
	QueueIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_queue_intents_total",
		Help: "Playback intents handled by intent kind and outcome.",
	}, []string{"intent", "outcome"})

	QueueEntriesPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skald_queue_entries_pending",
		Help: "Undispatched queue entries per station.",
	}, []string{"station_id"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
