// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package metrics holds the Prometheus instruments for Mirror Tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline outcomes.
const (
	OutcomeWritten       = "written"
	OutcomeInvalid       = "invalid_coordinates"
	OutcomeGeocodeFailed = "geocode_failed"
	OutcomeNoResults     = "no_results"
	OutcomeUnavailable   = "geocoder_unavailable"
	OutcomeWriteFailed   = "write_failed"
)

var (
	// Location pipeline
	PipelineFixesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_pipeline_fixes_total",
			Help: "Raw location fixes processed, by outcome",
		},
		[]string{"outcome"},
	)

	GeocodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mirrortracker_geocode_duration_seconds",
			Help:    "Reverse geocode latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GeocoderCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirrortracker_geocoder_circuit_state",
			Help: "Geocoder circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	GeocoderCircuitTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_geocoder_circuit_transitions_total",
			Help: "Geocoder circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	GeocodeCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_geocode_cache_lookups_total",
			Help: "Reverse geocode cache lookups, by result (hit, miss)",
		},
		[]string{"result"},
	)

	// Remote store
	RemoteWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_remote_writes_total",
			Help: "Remote store writes, by key kind and result",
		},
		[]string{"kind", "result"}, // result: ok, queued, error
	)

	RemoteWatchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_remote_watch_events_total",
			Help: "Snapshots delivered by remote watches",
		},
		[]string{"kind"},
	)

	RemoteConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirrortracker_remote_connected",
			Help: "1 when the remote store connection is up",
		},
	)

	// Geofences
	GeofencesRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirrortracker_geofences_registered",
			Help: "Geofences currently registered with the location provider",
		},
	)

	GeofenceRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_geofence_rejected_total",
			Help: "Geofences dropped by validation, by reason",
		},
		[]string{"reason"},
	)

	GeofenceTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_geofence_transitions_total",
			Help: "Geofence transitions observed, by kind",
		},
		[]string{"transition"},
	)

	// Coordinator
	TrackingState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirrortracker_tracking_state",
			Help: "Coordinator state (0=stopped, 1=starting, 2=active)",
		},
	)

	PolicyEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_policy_evaluations_total",
			Help: "Tracking policy evaluations, by result",
		},
		[]string{"result"},
	)

	// Debug log
	DebugLogAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_debuglog_appends_total",
			Help: "Debug log appends, by persistence result",
		},
		[]string{"result"},
	)

	// HTTP / WebSocket
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrortracker_api_requests_total",
			Help: "HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirrortracker_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirrortracker_websocket_connections",
			Help: "Connected WebSocket observers",
		},
	)
)

// RecordFix records the outcome of one pass through the location pipeline.
func RecordFix(outcome string) {
	PipelineFixesTotal.WithLabelValues(outcome).Inc()
}

// RecordGeocode observes geocode latency.
func RecordGeocode(d time.Duration) {
	GeocodeDuration.Observe(d.Seconds())
}

// RecordRemoteWrite records a remote write attempt.
func RecordRemoteWrite(kind, result string) {
	RemoteWritesTotal.WithLabelValues(kind, result).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordDebugLogAppend records whether an append reached disk.
func RecordDebugLogAppend(persisted bool) {
	if persisted {
		DebugLogAppendsTotal.WithLabelValues("persisted").Inc()
		return
	}
	DebugLogAppendsTotal.WithLabelValues("failed").Inc()
}

// SetConnected mirrors the remote connection state.
func SetConnected(up bool) {
	if up {
		RemoteConnected.Set(1)
		return
	}
	RemoteConnected.Set(0)
}
