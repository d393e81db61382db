// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for outbox operations
var (
	walWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrortracker_outbox_writes_total",
		Help: "Total number of writes queued in the outbox",
	})

	walWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrortracker_outbox_write_failures_total",
		Help: "Total number of writes that could not be queued",
	})

	walConfirmsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrortracker_outbox_confirms_total",
		Help: "Total number of queued writes delivered to the remote store",
	})

	walRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrortracker_outbox_retries_total",
		Help: "Total number of failed delivery attempts",
	})

	walPendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirrortracker_outbox_pending_entries",
		Help: "Current number of queued writes",
	})

	walDeliveredEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirrortracker_outbox_delivered_entries",
		Help: "Delivered entries awaiting compaction",
	})

	walWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirrortracker_outbox_write_latency_seconds",
		Help:    "Outbox write latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	walDBSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirrortracker_outbox_db_size_bytes",
		Help: "BadgerDB database size in bytes",
	})

	walExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrortracker_outbox_expired_total",
		Help: "Queued writes dropped for age or retry exhaustion",
	})

	walCompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrortracker_outbox_compactions_total",
		Help: "Total number of compaction runs",
	})

	walEntriesCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrortracker_outbox_entries_compacted_total",
		Help: "Total number of entries removed during compaction",
	})
)
