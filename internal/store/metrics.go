// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for store operations.
var (
	// storeOpDuration measures store operation latency by operation.
	storeOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchkeeper_store_op_duration_seconds",
		Help:    "Store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// matchesCreatedTotal counts lazily created matches.
	matchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchkeeper_store_matches_created_total",
		Help: "Total number of match records created",
	})

	// timelineEntriesTotal counts appended timeline entries.
	timelineEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchkeeper_store_timeline_entries_total",
		Help: "Total number of timeline entries appended",
	})

	// matchRecords is the current number of match records.
	matchRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchkeeper_store_match_records",
		Help: "Current number of match records",
	})

	// matchesInProgress is the current number of in-progress matches.
	matchesInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchkeeper_store_matches_in_progress",
		Help: "Current number of in-progress matches",
	})

	// dbSizeBytes is the estimated BadgerDB size.
	dbSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchkeeper_store_db_size_bytes",
		Help: "BadgerDB database size in bytes",
	})
)

// observeOp records one store operation's latency.
func observeOp(op string, start time.Time) {
	storeOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// recordMatchCreated increments the created matches counter.
func recordMatchCreated() {
	matchesCreatedTotal.Inc()
}

// recordEntriesAppended adds to the timeline entries counter.
func recordEntriesAppended(n int) {
	timelineEntriesTotal.Add(float64(n))
}

// updateStoreGauges publishes Stats to the gauges.
func updateStoreGauges(stats Stats) {
	matchRecords.Set(float64(stats.Matches))
	matchesInProgress.Set(float64(stats.InProgress))
	dbSizeBytes.Set(float64(stats.DBSizeBytes))
}
