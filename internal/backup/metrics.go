// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package backup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for backups.
var (
	// runsTotal counts backup runs by result.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_backup_runs_total",
		Help: "Backup runs, by result",
	}, []string{"result"})

	// runDuration measures how long a backup run takes.
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchkeeper_backup_run_duration_seconds",
		Help:    "Duration of one backup run",
		Buckets: prometheus.DefBuckets,
	})

	// lastSizeBytes is the size of the most recent archive.
	lastSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchkeeper_backup_last_size_bytes",
		Help: "Size of the most recent backup archive",
	})

	// retainedGauge is the number of archives currently on disk.
	retainedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchkeeper_backup_retained",
		Help: "Backup archives currently retained",
	})

	// prunedTotal counts archives removed by retention.
	prunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchkeeper_backup_pruned_total",
		Help: "Backup archives removed by the retention policy",
	})
)

// recordRunCompleted records a successful backup run.
func recordRunCompleted(start time.Time, size int64) {
	runsTotal.WithLabelValues("completed").Inc()
	runDuration.Observe(time.Since(start).Seconds())
	lastSizeBytes.Set(float64(size))
}

// recordRunFailed records a failed backup run.
func recordRunFailed() {
	runsTotal.WithLabelValues("failed").Inc()
}

// recordPruned adds to the pruned archives counter.
func recordPruned(n int) {
	prunedTotal.Add(float64(n))
}

// setRetained publishes the current archive count.
func setRetained(n int) {
	retainedGauge.Set(float64(n))
}
