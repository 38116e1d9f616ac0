// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package recovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Outcome labels for verification attempts.
const (
	outcomeConfirmed   = "confirmed"
	outcomeFinalized   = "finalized"
	outcomeUnreachable = "unreachable"
	outcomeTimeout     = "timeout"
	outcomeSkipped     = "skipped"
	outcomeError       = "error"
)

// Prometheus metrics for crash recovery.
var (
	// passesTotal counts completed recovery passes.
	passesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchkeeper_recovery_passes_total",
		Help: "Completed recovery passes",
	})

	// passDuration measures how long a full pass takes.
	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchkeeper_recovery_pass_duration_seconds",
		Help:    "Duration of one recovery pass",
		Buckets: prometheus.DefBuckets,
	})

	// verificationsTotal counts liveness verifications by pack and
	// outcome.
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_recovery_verifications_total",
		Help: "Liveness verifications, by pack and outcome",
	}, []string{"pack", "outcome"})

	// flaggedGauge tracks matches left unresolved after the last pass.
	flaggedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchkeeper_recovery_flagged_matches",
		Help: "In-progress matches still unresolved after the last recovery pass",
	})

	// breakerStateGauge exposes each pack's circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "matchkeeper_recovery_breaker_state",
		Help: "Circuit breaker state per pack (0=closed, 1=half-open, 2=open)",
	}, []string{"pack"})
)

// recordPass counts one completed pass and its duration.
func recordPass(d time.Duration) {
	passesTotal.Inc()
	passDuration.Observe(d.Seconds())
}

// recordVerification counts one verification outcome.
func recordVerification(packID, outcome string) {
	verificationsTotal.WithLabelValues(packID, outcome).Inc()
}

// setFlagged publishes the unresolved candidate count.
func setFlagged(n int) {
	flaggedGauge.Set(float64(n))
}

// setBreakerState publishes a pack's breaker state.
func setBreakerState(packID string, state gobreaker.State) {
	breakerStateGauge.WithLabelValues(packID).Set(breakerStateFloat(state))
}
