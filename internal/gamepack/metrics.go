// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package gamepack

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for consumed match data messages.
const (
	consumeApplied     = "applied"
	consumeRejected    = "rejected"
	consumeRetried     = "retried"
	consumeUndecodable = "undecodable"
)

// Prometheus metrics for gamepack sessions and consumption.
var (
	// sessionsGauge tracks the number of live gamepack sessions.
	sessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchkeeper_gamepack_sessions",
		Help: "Live gamepack sessions",
	})

	// consumedTotal counts consumed match data messages by pack and
	// result.
	consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_gamepack_consumed_total",
		Help: "Match data messages consumed from the bus, by pack and result",
	}, []string{"pack", "result"})

	// statusUpdatesTotal counts game status reports by pack.
	statusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_gamepack_status_updates_total",
		Help: "Game status reports received, by pack",
	}, []string{"pack"})

	// legacyMatchesTotal counts legacy match data conversions by pack.
	legacyMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_gamepack_legacy_matches_total",
		Help: "Legacy match data payloads converted, by pack",
	}, []string{"pack"})
)

// setSessions records the current session count.
func setSessions(n int) {
	sessionsGauge.Set(float64(n))
}

// recordConsumed counts one consumed message.
func recordConsumed(packID, result string) {
	consumedTotal.WithLabelValues(packID, result).Inc()
}

// recordStatusUpdate counts one status report.
func recordStatusUpdate(packID string) {
	statusUpdatesTotal.WithLabelValues(packID).Inc()
}

// recordLegacyMatch counts one legacy conversion.
func recordLegacyMatch(packID string) {
	legacyMatchesTotal.WithLabelValues(packID).Inc()
}
