// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matchkeeper/matchkeeper/internal/protocol"
)

// Outcome labels for applied messages.
const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
)

// Prometheus metrics for the write pipeline.
var (
	// messagesTotal counts processed match data messages by type and
	// outcome.
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_pipeline_messages_total",
		Help: "Match data messages processed, by type and outcome",
	}, []string{"type", "outcome"})

	// applyDuration measures end-to-end application latency by type.
	applyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchkeeper_pipeline_apply_duration_seconds",
		Help:    "Time to apply one match data message",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// lateWritesTotal counts writes rejected because the match had
	// already completed.
	lateWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_pipeline_late_writes_total",
		Help: "Writes rejected because the match was already completed",
	}, []string{"pack"})

	// schemaRejectionsTotal counts messages rejected by stat column
	// validation.
	schemaRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_pipeline_schema_rejections_total",
		Help: "Messages rejected by stat column validation",
	}, []string{"pack"})

	// completionNoopsTotal counts idempotent repeat completions.
	completionNoopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_pipeline_completion_noops_total",
		Help: "SetComplete messages that were idempotent no-ops",
	}, []string{"pack"})
)

// recordMessage counts one processed message.
func recordMessage(typ protocol.MessageType, outcome string) {
	messagesTotal.WithLabelValues(string(typ), outcome).Inc()
}

// observeApply records one application's latency.
func observeApply(typ protocol.MessageType, start time.Time) {
	applyDuration.WithLabelValues(string(typ)).Observe(time.Since(start).Seconds())
}

// recordLateWrite counts a write rejected on a completed match.
func recordLateWrite(packID string) {
	lateWritesTotal.WithLabelValues(packID).Inc()
}

// recordSchemaRejection counts a message rejected by column validation.
func recordSchemaRejection(packID string) {
	schemaRejectionsTotal.WithLabelValues(packID).Inc()
}

// recordCompletionNoop counts an idempotent repeat completion.
func recordCompletionNoop(packID string) {
	completionNoopsTotal.WithLabelValues(packID).Inc()
}
