// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for publishes and RPC requests.
const (
	outcomeOK          = "ok"
	outcomeError       = "error"
	outcomeTimeout     = "timeout"
	outcomeRemoteError = "remote_error"
)

// Prometheus metrics for the message bus.
var (
	// publishesTotal counts bus publishes by topic and outcome. Topic
	// cardinality is bounded by the number of configured gamepacks.
	publishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_transport_publishes_total",
		Help: "Bus publishes, by topic and outcome",
	}, []string{"topic", "outcome"})

	// rpcRequestsTotal counts RPC requests by method and outcome.
	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchkeeper_transport_rpc_requests_total",
		Help: "RPC requests issued, by method and outcome",
	}, []string{"method", "outcome"})

	// rpcDuration measures request round-trip latency by method.
	rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchkeeper_transport_rpc_duration_seconds",
		Help:    "RPC round-trip time for answered requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// recordPublish counts one publish attempt.
func recordPublish(topic, outcome string) {
	publishesTotal.WithLabelValues(topic, outcome).Inc()
}

// recordRPC counts one RPC request.
func recordRPC(method, outcome string) {
	rpcRequestsTotal.WithLabelValues(method, outcome).Inc()
}

// observeRPC records one answered request's round-trip time.
func observeRPC(method string, d time.Duration) {
	rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}
