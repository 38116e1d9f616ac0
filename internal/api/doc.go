// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package api serves the read-only operations surface over HTTP.
//
// The daemon's real write path is the gamepack RPC transport; this
// package only exposes what the daemon already knows so operators and
// monitoring can see it: stored matches, their timelines, live pack
// sessions, health probes, and Prometheus metrics.
//
// Routing uses go-chi with per-group rate limits (permissive for
// health probes, configured limits for data endpoints). Every endpoint
// responds with the models.APIResponse envelope.
package api
