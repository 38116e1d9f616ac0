// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package metrics holds the shared Prometheus series: API request
// accounting used by the HTTP middleware and process-level info/uptime
// gauges set by the entry point.
//
// Subsystem metrics are deliberately not here. Each internal package
// defines its own series next to the code that drives them, all under
// the matchkeeper_ namespace, and everything is exposed together on
// /metrics through the default registry.
package metrics
