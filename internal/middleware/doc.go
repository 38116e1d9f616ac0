// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package middleware holds plain http.HandlerFunc middleware shared by
// the operational API: request ID propagation tied into the logging
// correlation context, Prometheus request accounting, and gzip
// compression. The api package bridges these into chi with a small
// adapter.
package middleware
