// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package supervisor runs the daemon's long-lived components under a
// suture supervision tree.
//
// The tree has three layers under the root:
//
//   - data: store value-log GC
//   - messaging: the watermill router (telemetry consumers + RPC
//     responder handlers) and the recovery orchestrator
//   - api: the HTTP server
//
// Layering isolates failures: a crashing message handler is restarted
// without tearing down the HTTP listener, and vice versa. Components
// that already block on a context (the API server) implement
// suture.Service themselves; the wrappers in this package adapt the
// Start/Stop and ticker-driven components.
//
// Suture events are logged through sutureslog into the daemon's
// zerolog output via the logging package's slog handler.
package supervisor
