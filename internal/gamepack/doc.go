// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package gamepack manages the daemon's side of gamepack sessions.
//
// A gamepack is a per-game plugin that watches one game and reports
// match telemetry. Packs talk to the daemon over the transport bus in
// two ways:
//
//   - Match data: fire-and-forget messages on the pack's matchdata
//     topic, consumed here and fed to the write pipeline.
//   - RPC: session lifecycle (register, status, deregister), timeline
//     reads for packs rebuilding state after a restart, and legacy
//     end-of-game submissions.
//
// The Registry tracks live sessions: who registered, when they were
// last heard from, and the game connection status they last reported.
// Recovery uses it to decide which packs are worth querying; the
// operational API exposes it read-only.
package gamepack
