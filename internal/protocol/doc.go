// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package protocol defines the wire vocabulary spoken between the daemon
// and gamepacks.
//
// Everything here is game-agnostic. A gamepack declares its subpacks and
// stat column schemas in configuration; the protocol only carries subpack
// indexes, external match IDs, and opaque JSON payloads.
//
// # Match data messages
//
// Gamepacks stream match facts to the daemon as MatchDataMessage values, a
// closed set of three variants:
//
//   - WriteStats: create-or-update a match summary (lazy creation, per-field
//     last-writer-wins upsert)
//   - WriteEvents: append a batch of game events to the match timeline
//   - SetComplete: mark the match finished, with the source of the final
//     summary ("api" or "live_fallback")
//
// On the wire a message is a single JSON object tagged by a "type" field:
//
//	{"type":"write_stats","subpack":0,"external_match_id":"NA1_4815",
//	 "result":"win","stats":{"kills":7}}
//
// UnmarshalMessage rejects unknown or missing tags; the variant set is
// closed and growing it is a protocol revision, not a runtime event.
//
// # Recovery and timeline queries
//
// The daemon verifies orphaned matches after a restart with
// IsMatchInProgressRequest; a gamepack that has lost its own state rebuilds
// it with GetMatchTimelineRequest. Both are plain request/response pairs
// carried over the same transport as match data.
//
// # Handshake and status
//
// InitResponse identifies a gamepack (game ID, slug, protocol version) when
// its session is established. GameStatus is the pack's periodic report of
// game-client connectivity and phase.
package protocol
