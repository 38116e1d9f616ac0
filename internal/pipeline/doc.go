// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package pipeline applies match data messages to persisted match state.
//
// The pipeline is the only writer of match summaries and timelines. It
// enforces the lifecycle rules:
//
//   - WriteStats and WriteEvents create a match on first sight
//     (is_in_progress=true); there is no separate create call.
//   - Summary stat fields merge last-writer-wins per field after
//     validation against the subpack's declared schema.
//   - WriteEvents batches land atomically in supplied order.
//   - SetComplete is terminal and idempotent. Final stats sourced from
//     the game's API supersede live-fallback data; the reverse never
//     overwrites.
//   - Writes for a completed match are rejected, never silently merged.
//
// Every message that changes summary state also appends one statistic
// timeline entry carrying the changed fields, so replaying a match's
// timeline reconstructs its full summary without reading the summary
// record.
//
// All operations for one match serialize through a per-match lock; the
// lock is held only while applying a single message, never across a
// network round trip.
package pipeline
