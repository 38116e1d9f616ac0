// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package store persists match summaries and timelines in an embedded
// BadgerDB database.
//
// # Data layout
//
// Three key families share one database:
//
//	match:{pack}:{subpack}:{id}          match summary record (JSON)
//	timeline:{pack}:{subpack}:{id}:{seq} one timeline entry (JSON)
//	tseq:{pack}:{subpack}:{id}           next timeline sequence number
//
// The {id} segment is the game's external match ID, query-escaped because
// packs may hand us IDs containing the separator byte. Timeline sequence
// numbers are fixed-width so lexicographic key order is append order.
//
// # Semantics
//
//   - CreateMatchIfAbsent is an atomic compare-or-insert: exactly one of
//     two concurrent creators wins, the other sees created=false. This is
//     what makes lazy match creation safe.
//   - UpdateMatch runs a read-modify-write inside one Badger transaction.
//   - AppendEntries writes a whole batch plus the sequence bump in one
//     transaction: either every entry lands in order or none do.
//   - QueryTimeline never mutates. Found reports whether the match record
//     exists, distinguishing "no such match" from "match with no entries".
//
// # Durability
//
// SyncWrites is on by default: a match acknowledged to a gamepack must
// survive a daemon crash, and the recovery pass depends on finding every
// in-progress match after restart. Badger gives us ACID transactions,
// crash recovery via its own value log, and TTL-free tombstone cleanup
// through RunGC, without an external database server next to the daemon.
package store
