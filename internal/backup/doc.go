// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package backup protects the match store against data loss.
//
// The manager streams consistent snapshots of the BadgerDB store into
// timestamped archive files in a single backup directory, gzip-compressed
// by default, with a SHA-256 checksum recorded per archive. A
// manifest.json beside the archives remembers every backup, so restores
// can verify file integrity before loading anything.
//
// # Scheduling
//
// When enabled, the manager runs as a service under the supervisor tree.
// It creates a backup on the configured interval and enforces the
// retention policy after each run. Intervals of a day or longer honor
// PreferredHour, so daily backups land at a quiet time instead of
// whenever the daemon happened to start.
//
// # Retention
//
// Three rules decide which archives survive a prune, in order:
//
//  1. The newest MinCount backups are always kept.
//  2. Beyond MaxCount backups, the oldest are removed.
//  3. Backups older than MaxAgeDays are removed.
//
// # Restore
//
// Restoring is an operator action, not an API. Point the daemon at a
// fresh store directory and load the chosen archive:
//
//	mgr, _ := backup.NewManager(cfg, nil)
//	st, _ := store.Open(&storeCfg)
//	err := mgr.Restore(ctx, backupID, st)
//
// Restore verifies the archive checksum against the manifest before a
// single byte reaches the store. Loading into a store that already holds
// newer versions of a key leaves the newer data in place, which makes
// replaying an old archive over a live store safe but rarely what you
// want; prefer an empty target directory.
package backup
