// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package recovery reconciles matches stranded in progress, typically
// after a daemon crash or an unclean gamepack shutdown.
//
// Every in-progress match found at pass time is a candidate. Each
// candidate moves through a small state machine:
//
//	Flagged → Verifying → Confirmed   (pack says still playing)
//	                    → Finalized   (pack says ended; completion applied)
//
// A candidate whose pack cannot be reached, or whose query times out,
// falls back to Flagged and is retried on the next pass. Nothing is
// ever finalized without the owning pack's answer: the daemon does not
// invent match outcomes, no matter how stale a match looks. Staleness
// is surfaced through metrics and the verify bookkeeping kept on the
// match record instead.
//
// Verification fan-out is bounded by a semaphore and paced by a rate
// limiter; per-pack circuit breakers keep a crashed-and-flapping pack
// from absorbing a whole pass.
package recovery
