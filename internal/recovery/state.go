// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package recovery

import (
	"time"

	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// CandidateState is a recovery candidate's position in the verification
// state machine.
type CandidateState string

const (
	// StateFlagged marks an in-progress match awaiting verification.
	// Candidates return here when their pack cannot be reached.
	StateFlagged CandidateState = "flagged"

	// StateVerifying marks a candidate whose liveness query is in
	// flight.
	StateVerifying CandidateState = "verifying"

	// StateConfirmed marks a match its pack vouched for: still playing,
	// left untouched.
	StateConfirmed CandidateState = "confirmed"

	// StateFinalized marks a match its pack reported ended; the
	// completion has been applied.
	StateFinalized CandidateState = "finalized"
)

// candidate is one match moving through a pass.
type candidate struct {
	rec   *store.MatchRecord
	state CandidateState
}

func newCandidate(rec *store.MatchRecord) *candidate {
	return &candidate{rec: rec, state: StateFlagged}
}

// transition moves the candidate to a new state.
func (c *candidate) transition(to CandidateState) {
	logging.Debug().
		Str("component", "recovery").
		Str("match", c.rec.Key().String()).
		Str("from", string(c.state)).
		Str("to", string(to)).
		Msg("Candidate state change")
	c.state = to
}

// PassReport summarizes one recovery pass.
type PassReport struct {
	// StartedAt is when the pass began.
	StartedAt time.Time `json:"started_at"`

	// Duration of the whole pass.
	Duration time.Duration `json:"duration"`

	// Candidates is the number of in-progress matches examined.
	Candidates int `json:"candidates"`

	// Confirmed matches verified as still playing.
	Confirmed int `json:"confirmed"`

	// Finalized matches completed from their pack's answer.
	Finalized int `json:"finalized"`

	// Unreachable matches whose pack had no live session.
	Unreachable int `json:"unreachable"`

	// TimedOut liveness queries.
	TimedOut int `json:"timed_out"`

	// Skipped queries rejected by an open circuit breaker.
	Skipped int `json:"skipped"`

	// Errors from queries or from applying completions.
	Errors int `json:"errors"`
}

// Flagged returns how many candidates remain unresolved after the pass.
func (r PassReport) Flagged() int {
	return r.Candidates - r.Confirmed - r.Finalized
}
