// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package protocol

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// IsMatchInProgressRequest asks a gamepack whether a match the daemon
// believes is in progress is actually still running. Sent during stale
// match recovery, typically after a daemon restart.
type IsMatchInProgressRequest struct {
	// Subpack index.
	Subpack uint8 `json:"subpack"`

	// ExternalMatchID is the game's native match ID.
	ExternalMatchID string `json:"external_match_id"`
}

// Ref returns the match the request addresses.
func (r IsMatchInProgressRequest) Ref() MatchRef {
	return MatchRef{Subpack: r.Subpack, ExternalMatchID: r.ExternalMatchID}
}

// IsMatchInProgressResponse is a gamepack's answer to
// IsMatchInProgressRequest. When the game has ended the pack may embed a
// SetComplete carrying final stats; on the wire the embedded message is
// tagged like any other match data message.
type IsMatchInProgressResponse struct {
	// StillPlaying reports whether the game is actually still running.
	StillPlaying bool

	// SetComplete optionally carries the completion to apply when
	// StillPlaying is false.
	SetComplete *SetComplete
}

// StillPlayingResponse creates a response indicating the game is still
// running.
func StillPlayingResponse() IsMatchInProgressResponse {
	return IsMatchInProgressResponse{StillPlaying: true}
}

// EndedResponse creates a response indicating the game ended with no final
// stats to apply.
func EndedResponse() IsMatchInProgressResponse {
	return IsMatchInProgressResponse{StillPlaying: false}
}

// EndedWithCompletion creates a response carrying the completion to apply.
func EndedWithCompletion(sc SetComplete) IsMatchInProgressResponse {
	return IsMatchInProgressResponse{StillPlaying: false, SetComplete: &sc}
}

// isMatchInProgressWire is the JSON shape of the response; the embedded
// completion travels in its tagged form.
type isMatchInProgressWire struct {
	StillPlaying bool            `json:"still_playing"`
	SetComplete  json.RawMessage `json:"set_complete,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r IsMatchInProgressResponse) MarshalJSON() ([]byte, error) {
	wire := isMatchInProgressWire{StillPlaying: r.StillPlaying}
	if r.SetComplete != nil {
		raw, err := MarshalMessage(*r.SetComplete)
		if err != nil {
			return nil, fmt.Errorf("is_match_in_progress response: %w", err)
		}
		wire.SetComplete = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. An embedded message that is
// not a set_complete is a decode error: the response must never smuggle
// other write types past the recovery path.
func (r *IsMatchInProgressResponse) UnmarshalJSON(data []byte) error {
	var wire isMatchInProgressWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("is_match_in_progress response: %w", err)
	}

	r.StillPlaying = wire.StillPlaying
	r.SetComplete = nil

	if len(wire.SetComplete) == 0 || bytes.Equal(wire.SetComplete, []byte("null")) {
		return nil
	}

	msg, err := UnmarshalMessage(wire.SetComplete)
	if err != nil {
		return fmt.Errorf("is_match_in_progress response: set_complete: %w", err)
	}
	sc, ok := msg.(SetComplete)
	if !ok {
		return fmt.Errorf("is_match_in_progress response: embedded message is %q, want %q",
			msg.Type(), MessageTypeSetComplete)
	}
	r.SetComplete = &sc
	return nil
}

// GetMatchTimelineRequest asks the daemon for a match's timeline. A
// gamepack that restarted mid-game uses it to rebuild in-memory state; the
// query has no side effects.
type GetMatchTimelineRequest struct {
	// Subpack index.
	Subpack uint8 `json:"subpack"`

	// ExternalMatchID is the game's native match ID.
	ExternalMatchID string `json:"external_match_id"`

	// EntryTypes filters the result to the given entry types; empty means
	// all types.
	EntryTypes []string `json:"entry_types,omitempty"`

	// Limit returns only the most recent N entries; 0 means all.
	Limit uint32 `json:"limit,omitempty"`
}

// Ref returns the match the request addresses.
func (r GetMatchTimelineRequest) Ref() MatchRef {
	return MatchRef{Subpack: r.Subpack, ExternalMatchID: r.ExternalMatchID}
}

// GetMatchTimelineResponse carries a match's timeline entries in
// chronological order. Found distinguishes a match that has never been
// written (false) from one that exists with no matching entries (true,
// empty entries).
type GetMatchTimelineResponse struct {
	// Found reports whether the match exists.
	Found bool `json:"found"`

	// Entries in chronological order; empty when not found or nothing
	// matched the filter.
	Entries []TimelineEntry `json:"entries"`
}
