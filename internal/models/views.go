// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package models

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/matchkeeper/matchkeeper/internal/gamepack"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// MatchView is the API rendering of a stored match record.
type MatchView struct {
	Pack            string `json:"pack"`
	Subpack         uint8  `json:"subpack"`
	ExternalMatchID string `json:"external_match_id"`

	IsInProgress  bool                       `json:"is_in_progress"`
	PlayedAt      *time.Time                 `json:"played_at,omitempty"`
	DurationSecs  *int32                     `json:"duration_secs,omitempty"`
	Result        *string                    `json:"result,omitempty"`
	SummaryStats  map[string]json.RawMessage `json:"summary_stats,omitempty"`
	SummarySource protocol.SummarySource     `json:"summary_source,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Stale marks an in-progress match that recovery has tried and so
	// far failed to verify with its pack.
	Stale          bool       `json:"stale"`
	VerifyAttempts int        `json:"verify_attempts,omitempty"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
}

// NewMatchView renders a store record for the API.
func NewMatchView(rec *store.MatchRecord) MatchView {
	return MatchView{
		Pack:            rec.PackID,
		Subpack:         rec.Subpack,
		ExternalMatchID: rec.ExternalMatchID,
		IsInProgress:    rec.IsInProgress,
		PlayedAt:        rec.PlayedAt,
		DurationSecs:    rec.DurationSecs,
		Result:          rec.Result,
		SummaryStats:    rec.SummaryStats,
		SummarySource:   rec.SummarySource,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		CompletedAt:     rec.CompletedAt,
		Stale:           rec.IsInProgress && rec.VerifyAttempts > 0,
		VerifyAttempts:  rec.VerifyAttempts,
		LastVerifiedAt:  rec.LastVerifiedAt,
	}
}

// TimelineView is the API rendering of a timeline query result. Found
// mirrors the storage semantics: false means the match was never
// created, while a created match with no matching entries yields true
// with an empty list.
type TimelineView struct {
	Pack            string                   `json:"pack"`
	Subpack         uint8                    `json:"subpack"`
	ExternalMatchID string                   `json:"external_match_id"`
	Found           bool                     `json:"found"`
	Entries         []protocol.TimelineEntry `json:"entries"`
}

// SessionView is the API rendering of a live gamepack session.
type SessionView struct {
	Pack            string    `json:"pack"`
	GameID          int32     `json:"game_id"`
	ProtocolVersion uint32    `json:"protocol_version"`
	ConnectedAt     time.Time `json:"connected_at"`
	LastSeen        time.Time `json:"last_seen"`

	GameConnected    bool    `json:"game_connected"`
	ConnectionStatus string  `json:"connection_status,omitempty"`
	GamePhase        *string `json:"game_phase,omitempty"`
	IsInGame         bool    `json:"is_in_game"`
}

// NewSessionView renders a registry session for the API.
func NewSessionView(s gamepack.Session) SessionView {
	return SessionView{
		Pack:             s.PackID,
		GameID:           s.GameID,
		ProtocolVersion:  s.ProtocolVersion,
		ConnectedAt:      s.ConnectedAt,
		LastSeen:         s.LastSeen,
		GameConnected:    s.Status.Connected,
		ConnectionStatus: s.Status.ConnectionStatus,
		GamePhase:        s.Status.GamePhase,
		IsInGame:         s.Status.IsInGame,
	}
}

// GamepackView merges a configured pack with its live session, if any.
type GamepackView struct {
	ID         string       `json:"id"`
	Name       string       `json:"name,omitempty"`
	Subpacks   []uint8      `json:"subpacks"`
	Registered bool         `json:"registered"`
	Session    *SessionView `json:"session,omitempty"`
}
