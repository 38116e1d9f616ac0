// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package protocol

import (
	"github.com/goccy/go-json"
)

// Version is the protocol revision this daemon speaks. A gamepack
// advertising a different version in its InitResponse is refused
// registration.
const Version uint32 = 1

// InitResponse identifies a gamepack when its session is established.
type InitResponse struct {
	// GameID uniquely identifies the game.
	GameID int32 `json:"game_id"`

	// Slug is the URL-friendly game name (e.g. "league", "valorant").
	Slug string `json:"slug"`

	// ProtocolVersion is the protocol revision the pack implements.
	ProtocolVersion uint32 `json:"protocol_version"`
}

// GameStatus is a gamepack's periodic report of game-client connectivity.
type GameStatus struct {
	// Connected reports whether the pack is connected to the game's
	// API or client.
	Connected bool `json:"connected"`

	// ConnectionStatus is a human-readable connection description.
	ConnectionStatus string `json:"connection_status"`

	// GamePhase is the current phase when known (e.g. "Lobby",
	// "InProgress", "PostGame").
	GamePhase *string `json:"game_phase,omitempty"`

	// IsInGame reports whether the player is actively in a game.
	IsInGame bool `json:"is_in_game"`
}

// DisconnectedStatus creates a status for a pack with no game connection.
func DisconnectedStatus() GameStatus {
	return GameStatus{ConnectionStatus: "Not connected"}
}

// ConnectedStatus creates a connected status with the given description.
func ConnectedStatus(status string) GameStatus {
	return GameStatus{Connected: true, ConnectionStatus: status}
}

// WithPhase returns a copy with the game phase set.
func (s GameStatus) WithPhase(phase string) GameStatus {
	s.GamePhase = &phase
	return s
}

// InGame returns a copy with the in-game flag set.
func (s GameStatus) InGame(inGame bool) GameStatus {
	s.IsInGame = inGame
	return s
}

// MatchData is the legacy end-of-game payload emitted by packs that
// predate the subpack message model. The daemon converts it into a bare
// live-fallback completion.
type MatchData struct {
	// GameSlug is the game's slug (e.g. "league").
	GameSlug string `json:"game_slug"`

	// GameID identifies the game.
	GameID int32 `json:"game_id"`

	// Result is "win", "loss", or "remake".
	Result string `json:"result"`

	// Details is the game-specific match payload.
	Details json.RawMessage `json:"details"`
}
