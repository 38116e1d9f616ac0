// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package protocol

import (
	"fmt"

	"github.com/goccy/go-json"
)

// GameEvent is a discrete in-game occurrence reported by a gamepack, e.g. a
// kill or an objective take. Events can trigger clip capture downstream;
// the optional capture overrides replace the configured default window.
type GameEvent struct {
	// EventType identifies the kind of event (e.g. "ChampionKill").
	EventType string `json:"event_type"`

	// TimestampSecs is seconds from game start.
	TimestampSecs float64 `json:"timestamp_secs"`

	// Data is the game-specific event payload.
	Data json.RawMessage `json:"data"`

	// PreCaptureSecs overrides the default seconds captured before the
	// event.
	PreCaptureSecs *float64 `json:"pre_capture_secs,omitempty"`

	// PostCaptureSecs overrides the default seconds captured after the
	// event.
	PostCaptureSecs *float64 `json:"post_capture_secs,omitempty"`
}

// NewGameEvent creates a game event with the default capture window.
func NewGameEvent(eventType string, timestampSecs float64, data json.RawMessage) GameEvent {
	return GameEvent{
		EventType:     eventType,
		TimestampSecs: timestampSecs,
		Data:          data,
	}
}

// WithPreCapture returns a copy with a custom pre-capture duration.
func (e GameEvent) WithPreCapture(secs float64) GameEvent {
	e.PreCaptureSecs = &secs
	return e
}

// WithPostCapture returns a copy with a custom post-capture duration.
func (e GameEvent) WithPostCapture(secs float64) GameEvent {
	e.PostCaptureSecs = &secs
	return e
}

// Validate checks the event for structural problems.
func (e GameEvent) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("game event: %w", ErrEmptyEventType)
	}
	if e.TimestampSecs < 0 {
		return fmt.Errorf("game event %q: negative timestamp %f", e.EventType, e.TimestampSecs)
	}
	if e.PreCaptureSecs != nil && *e.PreCaptureSecs < 0 {
		return fmt.Errorf("game event %q: negative pre-capture", e.EventType)
	}
	if e.PostCaptureSecs != nil && *e.PostCaptureSecs < 0 {
		return fmt.Errorf("game event %q: negative post-capture", e.EventType)
	}
	return nil
}
