// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package protocol

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EntryType classifies a timeline entry.
type EntryType string

// Timeline entry types.
const (
	// EntryTypeEvent records a discrete game event.
	EntryTypeEvent EntryType = "event"

	// EntryTypeStatistic records a delta of summary stat fields.
	EntryTypeStatistic EntryType = "statistic"

	// EntryTypeMoment records a detected highlight moment.
	EntryTypeMoment EntryType = "moment"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeEvent, EntryTypeStatistic, EntryTypeMoment:
		return true
	}
	return false
}

// StatsEntryKey is the entry_key used by statistic entries.
const StatsEntryKey = "stats"

// TimelineEntry is one element of a match's append-only timeline. Entries
// are immutable once stored and keep their append order; together they form
// an independently replayable record of the match.
type TimelineEntry struct {
	// EntryType is event, statistic, or moment.
	EntryType EntryType `json:"entry_type"`

	// EntryKey is the event type for events, "stats" for statistics, or
	// the moment ID for moments.
	EntryKey string `json:"entry_key"`

	// GameTimeSecs is the in-game timestamp in seconds.
	GameTimeSecs float64 `json:"game_time_secs"`

	// CapturedAt is the wall-clock time the entry was captured.
	CapturedAt time.Time `json:"captured_at"`

	// Data is the type-specific payload.
	Data json.RawMessage `json:"data"`

	// TriggerFired is set on moment entries only: whether the moment
	// triggered a recording.
	TriggerFired *bool `json:"trigger_fired,omitempty"`
}

// EventEntry creates an event timeline entry from a game event type.
func EventEntry(eventType string, gameTimeSecs float64, capturedAt time.Time, data json.RawMessage) TimelineEntry {
	return TimelineEntry{
		EntryType:    EntryTypeEvent,
		EntryKey:     eventType,
		GameTimeSecs: gameTimeSecs,
		CapturedAt:   capturedAt,
		Data:         data,
	}
}

// StatisticEntry creates a statistic timeline entry carrying the fields
// changed by a summary write.
func StatisticEntry(gameTimeSecs float64, capturedAt time.Time, changedFields json.RawMessage) TimelineEntry {
	return TimelineEntry{
		EntryType:    EntryTypeStatistic,
		EntryKey:     StatsEntryKey,
		GameTimeSecs: gameTimeSecs,
		CapturedAt:   capturedAt,
		Data:         changedFields,
	}
}

// MomentEntry creates a moment timeline entry.
func MomentEntry(momentID string, gameTimeSecs float64, capturedAt time.Time, data json.RawMessage, triggerFired bool) TimelineEntry {
	return TimelineEntry{
		EntryType:    EntryTypeMoment,
		EntryKey:     momentID,
		GameTimeSecs: gameTimeSecs,
		CapturedAt:   capturedAt,
		Data:         data,
		TriggerFired: &triggerFired,
	}
}

// Validate checks the entry for structural problems.
func (e TimelineEntry) Validate() error {
	if !e.EntryType.Valid() {
		return fmt.Errorf("timeline entry: %w: %q", ErrInvalidEntryType, e.EntryType)
	}
	if e.EntryKey == "" {
		return fmt.Errorf("timeline entry: %w", ErrEmptyEntryKey)
	}
	if e.CapturedAt.IsZero() {
		return fmt.Errorf("timeline entry %q: zero captured_at", e.EntryKey)
	}
	return nil
}
