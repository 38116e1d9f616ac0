// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// MessageType tags a MatchDataMessage variant on the wire.
type MessageType string

// Match data message types. The set is closed; a new variant is a protocol
// revision.
const (
	MessageTypeWriteStats  MessageType = "write_stats"
	MessageTypeWriteEvents MessageType = "write_events"
	MessageTypeSetComplete MessageType = "set_complete"
)

// SummarySource records where a match's final summary came from.
type SummarySource string

const (
	// SummarySourceAPI means the final stats came from the game's match
	// API after the game ended. API data wins over live fallback.
	SummarySourceAPI SummarySource = "api"

	// SummarySourceLiveFallback means the final stats are whatever the
	// live connection had captured when the game ended.
	SummarySourceLiveFallback SummarySource = "live_fallback"
)

// Valid reports whether s is a known summary source.
func (s SummarySource) Valid() bool {
	return s == SummarySourceAPI || s == SummarySourceLiveFallback
}

// Match results carried by WriteStats and the legacy MatchData payload.
const (
	ResultWin    = "win"
	ResultLoss   = "loss"
	ResultDraw   = "draw"
	ResultRemake = "remake"
)

// validResult reports whether r is a known match result.
func validResult(r string) bool {
	switch r {
	case ResultWin, ResultLoss, ResultDraw, ResultRemake:
		return true
	}
	return false
}

// MatchRef names one match within a gamepack: the subpack index plus the
// game's native match ID. The daemon serializes all writes per MatchRef.
type MatchRef struct {
	Subpack         uint8
	ExternalMatchID string
}

// String renders the ref for logs.
func (r MatchRef) String() string {
	return fmt.Sprintf("%d/%s", r.Subpack, r.ExternalMatchID)
}

// MatchDataMessage is a gamepack→daemon match fact. The variant set is
// closed: WriteStats, WriteEvents, SetComplete. Consumers dispatch with a
// type switch over the three concrete types; an unhandled variant must be
// treated as a programming error, never silently skipped.
type MatchDataMessage interface {
	// Type returns the wire tag of the variant.
	Type() MessageType

	// Ref returns the match the message addresses.
	Ref() MatchRef

	// Validate checks the message for structural problems.
	Validate() error

	// matchData marks the closed variant set.
	matchData()
}

// WriteStats creates or updates a match summary. The daemon creates the
// match on first sight (lazy creation) and upserts each stat field
// last-writer-wins. Optional fields only overwrite when present.
type WriteStats struct {
	// Subpack index (0 = default, 1+ = additional subpacks).
	Subpack uint8 `json:"subpack"`

	// ExternalMatchID is the game's native match ID, used for
	// deduplication and API lookups.
	ExternalMatchID string `json:"external_match_id"`

	// PlayedAt is when the match started.
	PlayedAt *time.Time `json:"played_at,omitempty"`

	// DurationSecs is the match duration in seconds.
	DurationSecs *int32 `json:"duration_secs,omitempty"`

	// Result is "win", "loss", "draw", or "remake".
	Result *string `json:"result,omitempty"`

	// Stats maps column names declared in the subpack's schema to values.
	Stats map[string]json.RawMessage `json:"stats"`
}

// NewWriteStats creates a WriteStats message with no optional fields set.
func NewWriteStats(subpack uint8, externalMatchID string, stats map[string]json.RawMessage) WriteStats {
	return WriteStats{
		Subpack:         subpack,
		ExternalMatchID: externalMatchID,
		Stats:           stats,
	}
}

// WithPlayedAt returns a copy with the match start time set.
func (m WriteStats) WithPlayedAt(ts time.Time) WriteStats {
	m.PlayedAt = &ts
	return m
}

// WithDuration returns a copy with the match duration set.
func (m WriteStats) WithDuration(secs int32) WriteStats {
	m.DurationSecs = &secs
	return m
}

// WithResult returns a copy with the match result set.
func (m WriteStats) WithResult(result string) WriteStats {
	m.Result = &result
	return m
}

// Type implements MatchDataMessage.
func (WriteStats) Type() MessageType { return MessageTypeWriteStats }

// Ref implements MatchDataMessage.
func (m WriteStats) Ref() MatchRef {
	return MatchRef{Subpack: m.Subpack, ExternalMatchID: m.ExternalMatchID}
}

// Validate implements MatchDataMessage.
func (m WriteStats) Validate() error {
	if m.ExternalMatchID == "" {
		return fmt.Errorf("write_stats: %w", ErrEmptyMatchID)
	}
	if m.Result != nil && !validResult(*m.Result) {
		return fmt.Errorf("write_stats %s: %w: %q", m.Ref(), ErrInvalidResult, *m.Result)
	}
	if m.DurationSecs != nil && *m.DurationSecs < 0 {
		return fmt.Errorf("write_stats %s: negative duration %d", m.Ref(), *m.DurationSecs)
	}
	return nil
}

func (WriteStats) matchData() {}

// WriteEvents appends a batch of game events to a match's timeline. The
// batch is atomic: either every event lands, in the given order, or none
// do. Creates the match on first sight like WriteStats.
type WriteEvents struct {
	// Subpack index (0 = default, 1+ = additional subpacks).
	Subpack uint8 `json:"subpack"`

	// ExternalMatchID is the game's native match ID.
	ExternalMatchID string `json:"external_match_id"`

	// Events to append, in order.
	Events []GameEvent `json:"events"`
}

// NewWriteEvents creates a WriteEvents message.
func NewWriteEvents(subpack uint8, externalMatchID string, events []GameEvent) WriteEvents {
	return WriteEvents{
		Subpack:         subpack,
		ExternalMatchID: externalMatchID,
		Events:          events,
	}
}

// Type implements MatchDataMessage.
func (WriteEvents) Type() MessageType { return MessageTypeWriteEvents }

// Ref implements MatchDataMessage.
func (m WriteEvents) Ref() MatchRef {
	return MatchRef{Subpack: m.Subpack, ExternalMatchID: m.ExternalMatchID}
}

// Validate implements MatchDataMessage. An invalid event rejects the whole
// batch; partial batches never reach the store.
func (m WriteEvents) Validate() error {
	if m.ExternalMatchID == "" {
		return fmt.Errorf("write_events: %w", ErrEmptyMatchID)
	}
	for i, ev := range m.Events {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("write_events %s: event %d: %w", m.Ref(), i, err)
		}
	}
	return nil
}

func (WriteEvents) matchData() {}

// SetComplete marks a match finished. Completion is terminal and
// idempotent; final stats recorded from the API take precedence over live
// fallback data.
type SetComplete struct {
	// Subpack index (0 = default, 1+ = additional subpacks).
	Subpack uint8 `json:"subpack"`

	// ExternalMatchID is the game's native match ID.
	ExternalMatchID string `json:"external_match_id"`

	// SummarySource is "api" or "live_fallback".
	SummarySource SummarySource `json:"summary_source"`

	// FinalStats optionally overwrites summary fields on completion.
	FinalStats map[string]json.RawMessage `json:"final_stats,omitempty"`
}

// NewSetComplete creates a SetComplete message without final stats.
func NewSetComplete(subpack uint8, externalMatchID string, source SummarySource) SetComplete {
	return SetComplete{
		Subpack:         subpack,
		ExternalMatchID: externalMatchID,
		SummarySource:   source,
	}
}

// WithFinalStats returns a copy carrying final stats to apply on
// completion.
func (m SetComplete) WithFinalStats(stats map[string]json.RawMessage) SetComplete {
	m.FinalStats = stats
	return m
}

// Type implements MatchDataMessage.
func (SetComplete) Type() MessageType { return MessageTypeSetComplete }

// Ref implements MatchDataMessage.
func (m SetComplete) Ref() MatchRef {
	return MatchRef{Subpack: m.Subpack, ExternalMatchID: m.ExternalMatchID}
}

// Validate implements MatchDataMessage.
func (m SetComplete) Validate() error {
	if m.ExternalMatchID == "" {
		return fmt.Errorf("set_complete: %w", ErrEmptyMatchID)
	}
	if !m.SummarySource.Valid() {
		return fmt.Errorf("set_complete %s: %w: %q", m.Ref(), ErrInvalidSummarySource, m.SummarySource)
	}
	return nil
}

func (SetComplete) matchData() {}

// MarshalMessage encodes a match data message into its tagged wire form.
// The message is validated before encoding so malformed messages never
// leave the process.
func MarshalMessage(msg MatchDataMessage) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case WriteStats:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			WriteStats
		}{MessageTypeWriteStats, m})
	case WriteEvents:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			WriteEvents
		}{MessageTypeWriteEvents, m})
	case SetComplete:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			SetComplete
		}{MessageTypeSetComplete, m})
	}
	return nil, fmt.Errorf("marshal: unhandled message type %T", msg)
}

// UnmarshalMessage decodes a tagged wire message. An unknown or missing
// type tag is a decode error, never a silently dropped message.
func UnmarshalMessage(data []byte) (MatchDataMessage, error) {
	var probe struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch probe.Type {
	case MessageTypeWriteStats:
		var m WriteStats
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: write_stats: %w", ErrMalformedMessage, err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	case MessageTypeWriteEvents:
		var m WriteEvents
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: write_events: %w", ErrMalformedMessage, err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	case MessageTypeSetComplete:
		var m SetComplete
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: set_complete: %w", ErrMalformedMessage, err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	case "":
		return nil, ErrMissingMessageType
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, probe.Type)
	}
}

// Protocol errors.
var (
	// ErrNilMessage indicates a nil message was passed to MarshalMessage.
	ErrNilMessage = errors.New("nil match data message")

	// ErrMalformedMessage indicates undecodable JSON.
	ErrMalformedMessage = errors.New("malformed match data message")

	// ErrMissingMessageType indicates a message without a type tag.
	ErrMissingMessageType = errors.New("missing message type tag")

	// ErrUnknownMessageType indicates a type tag outside the closed
	// variant set.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrEmptyMatchID indicates a message without an external match ID.
	ErrEmptyMatchID = errors.New("empty external_match_id")

	// ErrInvalidResult indicates a result outside win/loss/draw/remake.
	ErrInvalidResult = errors.New("invalid match result")

	// ErrInvalidSummarySource indicates a summary source outside
	// api/live_fallback.
	ErrInvalidSummarySource = errors.New("invalid summary source")

	// ErrEmptyEventType indicates a game event without a type.
	ErrEmptyEventType = errors.New("empty event type")

	// ErrInvalidEntryType indicates a timeline entry type outside
	// event/statistic/moment.
	ErrInvalidEntryType = errors.New("invalid timeline entry type")

	// ErrEmptyEntryKey indicates a timeline entry without a key.
	ErrEmptyEntryKey = errors.New("empty timeline entry key")
)
