// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package protocol

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestMarshalMessageTagsVariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  MatchDataMessage
		tag  string
	}{
		{
			name: "write_stats",
			msg: NewWriteStats(0, "NA1_4815162342", map[string]json.RawMessage{
				"kills": json.RawMessage(`7`),
			}),
			tag: `"type":"write_stats"`,
		},
		{
			name: "write_events",
			msg: NewWriteEvents(1, "NA1_4815162342", []GameEvent{
				NewGameEvent("DragonKill", 912.5, json.RawMessage(`{"team":"blue"}`)),
			}),
			tag: `"type":"write_events"`,
		},
		{
			name: "set_complete",
			msg:  NewSetComplete(0, "NA1_4815162342", SummarySourceAPI),
			tag:  `"type":"set_complete"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := MarshalMessage(tt.msg)
			if err != nil {
				t.Fatalf("MarshalMessage failed: %v", err)
			}
			if !strings.Contains(string(data), tt.tag) {
				t.Errorf("expected %s in wire form: %s", tt.tag, data)
			}

			decoded, err := UnmarshalMessage(data)
			if err != nil {
				t.Fatalf("UnmarshalMessage failed: %v", err)
			}
			if decoded.Type() != tt.msg.Type() {
				t.Errorf("round trip changed type: got %q, want %q", decoded.Type(), tt.msg.Type())
			}
			if decoded.Ref() != tt.msg.Ref() {
				t.Errorf("round trip changed ref: got %v, want %v", decoded.Ref(), tt.msg.Ref())
			}
		})
	}
}

func TestUnmarshalMessageFields(t *testing.T) {
	t.Parallel()

	wire := `{
		"type": "write_stats",
		"subpack": 2,
		"external_match_id": "m-77",
		"played_at": "2026-03-01T18:04:05Z",
		"duration_secs": 1815,
		"result": "win",
		"stats": {"kills": 7, "gold": 12750}
	}`

	msg, err := UnmarshalMessage([]byte(wire))
	if err != nil {
		t.Fatalf("UnmarshalMessage failed: %v", err)
	}

	ws, ok := msg.(WriteStats)
	if !ok {
		t.Fatalf("expected WriteStats, got %T", msg)
	}
	if ws.Subpack != 2 || ws.ExternalMatchID != "m-77" {
		t.Errorf("wrong ref: %v", ws.Ref())
	}
	if ws.PlayedAt == nil || !ws.PlayedAt.Equal(time.Date(2026, 3, 1, 18, 4, 5, 0, time.UTC)) {
		t.Errorf("wrong played_at: %v", ws.PlayedAt)
	}
	if ws.DurationSecs == nil || *ws.DurationSecs != 1815 {
		t.Errorf("wrong duration: %v", ws.DurationSecs)
	}
	if ws.Result == nil || *ws.Result != ResultWin {
		t.Errorf("wrong result: %v", ws.Result)
	}
	if string(ws.Stats["gold"]) != "12750" {
		t.Errorf("wrong stats payload: %s", ws.Stats["gold"])
	}
}

func TestUnmarshalMessageClosedSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wire    string
		wantErr error
	}{
		{
			name:    "unknown type",
			wire:    `{"type":"write_summary","subpack":0,"external_match_id":"m-1"}`,
			wantErr: ErrUnknownMessageType,
		},
		{
			name:    "missing type",
			wire:    `{"subpack":0,"external_match_id":"m-1"}`,
			wantErr: ErrMissingMessageType,
		},
		{
			name:    "malformed json",
			wire:    `{"type":`,
			wantErr: ErrMalformedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := UnmarshalMessage([]byte(tt.wire))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWriteStatsValidate(t *testing.T) {
	t.Parallel()

	bad := "victory"
	negative := int32(-5)

	tests := []struct {
		name    string
		msg     WriteStats
		wantErr error
	}{
		{
			name:    "empty match id",
			msg:     NewWriteStats(0, "", nil),
			wantErr: ErrEmptyMatchID,
		},
		{
			name:    "invalid result",
			msg:     WriteStats{ExternalMatchID: "m-1", Result: &bad},
			wantErr: ErrInvalidResult,
		},
		{
			name: "negative duration",
			msg:  WriteStats{ExternalMatchID: "m-1", DurationSecs: &negative},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.msg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWriteEventsValidateRejectsWholeBatch(t *testing.T) {
	t.Parallel()

	msg := NewWriteEvents(0, "m-1", []GameEvent{
		NewGameEvent("BaronKill", 1410.0, json.RawMessage(`{}`)),
		{EventType: "", TimestampSecs: 1411.0},
	})

	if err := msg.Validate(); !errors.Is(err, ErrEmptyEventType) {
		t.Errorf("expected ErrEmptyEventType for batch with bad event, got %v", err)
	}
}

func TestSetCompleteValidate(t *testing.T) {
	t.Parallel()

	msg := SetComplete{ExternalMatchID: "m-1", SummarySource: "scraped"}
	if err := msg.Validate(); !errors.Is(err, ErrInvalidSummarySource) {
		t.Errorf("expected ErrInvalidSummarySource, got %v", err)
	}

	ok := NewSetComplete(0, "m-1", SummarySourceLiveFallback)
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestMarshalMessageRejectsInvalid(t *testing.T) {
	t.Parallel()

	if _, err := MarshalMessage(NewWriteStats(0, "", nil)); err == nil {
		t.Error("expected marshal of invalid message to fail")
	}
	if _, err := MarshalMessage(nil); !errors.Is(err, ErrNilMessage) {
		t.Errorf("expected ErrNilMessage, got %v", err)
	}
}

func TestWriteStatsOptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(NewWriteStats(0, "m-1", map[string]json.RawMessage{}))
	if err != nil {
		t.Fatalf("MarshalMessage failed: %v", err)
	}

	for _, field := range []string{"played_at", "duration_secs", "result"} {
		if strings.Contains(string(data), field) {
			t.Errorf("expected %s to be omitted when unset: %s", field, data)
		}
	}
}

func TestWriteStatsBuilders(t *testing.T) {
	t.Parallel()

	playedAt := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	msg := NewWriteStats(1, "m-9", nil).
		WithPlayedAt(playedAt).
		WithDuration(2400).
		WithResult(ResultDraw)

	if msg.PlayedAt == nil || !msg.PlayedAt.Equal(playedAt) {
		t.Errorf("WithPlayedAt not applied: %v", msg.PlayedAt)
	}
	if msg.DurationSecs == nil || *msg.DurationSecs != 2400 {
		t.Errorf("WithDuration not applied: %v", msg.DurationSecs)
	}
	if msg.Result == nil || *msg.Result != ResultDraw {
		t.Errorf("WithResult not applied: %v", msg.Result)
	}
}

func TestMatchRefString(t *testing.T) {
	t.Parallel()

	ref := MatchRef{Subpack: 3, ExternalMatchID: "NA1_123"}
	if got := ref.String(); got != "3/NA1_123" {
		t.Errorf("unexpected ref string: %q", got)
	}
}
