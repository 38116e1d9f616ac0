// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package schema

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry()
	err := r.Register("league", 0, map[string]ColumnType{
		"kills":      ColumnInt,
		"gold":       ColumnFloat,
		"champion":   ColumnString,
		"first_win":  ColumnBool,
		"item_build": ColumnJSON,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return r
}

func TestRegisterRejectsBadDeclarations(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("", 0, nil); !errors.Is(err, ErrEmptyPackID) {
		t.Errorf("expected ErrEmptyPackID, got %v", err)
	}
	if err := r.Register("league", 0, map[string]ColumnType{"": ColumnInt}); !errors.Is(err, ErrEmptyColumnName) {
		t.Errorf("expected ErrEmptyColumnName, got %v", err)
	}
	if err := r.Register("league", 0, map[string]ColumnType{"kills": "integer"}); !errors.Is(err, ErrInvalidColumnType) {
		t.Errorf("expected ErrInvalidColumnType, got %v", err)
	}
}

func TestValidateStatsAcceptsDeclaredColumns(t *testing.T) {
	r := testRegistry(t)

	stats := map[string]json.RawMessage{
		"kills":      json.RawMessage(`7`),
		"gold":       json.RawMessage(`12543.5`),
		"champion":   json.RawMessage(`"Ahri"`),
		"first_win":  json.RawMessage(`true`),
		"item_build": json.RawMessage(`{"slots":[3089,3157]}`),
	}
	if err := r.ValidateStats("league", 0, stats); err != nil {
		t.Errorf("declared columns should validate, got %v", err)
	}
}

func TestValidateStatsUnknownColumn(t *testing.T) {
	r := testRegistry(t)

	err := r.ValidateStats("league", 0, map[string]json.RawMessage{
		"kills":  json.RawMessage(`7`),
		"deaths": json.RawMessage(`2`),
	})
	var unknownErr *UnknownColumnError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownColumnError, got %v", err)
	}
	if unknownErr.Column != "deaths" {
		t.Errorf("wrong column reported: %q", unknownErr.Column)
	}
	if unknownErr.Pack != "league" || unknownErr.Subpack != 0 {
		t.Errorf("wrong subpack reported: %s/%d", unknownErr.Pack, unknownErr.Subpack)
	}
}

func TestValidateStatsTypeMismatch(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name   string
		column string
		value  string
	}{
		{name: "fractional int", column: "kills", value: `1.5`},
		{name: "string for int", column: "kills", value: `"7"`},
		{name: "number for string", column: "champion", value: `42`},
		{name: "string for bool", column: "first_win", value: `"true"`},
		{name: "number for bool", column: "first_win", value: `1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateStats("league", 0, map[string]json.RawMessage{
				tt.column: json.RawMessage(tt.value),
			})
			var typeErr *ColumnTypeError
			if !errors.As(err, &typeErr) {
				t.Fatalf("expected ColumnTypeError, got %v", err)
			}
			if typeErr.Column != tt.column {
				t.Errorf("wrong column reported: %q", typeErr.Column)
			}
		})
	}
}

func TestValidateStatsFloatAcceptsIntegerLiteral(t *testing.T) {
	r := testRegistry(t)

	if err := r.ValidateStats("league", 0, map[string]json.RawMessage{
		"gold": json.RawMessage(`12000`),
	}); err != nil {
		t.Errorf("float column should accept an integer literal, got %v", err)
	}
}

func TestValidateStatsNullClearsAnyColumn(t *testing.T) {
	r := testRegistry(t)

	for _, column := range []string{"kills", "gold", "champion", "first_win", "item_build"} {
		if err := r.ValidateStats("league", 0, map[string]json.RawMessage{
			column: json.RawMessage(`null`),
		}); err != nil {
			t.Errorf("null should pass for %q, got %v", column, err)
		}
	}
}

func TestValidateStatsUndeclaredSubpack(t *testing.T) {
	r := testRegistry(t)

	err := r.ValidateStats("league", 3, map[string]json.RawMessage{
		"kills": json.RawMessage(`7`),
	})
	var unknownErr *UnknownColumnError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("undeclared subpack should reject every key, got %v", err)
	}

	err = r.ValidateStats("valorant", 0, map[string]json.RawMessage{
		"kills": json.RawMessage(`7`),
	})
	if !errors.As(err, &unknownErr) {
		t.Fatalf("undeclared pack should reject every key, got %v", err)
	}
}

func TestValidateStatsEmptyIsNoOp(t *testing.T) {
	r := NewRegistry()

	if err := r.ValidateStats("league", 0, nil); err != nil {
		t.Errorf("empty stats should validate against anything, got %v", err)
	}
}

func TestValidateStatsReportsSortedFirstOffender(t *testing.T) {
	r := testRegistry(t)

	// Both keys are unknown; the lexicographically first one is reported.
	err := r.ValidateStats("league", 0, map[string]json.RawMessage{
		"zeta":  json.RawMessage(`1`),
		"alpha": json.RawMessage(`1`),
	})
	var unknownErr *UnknownColumnError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownColumnError, got %v", err)
	}
	if unknownErr.Column != "alpha" {
		t.Errorf("expected deterministic first offender \"alpha\", got %q", unknownErr.Column)
	}
}

func TestRegisterReplacesDeclaration(t *testing.T) {
	r := testRegistry(t)

	if err := r.Register("league", 0, map[string]ColumnType{"assists": ColumnInt}); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	if err := r.ValidateStats("league", 0, map[string]json.RawMessage{
		"assists": json.RawMessage(`3`),
	}); err != nil {
		t.Errorf("new declaration should be live, got %v", err)
	}
	if err := r.ValidateStats("league", 0, map[string]json.RawMessage{
		"kills": json.RawMessage(`7`),
	}); err == nil {
		t.Error("old declaration should be gone")
	}
}

func TestRegistryIntrospection(t *testing.T) {
	r := testRegistry(t)
	if err := r.Register("league", 1, map[string]ColumnType{"rounds": ColumnInt}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register("valorant", 0, map[string]ColumnType{"spikes": ColumnInt}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	packs := r.Packs()
	if len(packs) != 2 || packs[0] != "league" || packs[1] != "valorant" {
		t.Errorf("unexpected packs: %v", packs)
	}

	subs := r.Subpacks("league")
	if len(subs) != 2 || subs[0] != 0 || subs[1] != 1 {
		t.Errorf("unexpected subpacks: %v", subs)
	}

	cols, ok := r.Columns("league", 1)
	if !ok || cols["rounds"] != ColumnInt {
		t.Errorf("unexpected columns: %v (ok=%v)", cols, ok)
	}

	// The returned map is a copy.
	cols["rounds"] = ColumnString
	again, _ := r.Columns("league", 1)
	if again["rounds"] != ColumnInt {
		t.Error("Columns must return a defensive copy")
	}

	if _, ok := r.Columns("league", 9); ok {
		t.Error("missing subpack should report ok=false")
	}
}
