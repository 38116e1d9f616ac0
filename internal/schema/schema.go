// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package schema holds the declared stat columns of every gamepack subpack
// and validates summary stat writes against them. Columns are declared in
// daemon configuration; a write naming an undeclared column is rejected
// before it reaches the store.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
)

// ColumnType is the declared type of a stat column.
type ColumnType string

// Column types.
const (
	// ColumnInt accepts JSON integers.
	ColumnInt ColumnType = "int"
	// ColumnFloat accepts any JSON number.
	ColumnFloat ColumnType = "float"
	// ColumnString accepts JSON strings.
	ColumnString ColumnType = "string"
	// ColumnBool accepts JSON booleans.
	ColumnBool ColumnType = "bool"
	// ColumnJSON accepts any valid JSON value.
	ColumnJSON ColumnType = "json"
)

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnInt, ColumnFloat, ColumnString, ColumnBool, ColumnJSON:
		return true
	}
	return false
}

// Lookup is the read surface the write pipeline depends on.
type Lookup interface {
	// ValidateStats checks every key and value in stats against the
	// declared columns of (packID, subpack). The first offending key
	// (lexicographically) is reported; on any error the caller must not
	// apply the write.
	ValidateStats(packID string, subpack uint8, stats map[string]json.RawMessage) error
}

// Registry maps gamepack subpacks to their declared columns. Safe for
// concurrent use; registration normally happens once at startup from
// configuration.
type Registry struct {
	mu    sync.RWMutex
	packs map[string]map[uint8]map[string]ColumnType
}

// Interface guard.
var _ Lookup = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{packs: make(map[string]map[uint8]map[string]ColumnType)}
}

// Register declares the columns of one subpack, replacing any previous
// declaration for it.
func (r *Registry) Register(packID string, subpack uint8, columns map[string]ColumnType) error {
	if packID == "" {
		return fmt.Errorf("register schema: %w", ErrEmptyPackID)
	}
	cols := make(map[string]ColumnType, len(columns))
	for name, typ := range columns {
		if name == "" {
			return fmt.Errorf("register schema %s/%d: %w", packID, subpack, ErrEmptyColumnName)
		}
		if !typ.Valid() {
			return fmt.Errorf("register schema %s/%d: column %q: %w: %q", packID, subpack, name, ErrInvalidColumnType, typ)
		}
		cols[name] = typ
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.packs[packID]
	if !ok {
		subs = make(map[uint8]map[string]ColumnType)
		r.packs[packID] = subs
	}
	subs[subpack] = cols
	return nil
}

// ValidateStats implements Lookup.
//
// A subpack with no registered schema rejects every key: a write arriving
// for an undeclared subpack is an operator configuration gap and must fail
// loudly rather than store unchecked fields. Keys are checked in sorted
// order so the reported error is deterministic. A JSON null passes every
// type check; writing null clears the column.
func (r *Registry) ValidateStats(packID string, subpack uint8, stats map[string]json.RawMessage) error {
	if len(stats) == 0 {
		return nil
	}

	r.mu.RLock()
	cols := r.packs[packID][subpack]
	r.mu.RUnlock()

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		typ, ok := cols[name]
		if !ok {
			return &UnknownColumnError{Pack: packID, Subpack: subpack, Column: name}
		}
		if !valueMatches(typ, stats[name]) {
			return &ColumnTypeError{Pack: packID, Subpack: subpack, Column: name, Want: typ}
		}
	}
	return nil
}

// Columns returns a copy of the declared columns of one subpack. The second
// return is false when the subpack has no schema.
func (r *Registry) Columns(packID string, subpack uint8) (map[string]ColumnType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cols, ok := r.packs[packID][subpack]
	if !ok {
		return nil, false
	}
	out := make(map[string]ColumnType, len(cols))
	for name, typ := range cols {
		out[name] = typ
	}
	return out, true
}

// Subpacks returns the sorted subpack indexes declared for a pack.
func (r *Registry) Subpacks(packID string) []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.packs[packID]
	out := make([]uint8, 0, len(subs))
	for idx := range subs {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Packs returns the sorted pack IDs with at least one declared subpack.
func (r *Registry) Packs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.packs))
	for id := range r.packs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// valueMatches reports whether raw decodes as the declared type.
func valueMatches(typ ColumnType, raw json.RawMessage) bool {
	switch typ {
	case ColumnInt:
		var v int64
		return json.Unmarshal(raw, &v) == nil
	case ColumnFloat:
		var v float64
		return json.Unmarshal(raw, &v) == nil
	case ColumnString:
		var v string
		return json.Unmarshal(raw, &v) == nil
	case ColumnBool:
		var v bool
		return json.Unmarshal(raw, &v) == nil
	case ColumnJSON:
		return json.Valid(raw)
	}
	return false
}

// UnknownColumnError reports a stat key outside the subpack's declared
// columns. The offending message is rejected whole; nothing is stored.
type UnknownColumnError struct {
	Pack    string
	Subpack uint8
	Column  string
}

// Error implements error.
func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q for %s/%d", e.Column, e.Pack, e.Subpack)
}

// ColumnTypeError reports a stat value that does not decode as the
// column's declared type.
type ColumnTypeError struct {
	Pack    string
	Subpack uint8
	Column  string
	Want    ColumnType
}

// Error implements error.
func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("column %q for %s/%d: value is not %s", e.Column, e.Pack, e.Subpack, e.Want)
}

// Registration errors.
var (
	// ErrEmptyPackID indicates a schema registered without a pack ID.
	ErrEmptyPackID = errors.New("empty pack id")

	// ErrEmptyColumnName indicates a declared column with an empty name.
	ErrEmptyColumnName = errors.New("empty column name")

	// ErrInvalidColumnType indicates a declared type outside
	// int/float/string/bool/json.
	ErrInvalidColumnType = errors.New("invalid column type")
)
