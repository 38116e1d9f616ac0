// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/matchkeeper/matchkeeper/internal/protocol"
)

// MatchKey names one match globally: gamepack ID, subpack index, external
// match ID.
type MatchKey struct {
	PackID          string
	Subpack         uint8
	ExternalMatchID string
}

// Key builds a MatchKey from a pack ID and a protocol match ref.
func Key(packID string, ref protocol.MatchRef) MatchKey {
	return MatchKey{
		PackID:          packID,
		Subpack:         ref.Subpack,
		ExternalMatchID: ref.ExternalMatchID,
	}
}

// Ref returns the protocol-level ref of the key.
func (k MatchKey) Ref() protocol.MatchRef {
	return protocol.MatchRef{Subpack: k.Subpack, ExternalMatchID: k.ExternalMatchID}
}

// String renders the key for logs.
func (k MatchKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.PackID, k.Subpack, k.ExternalMatchID)
}

// MatchRecord is the persisted summary state of one match.
type MatchRecord struct {
	// Identity.
	PackID          string `json:"pack_id"`
	Subpack         uint8  `json:"subpack"`
	ExternalMatchID string `json:"external_match_id"`

	// Summary fields. Optionals stay nil until a write provides them.
	PlayedAt     *time.Time `json:"played_at,omitempty"`
	DurationSecs *int32     `json:"duration_secs,omitempty"`
	Result       *string    `json:"result,omitempty"`

	// SummaryStats holds the schema-declared stat columns, upserted
	// field-wise last-writer-wins.
	SummaryStats map[string]json.RawMessage `json:"summary_stats,omitempty"`

	// IsInProgress is true from lazy creation until completion.
	// Completion is terminal: the flag never goes back to true.
	IsInProgress bool `json:"is_in_progress"`

	// SummarySource records where the final summary came from, set on
	// completion only.
	SummarySource protocol.SummarySource `json:"summary_source,omitempty"`

	// Bookkeeping.
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Recovery bookkeeping: when the daemon last verified this match with
	// its gamepack, and how many verification attempts it has made.
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
	VerifyAttempts int        `json:"verify_attempts,omitempty"`
}

// Key returns the record's match key.
func (r *MatchRecord) Key() MatchKey {
	return MatchKey{
		PackID:          r.PackID,
		Subpack:         r.Subpack,
		ExternalMatchID: r.ExternalMatchID,
	}
}

// NewMatchRecord creates an in-progress record for lazy creation.
func NewMatchRecord(key MatchKey, now time.Time) *MatchRecord {
	return &MatchRecord{
		PackID:          key.PackID,
		Subpack:         key.Subpack,
		ExternalMatchID: key.ExternalMatchID,
		IsInProgress:    true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// TimelineQuery filters a timeline read.
type TimelineQuery struct {
	// EntryTypes restricts results to the given entry types; empty means
	// all types.
	EntryTypes []string

	// Limit returns only the most recent N matching entries; 0 means all.
	Limit int
}

// TimelineResult is the outcome of a timeline query.
type TimelineResult struct {
	// Found reports whether the match exists at all.
	Found bool

	// Entries in chronological (append) order.
	Entries []protocol.TimelineEntry
}

// MatchStore is the persistence surface for match summary records.
type MatchStore interface {
	// GetMatch returns the record for key, or ErrMatchNotFound.
	GetMatch(ctx context.Context, key MatchKey) (*MatchRecord, error)

	// CreateMatchIfAbsent inserts rec unless a record already exists for
	// its key. Returns whether the insert happened. Atomic: of two
	// concurrent creators exactly one observes created=true.
	CreateMatchIfAbsent(ctx context.Context, rec *MatchRecord) (created bool, err error)

	// UpdateMatch applies update to the stored record inside one
	// transaction and returns the updated record. Returns
	// ErrMatchNotFound if the match does not exist; if update returns an
	// error nothing is written and the error is returned verbatim.
	UpdateMatch(ctx context.Context, key MatchKey, update func(*MatchRecord) error) (*MatchRecord, error)

	// ListInProgress returns every in-progress match for a pack, or for
	// all packs when packID is empty. Order is unspecified.
	ListInProgress(ctx context.Context, packID string) ([]*MatchRecord, error)
}

// TimelineStore is the persistence surface for match timelines.
type TimelineStore interface {
	// AppendEntries appends a batch to the match's timeline atomically,
	// preserving slice order. An empty batch is a no-op.
	AppendEntries(ctx context.Context, key MatchKey, entries []protocol.TimelineEntry) error

	// QueryTimeline reads the timeline without side effects.
	QueryTimeline(ctx context.Context, key MatchKey, q TimelineQuery) (*TimelineResult, error)
}

// StoreError wraps a storage-engine failure. Callers must treat the
// attempted write as not applied; completed transactions are never
// partially visible.
type StoreError struct {
	Op  string
	Key string
	Err error
}

// Error implements error.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *StoreError) Unwrap() error { return e.Err }

// storeErr wraps err unless it is already a domain error.
func storeErr(op string, key MatchKey, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMatchNotFound) || errors.Is(err, ErrStoreClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StoreError{Op: op, Key: key.String(), Err: err}
}

// Store errors.
var (
	// ErrMatchNotFound is returned when a match key has never been
	// written.
	ErrMatchNotFound = errors.New("match not found")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store is closed")
)
