// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/schema"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// Store is the persistence surface the pipeline writes through.
type Store interface {
	store.MatchStore
	store.TimelineStore
}

// Pipeline applies match data messages. Safe for concurrent use; one match
// never sees two concurrent applications.
type Pipeline struct {
	store   Store
	schemas schema.Lookup
	locks   *keyedLocks
}

// New creates a pipeline writing through st, validating stat columns
// against schemas.
func New(st Store, schemas schema.Lookup) *Pipeline {
	return &Pipeline{
		store:   st,
		schemas: schemas,
		locks:   newKeyedLocks(),
	}
}

// Apply applies one match data message for the given gamepack. The message
// either fully applies or leaves the match untouched.
func (p *Pipeline) Apply(ctx context.Context, packID string, msg protocol.MatchDataMessage) error {
	if msg == nil {
		return protocol.ErrNilMessage
	}
	if packID == "" {
		return ErrEmptyPackID
	}
	if err := msg.Validate(); err != nil {
		recordMessage(msg.Type(), outcomeRejected)
		return err
	}

	key := store.Key(packID, msg.Ref())

	// Single writer per match: a write and a recovery finalization for the
	// same match never interleave.
	unlock := p.locks.lock(key)
	defer unlock()

	start := time.Now()
	switch m := msg.(type) {
	case protocol.WriteStats:
		return p.finish(key, m.Type(), start, p.applyWriteStats(ctx, key, m))
	case protocol.WriteEvents:
		return p.finish(key, m.Type(), start, p.applyWriteEvents(ctx, key, m))
	case protocol.SetComplete:
		return p.finish(key, m.Type(), start, p.applySetComplete(ctx, key, m))
	}
	return fmt.Errorf("unhandled match data message type %T", msg)
}

// finish records the outcome of one application.
func (p *Pipeline) finish(key store.MatchKey, typ protocol.MessageType, start time.Time, err error) error {
	observeApply(typ, start)
	if err != nil {
		recordMessage(typ, outcomeRejected)
		logging.Warn().Err(err).Str("match", key.String()).Str("type", string(typ)).Msg("match data message rejected")
		return err
	}
	recordMessage(typ, outcomeApplied)
	logging.Debug().Str("match", key.String()).Str("type", string(typ)).Msg("match data message applied")
	return nil
}

// applyWriteStats creates the match on first sight, then merges summary
// fields last-writer-wins.
func (p *Pipeline) applyWriteStats(ctx context.Context, key store.MatchKey, m protocol.WriteStats) error {
	if err := p.schemas.ValidateStats(key.PackID, key.Subpack, m.Stats); err != nil {
		recordSchemaRejection(key.PackID)
		return err
	}

	now := time.Now().UTC()
	fresh := store.NewMatchRecord(key, now)
	mergeWriteStats(fresh, m)

	created, err := p.store.CreateMatchIfAbsent(ctx, fresh)
	if err != nil {
		return err
	}
	if !created {
		_, err = p.store.UpdateMatch(ctx, key, func(r *store.MatchRecord) error {
			if !r.IsInProgress {
				return ErrMatchCompleted
			}
			mergeWriteStats(r, m)
			return nil
		})
		if errors.Is(err, ErrMatchCompleted) {
			recordLateWrite(key.PackID)
			return fmt.Errorf("write_stats %s: %w", key, ErrMatchCompleted)
		}
		if err != nil {
			return err
		}
	}

	return p.appendDelta(ctx, key, now, statsDelta{
		PlayedAt:     m.PlayedAt,
		DurationSecs: m.DurationSecs,
		Result:       m.Result,
		Stats:        m.Stats,
	})
}

// applyWriteEvents creates the match on first sight, then appends the
// event batch atomically in supplied order.
func (p *Pipeline) applyWriteEvents(ctx context.Context, key store.MatchKey, m protocol.WriteEvents) error {
	now := time.Now().UTC()

	created, err := p.store.CreateMatchIfAbsent(ctx, store.NewMatchRecord(key, now))
	if err != nil {
		return err
	}
	if !created {
		rec, err := p.store.GetMatch(ctx, key)
		if err != nil {
			return err
		}
		if !rec.IsInProgress {
			recordLateWrite(key.PackID)
			return fmt.Errorf("write_events %s: %w", key, ErrMatchCompleted)
		}
	}

	if len(m.Events) == 0 {
		return nil
	}
	entries := make([]protocol.TimelineEntry, len(m.Events))
	for i, ev := range m.Events {
		entries[i] = protocol.EventEntry(ev.EventType, ev.TimestampSecs, now, ev.Data)
	}
	return p.store.AppendEntries(ctx, key, entries)
}

// applySetComplete marks the match finished. Completion never creates a
// match: a SetComplete for an unknown key is a protocol error, not a lazy
// write.
func (p *Pipeline) applySetComplete(ctx context.Context, key store.MatchKey, m protocol.SetComplete) error {
	if err := p.schemas.ValidateStats(key.PackID, key.Subpack, m.FinalStats); err != nil {
		recordSchemaRejection(key.PackID)
		return err
	}

	rec, err := p.store.GetMatch(ctx, key)
	if errors.Is(err, store.ErrMatchNotFound) {
		return fmt.Errorf("set_complete %s: %w", key, ErrUnknownMatch)
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if !rec.IsInProgress {
		// Already terminal. API-sourced finals supersede live-fallback
		// data; everything else is an idempotent no-op with the incoming
		// final stats dropped.
		if m.SummarySource != protocol.SummarySourceAPI || rec.SummarySource != protocol.SummarySourceLiveFallback {
			recordCompletionNoop(key.PackID)
			return nil
		}

		if _, err := p.store.UpdateMatch(ctx, key, func(r *store.MatchRecord) error {
			mergeStats(r, m.FinalStats)
			r.SummarySource = protocol.SummarySourceAPI
			return nil
		}); err != nil {
			return err
		}
		return p.appendDelta(ctx, key, now, statsDelta{
			Stats:         m.FinalStats,
			SummarySource: protocol.SummarySourceAPI,
		})
	}

	if _, err := p.store.UpdateMatch(ctx, key, func(r *store.MatchRecord) error {
		r.IsInProgress = false
		r.SummarySource = m.SummarySource
		r.CompletedAt = &now
		mergeStats(r, m.FinalStats)
		return nil
	}); err != nil {
		return err
	}
	return p.appendDelta(ctx, key, now, statsDelta{
		Stats:         m.FinalStats,
		SummarySource: m.SummarySource,
		Completed:     true,
	})
}

// statsDelta is the payload of the statistic timeline entries the pipeline
// appends. Replaying a match's deltas in order rebuilds its summary.
type statsDelta struct {
	PlayedAt      *time.Time                 `json:"played_at,omitempty"`
	DurationSecs  *int32                     `json:"duration_secs,omitempty"`
	Result        *string                    `json:"result,omitempty"`
	Stats         map[string]json.RawMessage `json:"stats,omitempty"`
	SummarySource protocol.SummarySource     `json:"summary_source,omitempty"`
	Completed     bool                       `json:"completed,omitempty"`
}

func (d statsDelta) empty() bool {
	return d.PlayedAt == nil && d.DurationSecs == nil && d.Result == nil &&
		len(d.Stats) == 0 && d.SummarySource == "" && !d.Completed
}

// appendDelta appends one statistic entry carrying the summary change. A
// message that changed nothing appends nothing.
func (p *Pipeline) appendDelta(ctx context.Context, key store.MatchKey, now time.Time, delta statsDelta) error {
	if delta.empty() {
		return nil
	}
	data, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("marshal stats delta: %w", err)
	}
	entry := protocol.StatisticEntry(0, now, data)
	return p.store.AppendEntries(ctx, key, []protocol.TimelineEntry{entry})
}

// mergeWriteStats applies a WriteStats to a record. Optional fields
// overwrite only when present; stat fields merge last-writer-wins.
func mergeWriteStats(rec *store.MatchRecord, m protocol.WriteStats) {
	if m.PlayedAt != nil {
		ts := *m.PlayedAt
		rec.PlayedAt = &ts
	}
	if m.DurationSecs != nil {
		d := *m.DurationSecs
		rec.DurationSecs = &d
	}
	if m.Result != nil {
		res := *m.Result
		rec.Result = &res
	}
	mergeStats(rec, m.Stats)
}

// mergeStats upserts stat fields into the record, field-wise.
func mergeStats(rec *store.MatchRecord, stats map[string]json.RawMessage) {
	if len(stats) == 0 {
		return
	}
	if rec.SummaryStats == nil {
		rec.SummaryStats = make(map[string]json.RawMessage, len(stats))
	}
	for k, v := range stats {
		rec.SummaryStats[k] = v
	}
}

// Pipeline errors.
var (
	// ErrEmptyPackID indicates a message applied without a gamepack ID.
	ErrEmptyPackID = errors.New("empty pack id")

	// ErrUnknownMatch indicates an operation that requires an existing
	// match, e.g. a SetComplete for a key never written.
	ErrUnknownMatch = errors.New("unknown match")

	// ErrMatchCompleted indicates a write for a match that already
	// finished. Completion is terminal; late telemetry is rejected rather
	// than silently merged.
	ErrMatchCompleted = errors.New("match already completed")
)
