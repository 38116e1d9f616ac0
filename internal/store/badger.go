// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
)

// Store implements MatchStore and TimelineStore on one BadgerDB database.
//
// The store itself does not serialize writers: the pipeline holds a
// per-match lock around every mutation, so a single match never sees two
// concurrent transactions. Cross-match operations run in parallel.
type Store struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Interface guards.
var (
	_ MatchStore    = (*Store)(nil)
	_ TimelineStore = (*Store)(nil)
)

// Open creates or opens the database at the configured path.
func Open(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	if cfg.BlockCacheSize > 0 {
		opts.BlockCacheSize = cfg.BlockCacheSize
	}

	// Badger's own logger is too chatty for a daemon log.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{db: db, config: *cfg}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("compression", cfg.Compression).
		Msg("match store opened")
	return s, nil
}

// GetMatch returns the summary record for key.
func (s *Store) GetMatch(ctx context.Context, key MatchKey) (*MatchRecord, error) {
	start := time.Now()
	defer func() { observeOp("get_match", start) }()

	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	var rec MatchRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(matchKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("get match record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, storeErr("get_match", key, err)
	}
	return &rec, nil
}

// CreateMatchIfAbsent inserts rec unless its key already exists.
func (s *Store) CreateMatchIfAbsent(ctx context.Context, rec *MatchRecord) (bool, error) {
	start := time.Now()
	defer func() { observeOp("create_match", start) }()

	if err := s.guard(ctx); err != nil {
		return false, err
	}

	key := rec.Key()
	created := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(matchKey(key))
		if err == nil {
			// Lost the race (or the match simply exists): not an error.
			created = false
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("probe match record: %w", err)
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal match record: %w", err)
		}
		if err := txn.Set(matchKey(key), data); err != nil {
			return fmt.Errorf("set match record: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, storeErr("create_match", key, err)
	}

	if created {
		recordMatchCreated()
		logging.Debug().Str("match", key.String()).Msg("match created")
	}
	return created, nil
}

// UpdateMatch applies update inside one transaction and returns the
// updated record.
func (s *Store) UpdateMatch(ctx context.Context, key MatchKey, update func(*MatchRecord) error) (*MatchRecord, error) {
	start := time.Now()
	defer func() { observeOp("update_match", start) }()

	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	var rec MatchRecord
	var updateErr error
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(matchKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("get match record: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return fmt.Errorf("unmarshal match record: %w", err)
		}

		if err := update(&rec); err != nil {
			updateErr = err
			return err
		}
		rec.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshal match record: %w", err)
		}
		return txn.Set(matchKey(key), data)
	})
	if updateErr != nil {
		// Callback errors abort the transaction and pass through verbatim
		// so callers can keep their own error taxonomy.
		return nil, updateErr
	}
	if err != nil {
		return nil, storeErr("update_match", key, err)
	}
	return &rec, nil
}

// ListInProgress returns every in-progress match, optionally scoped to one
// pack.
func (s *Store) ListInProgress(ctx context.Context, packID string) ([]*MatchRecord, error) {
	start := time.Now()
	defer func() { observeOp("list_in_progress", start) }()

	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	var records []*MatchRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := matchPackPrefix(packID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var rec MatchRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping unreadable match record")
				continue
			}
			if rec.IsInProgress {
				records = append(records, &rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("list_in_progress", MatchKey{PackID: packID}, err)
	}
	return records, nil
}

// AppendEntries appends a batch to the match's timeline in one
// transaction.
func (s *Store) AppendEntries(ctx context.Context, key MatchKey, entries []protocol.TimelineEntry) error {
	start := time.Now()
	defer func() { observeOp("append_entries", start) }()

	if err := s.guard(ctx); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		seq, err := readSeq(txn, key)
		if err != nil {
			return err
		}

		for i := range entries {
			data, err := json.Marshal(&entries[i])
			if err != nil {
				return fmt.Errorf("marshal timeline entry %d: %w", i, err)
			}
			if err := txn.Set(timelineKey(key, seq+uint64(i)), data); err != nil {
				return fmt.Errorf("set timeline entry %d: %w", i, err)
			}
		}

		return writeSeq(txn, key, seq+uint64(len(entries)))
	})
	if err != nil {
		return storeErr("append_entries", key, err)
	}

	recordEntriesAppended(len(entries))
	return nil
}

// QueryTimeline reads a match's timeline without side effects.
func (s *Store) QueryTimeline(ctx context.Context, key MatchKey, q TimelineQuery) (*TimelineResult, error) {
	start := time.Now()
	defer func() { observeOp("query_timeline", start) }()

	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	result := &TimelineResult{Entries: []protocol.TimelineEntry{}}
	err := s.db.View(func(txn *badger.Txn) error {
		// Found reflects the match record, not the entry count: a match
		// can exist with nothing on its timeline yet.
		_, err := txn.Get(matchKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("probe match record: %w", err)
		}
		result.Found = true

		var filter map[string]struct{}
		if len(q.EntryTypes) > 0 {
			filter = make(map[string]struct{}, len(q.EntryTypes))
			for _, t := range q.EntryTypes {
				filter[t] = struct{}{}
			}
		}

		if q.Limit > 0 {
			return s.collectLatest(ctx, txn, key, filter, q.Limit, result)
		}
		return s.collectAll(ctx, txn, key, filter, result)
	})
	if err != nil {
		return nil, storeErr("query_timeline", key, err)
	}
	return result, nil
}

// collectAll walks the timeline forward, appending every matching entry.
func (s *Store) collectAll(ctx context.Context, txn *badger.Txn, key MatchKey, filter map[string]struct{}, result *TimelineResult) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := timelinePrefix(key)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, ok := decodeEntry(it.Item(), filter)
		if ok {
			result.Entries = append(result.Entries, entry)
		}
	}
	return nil
}

// collectLatest walks the timeline backward until limit matching entries
// are found, then restores chronological order.
func (s *Store) collectLatest(ctx context.Context, txn *badger.Txn, key MatchKey, filter map[string]struct{}, limit int, result *TimelineResult) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := timelinePrefix(key)
	// Reverse iteration starts past the last possible sequence key.
	seekTo := append(append([]byte{}, prefix...), 0xFF)

	for it.Seek(seekTo); it.ValidForPrefix(prefix) && len(result.Entries) < limit; it.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, ok := decodeEntry(it.Item(), filter)
		if ok {
			result.Entries = append(result.Entries, entry)
		}
	}

	// Collected newest-first; flip to chronological order.
	for i, j := 0, len(result.Entries)-1; i < j; i, j = i+1, j-1 {
		result.Entries[i], result.Entries[j] = result.Entries[j], result.Entries[i]
	}
	return nil
}

// decodeEntry unmarshals one timeline item and applies the type filter.
// Unreadable entries are skipped with a warning rather than failing the
// whole read.
func decodeEntry(item *badger.Item, filter map[string]struct{}) (protocol.TimelineEntry, bool) {
	var entry protocol.TimelineEntry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		logging.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping unreadable timeline entry")
		return entry, false
	}
	if filter != nil {
		if _, ok := filter[string(entry.EntryType)]; !ok {
			return entry, false
		}
	}
	return entry, true
}

// readSeq reads the next timeline sequence number for a match, 0 when the
// timeline is empty.
func readSeq(txn *badger.Txn, key MatchKey) (uint64, error) {
	item, err := txn.Get(seqKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get timeline seq: %w", err)
	}

	var seq uint64
	if err := item.Value(func(val []byte) error {
		_, scanErr := fmt.Sscanf(string(val), "%d", &seq)
		return scanErr
	}); err != nil {
		return 0, fmt.Errorf("parse timeline seq: %w", err)
	}
	return seq, nil
}

// writeSeq stores the next timeline sequence number for a match.
func writeSeq(txn *badger.Txn, key MatchKey, seq uint64) error {
	if err := txn.Set(seqKey(key), []byte(fmt.Sprintf("%d", seq))); err != nil {
		return fmt.Errorf("set timeline seq: %w", err)
	}
	return nil
}

// Stats summarizes store contents for monitoring.
type Stats struct {
	// Matches is the total number of match records.
	Matches int64

	// InProgress is the number of matches not yet completed.
	InProgress int64

	// DBSizeBytes is the estimated database size (LSM + value log).
	DBSizeBytes int64
}

// Stats counts match records. It scans the match key family; timeline
// entries are not counted.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := s.guard(ctx); err != nil {
		return Stats{}, err
	}

	var stats Stats
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixMatch)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			stats.Matches++
			var rec MatchRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			if rec.IsInProgress {
				stats.InProgress++
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, storeErr("stats", MatchKey{}, err)
	}

	lsm, vlog := s.db.Size()
	stats.DBSizeBytes = lsm + vlog

	updateStoreGauges(stats)
	return stats, nil
}

// RunGC triggers BadgerDB value log garbage collection until no further
// rewrite is possible.
func (s *Store) RunGC() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	start := time.Now()
	defer func() { observeOp("gc", start) }()

	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}

// GCInterval exposes the configured GC cadence for the supervisor service
// driving RunGC.
func (s *Store) GCInterval() time.Duration {
	return s.config.GCInterval
}

// Backup streams a consistent copy of the database to w and returns the
// version the stream covers. since limits the stream to entries newer
// than a previous backup's returned version; zero streams everything.
func (s *Store) Backup(ctx context.Context, w io.Writer, since uint64) (uint64, error) {
	start := time.Now()
	defer func() { observeOp("backup", start) }()

	if err := s.guard(ctx); err != nil {
		return 0, err
	}

	version, err := s.db.Backup(w, since)
	if err != nil {
		return 0, fmt.Errorf("backup store: %w", err)
	}
	return version, nil
}

// Load applies a stream produced by Backup. Stream entries carry their
// original versions, so loading into a fresh database reproduces the
// backed-up state; loading over existing newer data leaves the newer
// data in place.
func (s *Store) Load(ctx context.Context, r io.Reader) error {
	start := time.Now()
	defer func() { observeOp("load", start) }()

	if err := s.guard(ctx); err != nil {
		return err
	}

	if err := s.db.Load(r, loadMaxPendingWrites); err != nil {
		return fmt.Errorf("load backup stream: %w", err)
	}
	return nil
}

// loadMaxPendingWrites bounds the write batches Load keeps in flight.
const loadMaxPendingWrites = 256

// Close shuts the database down, bounded by the configured close timeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	logging.Info().Msg("closing match store")

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("match store closed")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// guard rejects operations on a closed store or a done context.
func (s *Store) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
