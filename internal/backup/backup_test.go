// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// testConfig returns an enabled backup config rooted in a temp dir.
func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Dir = t.TempDir()
	return cfg
}

// openStore opens a throwaway store in a temp dir.
func openStore(t *testing.T) *store.Store {
	t.Helper()

	scfg := store.DefaultConfig()
	scfg.Path = t.TempDir()
	scfg.SyncWrites = false

	st, err := store.Open(&scfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("store close failed: %v", err)
		}
	})
	return st
}

// seedMatch writes one in-progress match with two timeline entries.
func seedMatch(t *testing.T, st *store.Store, key store.MatchKey) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := st.CreateMatchIfAbsent(ctx, store.NewMatchRecord(key, now)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	entries := []protocol.TimelineEntry{
		protocol.EventEntry("Ace", 900.0, now, json.RawMessage(`{"player":"jett"}`)),
		protocol.StatisticEntry(901.0, now, json.RawMessage(`{"kills":21}`)),
	}
	if err := st.AppendEntries(ctx, key, entries); err != nil {
		t.Fatalf("append failed: %v", err)
	}
}

func TestCreateBackupAndRestore(t *testing.T) {
	src := openStore(t)
	key := store.MatchKey{PackID: "valorpack", Subpack: 0, ExternalMatchID: "VAL_9001"}
	seedMatch(t, src, key)

	cfg := testConfig(t)
	mgr, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}

	ctx := context.Background()
	rec, err := mgr.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if rec.SizeBytes == 0 {
		t.Error("archive size is zero")
	}
	if rec.Checksum == "" {
		t.Error("checksum is empty")
	}
	if !rec.Compressed {
		t.Error("archive should be compressed by default")
	}
	if !strings.HasSuffix(rec.File, ".bak.gz") {
		t.Errorf("unexpected archive name %q", rec.File)
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, rec.File)); err != nil {
		t.Fatalf("archive file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, rec.File+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	dst := openStore(t)
	if err := mgr.Restore(ctx, rec.ID, dst); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got, err := dst.GetMatch(ctx, key)
	if err != nil {
		t.Fatalf("restored match missing: %v", err)
	}
	if !got.IsInProgress {
		t.Error("restored match lost in-progress state")
	}
	res, err := dst.QueryTimeline(ctx, key, store.TimelineQuery{})
	if err != nil {
		t.Fatalf("restored timeline query failed: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 restored entries, got %d", len(res.Entries))
	}
}

func TestCreateBackupUncompressed(t *testing.T) {
	src := openStore(t)
	key := store.MatchKey{PackID: "valorpack", Subpack: 0, ExternalMatchID: "VAL_9002"}
	seedMatch(t, src, key)

	cfg := testConfig(t)
	cfg.Compress = false
	mgr, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}

	ctx := context.Background()
	rec, err := mgr.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if rec.Compressed {
		t.Error("record claims compression")
	}
	if !strings.HasSuffix(rec.File, ".bak") {
		t.Errorf("unexpected archive name %q", rec.File)
	}

	dst := openStore(t)
	if err := mgr.Restore(ctx, rec.ID, dst); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if _, err := dst.GetMatch(ctx, key); err != nil {
		t.Fatalf("restored match missing: %v", err)
	}
}

func TestCreateBackupWithoutSource(t *testing.T) {
	mgr, err := NewManager(testConfig(t), nil)
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}
	if _, err := mgr.CreateBackup(context.Background()); err == nil {
		t.Fatal("expected error from sourceless manager")
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	src := openStore(t)
	seedMatch(t, src, store.MatchKey{PackID: "valorpack", Subpack: 0, ExternalMatchID: "VAL_9003"})

	cfg := testConfig(t)
	mgr, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}

	ctx := context.Background()
	rec, err := mgr.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if err := mgr.Verify(rec.ID); err != nil {
		t.Fatalf("fresh archive should verify: %v", err)
	}

	// Truncate the archive to simulate a torn write.
	path := filepath.Join(cfg.Dir, rec.File)
	if err := os.Truncate(path, rec.SizeBytes/2); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}

	if err := mgr.Verify(rec.ID); err == nil {
		t.Error("expected checksum mismatch after truncation")
	}
	if err := mgr.Restore(ctx, rec.ID, openStore(t)); err == nil {
		t.Error("restore should refuse a corrupted archive")
	}
}

func TestManifestSurvivesRestart(t *testing.T) {
	src := openStore(t)
	seedMatch(t, src, store.MatchKey{PackID: "valorpack", Subpack: 0, ExternalMatchID: "VAL_9004"})

	cfg := testConfig(t)
	first, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}
	rec, err := first.CreateBackup(context.Background())
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	second, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("manager reopen failed: %v", err)
	}
	list := second.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 recorded backup after reload, got %d", len(list))
	}
	if list[0].ID != rec.ID {
		t.Errorf("reloaded record ID = %q, want %q", list[0].ID, rec.ID)
	}
	if _, err := second.Get(rec.ID); err != nil {
		t.Errorf("reloaded manifest missing backup: %v", err)
	}
}

func TestPruneEnforcesMaxCount(t *testing.T) {
	src := openStore(t)
	seedMatch(t, src, store.MatchKey{PackID: "valorpack", Subpack: 0, ExternalMatchID: "VAL_9005"})

	cfg := testConfig(t)
	cfg.Retain = RetentionPolicy{MinCount: 1, MaxCount: 2}
	mgr, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}

	ctx := context.Background()
	var recs []Record
	for i := 0; i < 4; i++ {
		rec, err := mgr.CreateBackup(ctx)
		if err != nil {
			t.Fatalf("backup %d failed: %v", i, err)
		}
		recs = append(recs, rec)
		// Manifest ordering is by CreatedAt; keep timestamps distinct.
		time.Sleep(5 * time.Millisecond)
	}

	removed, err := mgr.Prune(time.Now())
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 pruned, got %d", len(removed))
	}

	kept := mgr.List()
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(kept))
	}
	// Newest first: the last two created survive.
	if kept[0].ID != recs[3].ID || kept[1].ID != recs[2].ID {
		t.Error("prune kept the wrong backups")
	}
	for _, rec := range removed {
		if _, err := os.Stat(filepath.Join(cfg.Dir, rec.File)); !os.IsNotExist(err) {
			t.Errorf("pruned archive %s still on disk", rec.File)
		}
	}
	for _, rec := range kept {
		if _, err := os.Stat(filepath.Join(cfg.Dir, rec.File)); err != nil {
			t.Errorf("kept archive %s missing: %v", rec.File, err)
		}
	}
}

func TestRetentionSplit(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	age := func(d time.Duration) Record {
		return Record{ID: d.String(), CreatedAt: now.Add(-d)}
	}

	t.Run("min count overrides age", func(t *testing.T) {
		p := RetentionPolicy{MinCount: 2, MaxAgeDays: 1}
		records := []Record{age(72 * time.Hour), age(96 * time.Hour), age(120 * time.Hour)}
		keep, drop := p.split(records, now)
		if len(keep) != 2 || len(drop) != 1 {
			t.Fatalf("keep=%d drop=%d, want 2/1", len(keep), len(drop))
		}
		if drop[0].ID != (120 * time.Hour).String() {
			t.Errorf("dropped %s, want the oldest", drop[0].ID)
		}
	})

	t.Run("age limit", func(t *testing.T) {
		p := RetentionPolicy{MinCount: 1, MaxAgeDays: 2}
		records := []Record{age(1 * time.Hour), age(30 * time.Hour), age(80 * time.Hour)}
		keep, drop := p.split(records, now)
		if len(keep) != 2 || len(drop) != 1 {
			t.Fatalf("keep=%d drop=%d, want 2/1", len(keep), len(drop))
		}
	})

	t.Run("zero limits keep everything", func(t *testing.T) {
		p := RetentionPolicy{MinCount: 1}
		records := []Record{age(time.Hour), age(24 * 400 * time.Hour)}
		keep, drop := p.split(records, now)
		if len(keep) != 2 || len(drop) != 0 {
			t.Fatalf("keep=%d drop=%d, want 2/0", len(keep), len(drop))
		}
	})

	t.Run("max count", func(t *testing.T) {
		p := RetentionPolicy{MinCount: 1, MaxCount: 2}
		records := []Record{age(1 * time.Hour), age(2 * time.Hour), age(3 * time.Hour), age(4 * time.Hour)}
		keep, drop := p.split(records, now)
		if len(keep) != 2 || len(drop) != 2 {
			t.Fatalf("keep=%d drop=%d, want 2/2", len(keep), len(drop))
		}
	})
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		name          string
		interval      time.Duration
		preferredHour int
		now           time.Time
		want          time.Time
	}{
		{
			name:          "short interval counts from now",
			interval:      6 * time.Hour,
			preferredHour: 3,
			now:           time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
			want:          time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC),
		},
		{
			name:          "daily before preferred hour",
			interval:      24 * time.Hour,
			preferredHour: 3,
			now:           time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC),
			want:          time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
		},
		{
			name:          "daily after preferred hour",
			interval:      24 * time.Hour,
			preferredHour: 3,
			now:           time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
			want:          time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC),
		},
		{
			name:          "daily exactly at preferred hour waits a day",
			interval:      24 * time.Hour,
			preferredHour: 3,
			now:           time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
			want:          time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC),
		},
		{
			name:          "two day interval",
			interval:      48 * time.Hour,
			preferredHour: 3,
			now:           time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
			want:          time.Date(2026, 3, 12, 3, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manager{cfg: Config{Interval: tt.interval, PreferredHour: tt.preferredHour}}
			got := m.nextRun(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("nextRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestServeParksWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	mgr, err := NewManager(cfg, nil)
	if err != nil {
		t.Fatalf("manager creation failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
