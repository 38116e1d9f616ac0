// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matchkeeper/matchkeeper/internal/logging"
)

// Source is the slice of the store a backup reads from.
// Satisfied by *store.Store.
type Source interface {
	Backup(ctx context.Context, w io.Writer, since uint64) (uint64, error)
}

// Record describes one completed backup. Failed runs never enter the
// manifest; their partial files are removed on the spot.
type Record struct {
	// ID uniquely identifies the backup.
	ID string `json:"id"`

	// CreatedAt is when the backup started, in UTC.
	CreatedAt time.Time `json:"created_at"`

	// Duration of the backup run.
	Duration time.Duration `json:"duration_ms"`

	// File is the archive filename, relative to the backup directory.
	File string `json:"file"`

	// SizeBytes is the archive size on disk.
	SizeBytes int64 `json:"size_bytes"`

	// Checksum is the SHA-256 of the archive file, hex encoded.
	Checksum string `json:"checksum"`

	// Version is the store version the stream covers, as reported by
	// the store's backup call.
	Version uint64 `json:"version"`

	// Compressed reports whether the archive is gzipped.
	Compressed bool `json:"compressed"`
}

// manifest is the on-disk index of all backups in the directory.
type manifest struct {
	Records []Record   `json:"records"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// manifestFile is the index filename inside the backup directory.
const manifestFile = "manifest.json"

// Manager creates, prunes and restores store backups.
type Manager struct {
	cfg    Config
	source Source
	log    zerolog.Logger

	// mu guards the manifest and serializes backup runs.
	mu       sync.Mutex
	manifest manifest
}

// NewManager creates the manager, ensuring the backup directory exists
// and loading any manifest a previous process left behind. source may
// be nil for restore-only use.
func NewManager(cfg Config, source Source) (*Manager, error) {
	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("backup: create directory %s: %w", cfg.Dir, err)
		}
	}

	m := &Manager{
		cfg:    cfg,
		source: source,
		log:    logging.WithComponent("backup"),
	}
	if err := m.loadManifest(); err != nil {
		return nil, err
	}
	setRetained(len(m.manifest.Records))
	return m, nil
}

// CreateBackup streams a snapshot of the store into a new archive and
// records it in the manifest. Runs are serialized; a second caller
// blocks until the first finishes.
func (m *Manager) CreateBackup(ctx context.Context) (Record, error) {
	if m.source == nil {
		return Record{}, fmt.Errorf("backup: manager has no source")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	rec := Record{
		ID:         uuid.New().String(),
		CreatedAt:  start.UTC(),
		Compressed: m.cfg.Compress,
	}
	rec.File = archiveName(start, rec.ID, m.cfg.Compress)

	path := filepath.Join(m.cfg.Dir, rec.File)
	version, size, checksum, err := m.writeArchive(ctx, path)
	if err != nil {
		recordRunFailed()
		return Record{}, err
	}
	rec.Version = version
	rec.SizeBytes = size
	rec.Checksum = checksum
	rec.Duration = time.Since(start)

	m.manifest.Records = append(m.manifest.Records, rec)
	if err := m.saveManifestLocked(); err != nil {
		// The archive itself is intact; losing the manifest entry only
		// hides it from List and Restore until the next save.
		m.log.Warn().Err(err).Str("backup_id", rec.ID).Msg("Manifest save failed")
	}

	recordRunCompleted(start, size)
	setRetained(len(m.manifest.Records))
	return rec, nil
}

// writeArchive streams the store into path through a temp file, so a
// crash mid-backup never leaves a plausible-looking partial archive.
// The checksum covers the file bytes as stored, compressed or not.
func (m *Manager) writeArchive(ctx context.Context, path string) (version uint64, size int64, checksum string, err error) {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, 0, "", fmt.Errorf("backup: create archive: %w", err)
	}

	hash := sha256.New()
	sink := io.MultiWriter(f, hash)

	var w io.Writer = sink
	var gz *gzip.Writer
	if m.cfg.Compress {
		gz = gzip.NewWriter(sink)
		w = gz
	}

	version, err = m.source.Backup(ctx, w, 0)
	if err == nil && gz != nil {
		err = gz.Close()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("backup: close archive: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, 0, "", err
	}

	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return 0, 0, "", fmt.Errorf("backup: stat archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, 0, "", fmt.Errorf("backup: finalize archive: %w", err)
	}

	return version, info.Size(), hex.EncodeToString(hash.Sum(nil)), nil
}

// archiveName builds the timestamped archive filename.
func archiveName(start time.Time, id string, compressed bool) string {
	name := fmt.Sprintf("backup-%s-%s.bak", start.UTC().Format("20060102-150405"), id[:8])
	if compressed {
		name += ".gz"
	}
	return name
}

// List returns all recorded backups, newest first.
func (m *Manager) List() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, len(m.manifest.Records))
	copy(out, m.manifest.Records)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns one backup by ID.
func (m *Manager) Get(id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.manifest.Records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("backup: %s not found", id)
}

// loadManifest reads the manifest from disk. A missing file is a fresh
// directory, not an error.
func (m *Manager) loadManifest() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backup: read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m.manifest); err != nil {
		return fmt.Errorf("backup: parse manifest: %w", err)
	}
	return nil
}

// saveManifestLocked writes the manifest. Callers hold mu.
func (m *Manager) saveManifestLocked() error {
	data, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.cfg.Dir, manifestFile), data, 0o600); err != nil {
		return fmt.Errorf("backup: write manifest: %w", err)
	}
	return nil
}
