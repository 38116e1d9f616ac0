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
)

// Target is the slice of the store a restore loads into.
// Satisfied by *store.Store.
type Target interface {
	Load(ctx context.Context, r io.Reader) error
}

// Restore verifies the archive's checksum and loads it into target.
// The target should be a fresh, empty store: stream entries keep their
// original versions, so newer data already in the target wins over the
// archive's contents.
func (m *Manager) Restore(ctx context.Context, id string, target Target) error {
	rec, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := m.Verify(id); err != nil {
		return err
	}

	path := filepath.Join(m.cfg.Dir, rec.File)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if rec.Compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("backup: open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := target.Load(ctx, r); err != nil {
		return err
	}

	m.log.Info().
		Str("backup_id", rec.ID).
		Str("file", rec.File).
		Msg("Backup restored")
	return nil
}

// Verify recomputes the archive's SHA-256 and compares it against the
// manifest. A mismatch means the file was truncated or altered after it
// was written.
func (m *Manager) Verify(id string) error {
	rec, err := m.Get(id)
	if err != nil {
		return err
	}

	path := filepath.Join(m.cfg.Dir, rec.File)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: open archive: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return fmt.Errorf("backup: read archive: %w", err)
	}

	got := hex.EncodeToString(hash.Sum(nil))
	if got != rec.Checksum {
		return fmt.Errorf("backup: %s failed checksum verification", id)
	}
	return nil
}
