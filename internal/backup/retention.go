// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Prune removes archives that fall outside the retention policy and
// returns the records that were removed. The newest MinCount backups
// are immune to every other rule.
func (m *Manager) Prune(now time.Time) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep, drop := m.cfg.Retain.split(m.manifest.Records, now)
	if len(drop) == 0 {
		return nil, nil
	}

	for _, rec := range drop {
		path := filepath.Join(m.cfg.Dir, rec.File)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("backup: remove %s: %w", rec.File, err)
		}
	}

	m.manifest.Records = keep
	if err := m.saveManifestLocked(); err != nil {
		return nil, err
	}
	recordPruned(len(drop))
	setRetained(len(keep))
	return drop, nil
}

// split partitions records into kept and dropped under the policy.
// Rules, in order of precedence: the newest MinCount are always kept;
// anything beyond MaxCount is dropped; anything older than MaxAgeDays
// is dropped.
func (p RetentionPolicy) split(records []Record, now time.Time) (keep, drop []Record) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var ageCutoff time.Time
	if p.MaxAgeDays > 0 {
		ageCutoff = now.AddDate(0, 0, -p.MaxAgeDays)
	}

	for i, rec := range sorted {
		switch {
		case i < p.MinCount:
			keep = append(keep, rec)
		case p.MaxCount > 0 && i >= p.MaxCount:
			drop = append(drop, rec)
		case p.MaxAgeDays > 0 && rec.CreatedAt.Before(ageCutoff):
			drop = append(drop, rec)
		default:
			keep = append(keep, rec)
		}
	}
	return keep, drop
}
