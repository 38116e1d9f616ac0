// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package backup

import (
	"context"
	"time"
)

// Serve implements suture.Service. It creates a backup on the
// configured interval and prunes afterwards, until ctx is canceled.
func (m *Manager) Serve(ctx context.Context) error {
	if !m.cfg.Enabled {
		// Disabled; park until shutdown so suture does not spin.
		<-ctx.Done()
		return ctx.Err()
	}

	next := m.nextRun(time.Now())
	m.noteSchedule(nil, &next)
	m.log.Info().Time("next_run", next).Msg("Backup scheduler started")

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			rec, err := m.CreateBackup(ctx)
			if err != nil {
				m.log.Error().Err(err).Msg("Scheduled backup failed")
			} else {
				m.log.Info().
					Str("backup_id", rec.ID).
					Str("file", rec.File).
					Int64("size_bytes", rec.SizeBytes).
					Dur("duration", rec.Duration).
					Msg("Scheduled backup completed")
			}

			if removed, err := m.Prune(time.Now()); err != nil {
				m.log.Error().Err(err).Msg("Backup prune failed")
			} else if len(removed) > 0 {
				m.log.Info().Int("removed", len(removed)).Msg("Old backups pruned")
			}

			last := time.Now()
			next = m.nextRun(last)
			m.noteSchedule(&last, &next)
			timer.Reset(time.Until(next))
		}
	}
}

// String implements fmt.Stringer for suture's event log.
func (m *Manager) String() string {
	return "backup"
}

// nextRun determines when the next scheduled backup should start. For
// intervals of a day or longer the run is pinned to PreferredHour;
// shorter intervals just count from now.
func (m *Manager) nextRun(now time.Time) time.Time {
	interval := m.cfg.Interval

	if interval >= 24*time.Hour {
		next := time.Date(now.Year(), now.Month(), now.Day(),
			m.cfg.PreferredHour, 0, 0, 0, now.Location())

		// Already past the preferred hour today; start counting from
		// tomorrow's occurrence.
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		if interval > 24*time.Hour {
			days := int(interval.Hours() / 24)
			next = next.Add(time.Duration(days-1) * 24 * time.Hour)
		}
		return next
	}

	return now.Add(interval)
}

// noteSchedule records the last and next run in the manifest, so the
// schedule survives a restart and shows up in the backup directory.
func (m *Manager) noteSchedule(last, next *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last != nil {
		m.manifest.LastRun = last
	}
	m.manifest.NextRun = next
	if err := m.saveManifestLocked(); err != nil {
		m.log.Warn().Err(err).Msg("Manifest save failed")
	}
}
