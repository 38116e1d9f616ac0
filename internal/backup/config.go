// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package backup

import (
	"fmt"
	"time"
)

// Config holds backup settings.
type Config struct {
	// Enabled turns the backup subsystem on. When false the daemon
	// runs without any backup service.
	Enabled bool `koanf:"enabled"`

	// Dir is the directory archives and the manifest live in.
	Dir string `koanf:"dir"`

	// Interval between scheduled backups.
	Interval time.Duration `koanf:"interval"`

	// PreferredHour is the local hour scheduled backups aim for when
	// Interval is a day or longer.
	PreferredHour int `koanf:"preferred_hour"`

	// Compress gzips archives as they are written.
	Compress bool `koanf:"compress"`

	// Retain is the pruning policy applied after each scheduled run.
	Retain RetentionPolicy `koanf:"retain"`
}

// RetentionPolicy bounds how many archives a prune leaves behind.
type RetentionPolicy struct {
	// MinCount backups are always kept, regardless of age.
	MinCount int `koanf:"min_count"`

	// MaxCount caps the total number of backups. Zero means no cap.
	MaxCount int `koanf:"max_count"`

	// MaxAgeDays removes backups older than this. Zero means no age
	// limit.
	MaxAgeDays int `koanf:"max_age_days"`
}

// DefaultConfig returns production defaults. Backups are opt-in.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		Dir:           "/data/backups",
		Interval:      24 * time.Hour,
		PreferredHour: 3,
		Compress:      true,
		Retain: RetentionPolicy{
			MinCount:   3,
			MaxCount:   30,
			MaxAgeDays: 90,
		},
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Dir == "" {
		return fmt.Errorf("backup: dir is required when backups are enabled")
	}
	if c.Interval < time.Hour {
		return fmt.Errorf("backup: interval must be at least 1h, got %s", c.Interval)
	}
	if c.PreferredHour < 0 || c.PreferredHour > 23 {
		return fmt.Errorf("backup: preferred_hour must be between 0 and 23, got %d", c.PreferredHour)
	}
	if c.Retain.MinCount < 1 {
		return fmt.Errorf("backup: retain.min_count must be at least 1")
	}
	if c.Retain.MaxCount > 0 && c.Retain.MaxCount < c.Retain.MinCount {
		return fmt.Errorf("backup: retain.max_count %d is below retain.min_count %d",
			c.Retain.MaxCount, c.Retain.MinCount)
	}
	if c.Retain.MaxAgeDays < 0 {
		return fmt.Errorf("backup: retain.max_age_days must not be negative")
	}
	return nil
}
