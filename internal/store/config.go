// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package store

import (
	"time"
)

// Config holds store configuration. The config package populates it from
// file and environment.
type Config struct {
	// Path is the directory where BadgerDB stores its files. Must be on
	// a durable filesystem (not tmpfs): recovery depends on finding every
	// in-progress match here after a restart.
	Path string `koanf:"path"`

	// SyncWrites forces fsync after every write. Leave on unless write
	// throughput matters more than surviving power loss.
	SyncWrites bool `koanf:"sync_writes"`

	// Compression enables Snappy compression for stored values.
	Compression bool `koanf:"compression"`

	// GCInterval is the time between value log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCRatio is the rewrite threshold for value log GC. Lower values
	// reclaim more space at more CPU cost.
	GCRatio float64 `koanf:"gc_ratio"`

	// CloseTimeout bounds graceful shutdown; Close returns an error
	// instead of hanging past it.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// BadgerDB tuning.
	MemTableSize     int64 `koanf:"mem_table_size"`
	ValueLogFileSize int64 `koanf:"value_log_file_size"`
	NumCompactors    int   `koanf:"num_compactors"`
	BlockCacheSize   int64 `koanf:"block_cache_size"`
}

// DefaultConfig returns defaults that favor durability over throughput.
func DefaultConfig() Config {
	return Config{
		Path:             "/data/matchkeeper",
		SyncWrites:       true,
		Compression:      true,
		GCInterval:       30 * time.Minute,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		BlockCacheSize:   64 * 1024 * 1024,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "store path is required"}
	}
	if c.GCInterval < time.Minute {
		return &ConfigError{Field: "GCInterval", Message: "must be at least 1 minute"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	return nil
}

// ConfigError reports an invalid store configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "store config error: " + e.Field + ": " + e.Message
}
