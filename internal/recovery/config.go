// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package recovery

import (
	"fmt"
	"time"
)

// Config holds recovery orchestrator settings.
type Config struct {
	// Interval between periodic passes.
	Interval time.Duration `koanf:"interval"`

	// StartupDelay before the first pass, giving packs time to
	// re-register after a daemon restart.
	StartupDelay time.Duration `koanf:"startup_delay"`

	// QueryTimeout bounds each liveness query.
	QueryTimeout time.Duration `koanf:"query_timeout"`

	// MaxConcurrentVerifies bounds verification fan-out within a pass.
	MaxConcurrentVerifies int `koanf:"max_concurrent_verifies"`

	// QueriesPerSecond paces liveness queries across all packs.
	QueriesPerSecond float64 `koanf:"queries_per_second"`

	// QueryBurst is the rate limiter's burst allowance.
	QueryBurst int `koanf:"query_burst"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:              2 * time.Minute,
		StartupDelay:          5 * time.Second,
		QueryTimeout:          5 * time.Second,
		MaxConcurrentVerifies: 8,
		QueriesPerSecond:      20,
		QueryBurst:            5,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval < time.Second {
		return fmt.Errorf("recovery: interval must be at least 1s")
	}
	if c.StartupDelay < 0 {
		return fmt.Errorf("recovery: startup_delay must not be negative")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("recovery: query_timeout must be positive")
	}
	if c.MaxConcurrentVerifies < 1 {
		return fmt.Errorf("recovery: max_concurrent_verifies must be at least 1")
	}
	if c.QueriesPerSecond <= 0 {
		return fmt.Errorf("recovery: queries_per_second must be positive")
	}
	if c.QueryBurst < 1 {
		return fmt.Errorf("recovery: query_burst must be at least 1")
	}
	return nil
}
