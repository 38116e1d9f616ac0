// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package config

import (
	"sort"
	"time"

	"github.com/matchkeeper/matchkeeper/internal/backup"
	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/recovery"
	"github.com/matchkeeper/matchkeeper/internal/schema"
	"github.com/matchkeeper/matchkeeper/internal/store"
	"github.com/matchkeeper/matchkeeper/internal/transport"
)

// Config is the daemon's full configuration tree. Values compose in
// three layers: built-in defaults, then an optional YAML file, then
// environment variables.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   LoggingConfig    `koanf:"logging"`
	Capture   CaptureConfig    `koanf:"capture"`
	Store     store.Config     `koanf:"store"`
	Transport transport.Config `koanf:"transport"`
	Recovery  recovery.Config  `koanf:"recovery"`
	Backup    backup.Config    `koanf:"backup"`

	// Packs declares the known gamepacks and their subpack stat schemas.
	// File-only: the environment cannot express nested pack tables.
	Packs []PackConfig `koanf:"packs" validate:"dive"`
}

// ServerConfig holds the operational HTTP API settings.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RateLimitRequests per RateLimitWindow, applied per client IP.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`

	// DefaultPageSize and MaxPageSize bound list endpoints.
	DefaultPageSize int `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int `koanf:"max_page_size" validate:"min=1"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// LoggerConfig converts to the logging package's Config.
func (l LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     l.Level,
		Format:    l.Format,
		Caller:    l.Caller,
		Timestamp: true,
	}
}

// CaptureConfig holds the default clip capture window advertised to
// gamepacks at registration. Individual events may override both sides.
type CaptureConfig struct {
	// PreSecs is recorded before the event timestamp.
	PreSecs float64 `koanf:"pre_secs" validate:"gte=0"`

	// PostSecs is recorded after the event timestamp.
	PostSecs float64 `koanf:"post_secs" validate:"gte=0"`
}

// PackConfig declares one gamepack and its stat schemas.
type PackConfig struct {
	// ID is the stable gamepack identifier packs register with.
	ID string `koanf:"id" validate:"required"`

	// Name is an optional display name for the operational API.
	Name string `koanf:"name"`

	Subpacks []SubpackConfig `koanf:"subpacks" validate:"min=1,dive"`
}

// SubpackConfig declares the stat columns of one subpack.
type SubpackConfig struct {
	// Index is the subpack discriminator within the pack.
	Index uint8 `koanf:"index"`

	// Columns maps column name to type: int, float, string, bool or json.
	Columns map[string]string `koanf:"columns" validate:"min=1"`
}

// DefaultConfig returns the built-in defaults. No packs are declared;
// those come from the config file.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              7251,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			DefaultPageSize:   20,
			MaxPageSize:       100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Capture: CaptureConfig{
			PreSecs:  8,
			PostSecs: 4,
		},
		Store:     store.DefaultConfig(),
		Transport: transport.DefaultConfig(),
		Recovery:  recovery.DefaultConfig(),
		Backup:    backup.DefaultConfig(),
	}
}

// BuildSchemaRegistry constructs the column registry from the declared
// packs. Registration re-checks column names and types, so a config
// that passed Validate cannot fail here.
func (c *Config) BuildSchemaRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, pack := range c.Packs {
		for _, sub := range pack.Subpacks {
			columns := make(map[string]schema.ColumnType, len(sub.Columns))
			for name, ct := range sub.Columns {
				columns[name] = schema.ColumnType(ct)
			}
			if err := reg.Register(pack.ID, sub.Index, columns); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

// PackIDs returns the declared pack IDs in sorted order.
func (c *Config) PackIDs() []string {
	ids := make([]string, 0, len(c.Packs))
	for _, pack := range c.Packs {
		ids = append(ids, pack.ID)
	}
	sort.Strings(ids)
	return ids
}
