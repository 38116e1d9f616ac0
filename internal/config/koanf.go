// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/matchkeeper/config.yaml",
	"/etc/matchkeeper/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file (if one exists)
//  3. Environment variables
//
// Precedence is ENV > file > defaults. The result is validated before
// being returned.
func Load() (*Config, error) {
	return LoadFrom(FindConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path
// skips the file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile returns the first config file that exists, or empty
// string when none does. Exposed so callers can watch the same file
// Load reads.
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables return empty string and are skipped, so
// unrelated environment noise never lands in the config tree.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - STORE_PATH -> store.path
//   - NATS_URL -> transport.nats.url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Operational API server
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_idle_timeout":     "server.idle_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",
		"rate_limit_requests":   "server.rate_limit_requests",
		"rate_limit_window":     "server.rate_limit_window",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Default clip capture window
		"capture_pre_secs":  "capture.pre_secs",
		"capture_post_secs": "capture.post_secs",

		// Match store
		"store_path":           "store.path",
		"store_sync_writes":    "store.sync_writes",
		"store_compression":    "store.compression",
		"store_gc_interval":    "store.gc_interval",
		"store_gc_ratio":       "store.gc_ratio",
		"store_num_compactors": "store.num_compactors",

		// Transport
		"transport_mode":            "transport.mode",
		"transport_request_timeout": "transport.request_timeout",
		"transport_buffer_size":     "transport.buffer_size",
		"nats_url":                  "transport.nats.url",
		"nats_embedded":             "transport.nats.embedded",
		"nats_host":                 "transport.nats.host",
		"nats_port":                 "transport.nats.port",
		"nats_store_dir":            "transport.nats.store_dir",
		"nats_durable_name":         "transport.nats.durable_name",
		"nats_queue_group":          "transport.nats.queue_group",
		"nats_max_deliver":          "transport.nats.max_deliver",
		"router_poison_topic":       "transport.router.poison_topic",
		"router_retry_max_retries":  "transport.router.retry_max_retries",

		// Crash recovery
		"recovery_interval":       "recovery.interval",
		"recovery_startup_delay":  "recovery.startup_delay",
		"recovery_query_timeout":  "recovery.query_timeout",
		"recovery_max_concurrent": "recovery.max_concurrent_verifies",
		"recovery_qps":            "recovery.queries_per_second",
		"recovery_query_burst":    "recovery.query_burst",

		// Store backups
		"backup_enabled":             "backup.enabled",
		"backup_dir":                 "backup.dir",
		"backup_interval":            "backup.interval",
		"backup_preferred_hour":      "backup.preferred_hour",
		"backup_compress":            "backup.compress",
		"backup_retention_min_count": "backup.retain.min_count",
		"backup_retention_max_count": "backup.retain.max_count",
		"backup_retention_max_days":  "backup.retain.max_age_days",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped. Pack schemas in particular are
	// file-only; they cannot be expressed through flat variables.
	return ""
}

// WatchConfigFile invokes callback whenever the file at path changes.
// The callback reloads and swaps the configuration itself; watch errors
// on individual events are dropped so a transient editor rename does
// not kill the watcher.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
