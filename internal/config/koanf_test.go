// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

const sampleYAML = `
server:
  port: 9090
logging:
  level: debug
  format: console
capture:
  pre_secs: 12.5
  post_secs: 6
recovery:
  interval: 10m
packs:
  - id: rocketpack
    name: Rocket League
    subpacks:
      - index: 0
        columns:
          goals: int
          saves: int
  - id: chesspack
    subpacks:
      - index: 0
        columns:
          elo_delta: int
`

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	cfg, err := LoadFrom(writeConfigFile(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadFrom() = %v, want nil", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v, want debug/console", cfg.Logging)
	}
	if cfg.Capture.PreSecs != 12.5 || cfg.Capture.PostSecs != 6 {
		t.Errorf("Capture = %+v, want 12.5/6", cfg.Capture)
	}
	if cfg.Recovery.Interval != 10*time.Minute {
		t.Errorf("Recovery.Interval = %v, want 10m", cfg.Recovery.Interval)
	}

	// Untouched sections keep their defaults.
	def := DefaultConfig()
	if cfg.Server.Host != def.Server.Host {
		t.Errorf("Server.Host = %q, want default %q", cfg.Server.Host, def.Server.Host)
	}
	if cfg.Store.Path != def.Store.Path {
		t.Errorf("Store.Path = %q, want default %q", cfg.Store.Path, def.Store.Path)
	}
	if cfg.Transport.Mode != def.Transport.Mode {
		t.Errorf("Transport.Mode = %q, want default %q", cfg.Transport.Mode, def.Transport.Mode)
	}
}

func TestLoadFromParsesPackSchemas(t *testing.T) {
	cfg, err := LoadFrom(writeConfigFile(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadFrom() = %v, want nil", err)
	}

	if len(cfg.Packs) != 2 {
		t.Fatalf("len(Packs) = %d, want 2", len(cfg.Packs))
	}
	rocket := cfg.Packs[0]
	if rocket.ID != "rocketpack" || rocket.Name != "Rocket League" {
		t.Errorf("Packs[0] = %+v", rocket)
	}
	if len(rocket.Subpacks) != 1 || rocket.Subpacks[0].Index != 0 {
		t.Fatalf("rocket subpacks = %+v", rocket.Subpacks)
	}
	if rocket.Subpacks[0].Columns["goals"] != "int" {
		t.Errorf("goals column type = %q, want int", rocket.Subpacks[0].Columns["goals"])
	}

	reg, err := cfg.BuildSchemaRegistry()
	if err != nil {
		t.Fatalf("BuildSchemaRegistry() = %v, want nil", err)
	}
	if _, ok := reg.Columns("chesspack", 0); !ok {
		t.Error("chesspack subpack 0 missing from registry")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RECOVERY_INTERVAL", "45s")
	t.Setenv("CAPTURE_POST_SECS", "2.5")
	t.Setenv("BACKUP_ENABLED", "true")

	cfg, err := LoadFrom(writeConfigFile(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadFrom() = %v, want nil", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want env override warn", cfg.Logging.Level)
	}
	if cfg.Recovery.Interval != 45*time.Second {
		t.Errorf("Recovery.Interval = %v, want env override 45s", cfg.Recovery.Interval)
	}
	if cfg.Capture.PostSecs != 2.5 {
		t.Errorf("Capture.PostSecs = %v, want env override 2.5", cfg.Capture.PostSecs)
	}
	if !cfg.Backup.Enabled {
		t.Error("Backup.Enabled = false, want env override true")
	}

	// File values without env overrides survive.
	if cfg.Capture.PreSecs != 12.5 {
		t.Errorf("Capture.PreSecs = %v, want file value 12.5", cfg.Capture.PreSecs)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q, want file value console", cfg.Logging.Format)
	}
}

func TestUnmappedEnvVarsIgnored(t *testing.T) {
	t.Setenv("SERVER_PORT", "1234")   // not in the mapping table
	t.Setenv("MATCHKEEPER_FOO", "no") // unrelated noise

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() = %v, want nil", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestConfigPathEnvVarSelectsFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8412\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Server.Port != 8412 {
		t.Errorf("Server.Port = %d, want 8412 from CONFIG_PATH file", cfg.Server.Port)
	}
}

func TestLoadFromMissingFileFails(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadFrom(missing) = nil, want error")
	}
}

func TestLoadFromMalformedYAMLFails(t *testing.T) {
	path := writeConfigFile(t, "server: [this is not\n  a mapping\n")
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("LoadFrom(malformed) = nil, want error")
	}
}

func TestLoadFromValidatesResult(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: loud\n")
	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("LoadFrom(bad level) = nil, want validation error")
	}
}
