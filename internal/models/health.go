// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package models

import (
	"github.com/matchkeeper/matchkeeper/internal/recovery"
)

// HealthStatus is the full health report served by the API.
type HealthStatus struct {
	Status     string  `json:"status"`
	Version    string  `json:"version"`
	UptimeSecs float64 `json:"uptime_secs"`

	StoreConnected bool  `json:"store_connected"`
	Matches        int64 `json:"matches"`
	InProgress     int64 `json:"in_progress"`
	StoreSizeBytes int64 `json:"store_size_bytes"`

	ConfiguredPacks int `json:"configured_packs"`
	ConnectedPacks  int `json:"connected_packs"`

	RecoveryRunning  bool                 `json:"recovery_running"`
	LastRecoveryPass *recovery.PassReport `json:"last_recovery_pass,omitempty"`
}
