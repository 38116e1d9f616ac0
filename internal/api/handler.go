// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package api

import (
	"time"

	"github.com/matchkeeper/matchkeeper/internal/config"
	"github.com/matchkeeper/matchkeeper/internal/gamepack"
	"github.com/matchkeeper/matchkeeper/internal/recovery"
	"github.com/matchkeeper/matchkeeper/internal/schema"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// RecoveryStatus is the slice of the recovery orchestrator the API
// reports on. Nil is allowed; health then shows recovery as not
// running.
type RecoveryStatus interface {
	IsRunning() bool
	LastPass() (recovery.PassReport, bool)
}

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	config    *config.Config
	store     *store.Store
	schemas   *schema.Registry
	sessions  *gamepack.Registry
	recovery  RecoveryStatus
	version   string
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(cfg *config.Config, st *store.Store, schemas *schema.Registry, sessions *gamepack.Registry, rec RecoveryStatus, version string) *Handler {
	return &Handler{
		config:    cfg,
		store:     st,
		schemas:   schemas,
		sessions:  sessions,
		recovery:  rec,
		version:   version,
		startTime: time.Now(),
	}
}
