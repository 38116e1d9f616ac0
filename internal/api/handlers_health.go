// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package api

import (
	"net/http"
	"time"

	"github.com/matchkeeper/matchkeeper/internal/models"
)

// Health returns the full health report: store reachability and
// counts, configured versus connected packs, and the state of the
// recovery orchestrator.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	stats, statsErr := h.store.Stats(r.Context())
	storeConnected := statsErr == nil

	status := "healthy"
	if !storeConnected {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:          status,
		Version:         h.version,
		UptimeSecs:      time.Since(h.startTime).Seconds(),
		StoreConnected:  storeConnected,
		Matches:         stats.Matches,
		InProgress:      stats.InProgress,
		StoreSizeBytes:  stats.DBSizeBytes,
		ConfiguredPacks: len(h.config.Packs),
		ConnectedPacks:  h.sessions.Count(),
	}

	if h.recovery != nil {
		health.RecoveryRunning = h.recovery.IsRunning()
		if pass, ok := h.recovery.LastPass(); ok {
			health.LastRecoveryPass = &pass
		}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   health,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthLive is the liveness probe. It returns 200 whenever the
// process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady is the readiness probe. It returns 200 only when the
// store answers, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	_, statsErr := h.store.Stats(r.Context())
	ready := statsErr == nil

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"store_connected": ready,
			"ready_to_serve":  ready,
			"uptime":          time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
