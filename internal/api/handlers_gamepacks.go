// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/matchkeeper/matchkeeper/internal/models"
)

// Gamepacks lists every pack the daemon knows about: configured packs
// with their schema subpacks, merged with live sessions from the
// registry. A session for a pack that has no schema still shows up,
// marked registered but with no subpacks.
func (h *Handler) Gamepacks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	byID := make(map[string]*models.GamepackView)
	for _, pack := range h.config.Packs {
		byID[pack.ID] = &models.GamepackView{
			ID:       pack.ID,
			Name:     pack.Name,
			Subpacks: h.schemas.Subpacks(pack.ID),
		}
	}

	for _, session := range h.sessions.List() {
		view, ok := byID[session.PackID]
		if !ok {
			view = &models.GamepackView{ID: session.PackID}
			byID[session.PackID] = view
		}
		view.Registered = true
		sv := models.NewSessionView(session)
		view.Session = &sv
	}

	views := make([]models.GamepackView, 0, len(byID))
	for _, view := range byID {
		views = append(views, *view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   views,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
			Count:     len(views),
		},
	})
}
