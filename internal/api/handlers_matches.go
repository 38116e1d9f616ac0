// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matchkeeper/matchkeeper/internal/models"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// matchesRequest bounds the list query parameters.
type matchesRequest struct {
	Limit int `validate:"min=1"`
}

// timelineRequest bounds the timeline query parameters.
type timelineRequest struct {
	Limit int `validate:"min=0"`
}

// matchKeyFromRequest builds the store key from the URL parameters,
// rejecting subpacks outside the uint8 range.
func matchKeyFromRequest(r *http.Request) (store.MatchKey, *models.APIError) {
	subpackRaw := chi.URLParam(r, "subpack")
	subpack, err := strconv.ParseUint(subpackRaw, 10, 8)
	if err != nil {
		return store.MatchKey{}, &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("subpack must be an integer between 0 and 255, got %q", subpackRaw),
		}
	}
	return store.MatchKey{
		PackID:          chi.URLParam(r, "pack"),
		Subpack:         uint8(subpack),
		ExternalMatchID: chi.URLParam(r, "matchID"),
	}, nil
}

// Matches lists in-progress matches, newest update first.
//
// Query parameters:
//
//	pack  - restrict to one pack ID
//	stale - only matches recovery has flagged but not yet resolved
//	limit - page size, clamped to the configured maximum
func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	req := matchesRequest{
		Limit: getIntParam(r, "limit", h.config.Server.DefaultPageSize),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.Limit > h.config.Server.MaxPageSize {
		req.Limit = h.config.Server.MaxPageSize
	}

	recs, err := h.store.ListInProgress(r.Context(), r.URL.Query().Get("pack"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list matches", err)
		return
	}

	if getBoolParam(r, "stale", false) {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.VerifyAttempts > 0 {
				kept = append(kept, rec)
			}
		}
		recs = kept
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})
	if len(recs) > req.Limit {
		recs = recs[:req.Limit]
	}

	views := make([]models.MatchView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, models.NewMatchView(rec))
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   views,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
			Count:     len(views),
		},
	})
}

// Match returns a single stored match.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	key, apiErr := matchKeyFromRequest(r)
	if apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	rec, err := h.store.GetMatch(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrMatchNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Match not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load match", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   models.NewMatchView(rec),
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// Timeline returns a match's entries in append order. A match that was
// never created still answers 200 with found=false, the same shape the
// daemon gives packs over RPC.
//
// Query parameters:
//
//	types - comma-separated entry types to keep (default all)
//	limit - most recent N entries (default all)
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	key, apiErr := matchKeyFromRequest(r)
	if apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	req := timelineRequest{
		Limit: getIntParam(r, "limit", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	types := parseCommaSeparated(r.URL.Query().Get("types"))
	for _, t := range types {
		if !protocol.EntryType(t).Valid() {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("unknown entry type %q", t), nil)
			return
		}
	}

	res, err := h.store.QueryTimeline(r.Context(), key, store.TimelineQuery{
		EntryTypes: types,
		Limit:      req.Limit,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to query timeline", err)
		return
	}

	entries := res.Entries
	if entries == nil {
		entries = []protocol.TimelineEntry{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.TimelineView{
			Pack:            key.PackID,
			Subpack:         key.Subpack,
			ExternalMatchID: key.ExternalMatchID,
			Found:           res.Found,
			Entries:         entries,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
			Count:     len(entries),
		},
	})
}
