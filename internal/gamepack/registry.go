// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package gamepack

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
)

// Session is a live gamepack connection as the daemon sees it.
type Session struct {
	// PackID is the pack's slug and bus peer name.
	PackID string

	// GameID is the game's numeric identifier.
	GameID int32

	// ProtocolVersion the pack registered with.
	ProtocolVersion uint32

	// ConnectedAt is when the current session registered.
	ConnectedAt time.Time

	// LastSeen is the last time anything arrived from the pack:
	// a status report, a heartbeat, or match data.
	LastSeen time.Time

	// Status is the pack's last reported game connection status.
	// Zero value until the first report; check StatusAt.
	Status protocol.GameStatus

	// StatusAt is when Status was reported; zero if never.
	StatusAt time.Time
}

// Registry tracks live gamepack sessions by pack ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register establishes a session from a pack's InitResponse. A pack
// that registers again replaces its previous session; that is the
// normal path for a restarted pack. Packs speaking a different protocol
// revision are refused.
func (r *Registry) Register(init protocol.InitResponse) (Session, error) {
	if init.Slug == "" {
		return Session{}, ErrEmptySlug
	}
	if init.ProtocolVersion != protocol.Version {
		return Session{}, fmt.Errorf("pack %s speaks protocol %d, daemon speaks %d: %w",
			init.Slug, init.ProtocolVersion, protocol.Version, ErrVersionMismatch)
	}

	now := time.Now().UTC()
	s := &Session{
		PackID:          init.Slug,
		GameID:          init.GameID,
		ProtocolVersion: init.ProtocolVersion,
		ConnectedAt:     now,
		LastSeen:        now,
	}

	r.mu.Lock()
	_, replaced := r.sessions[init.Slug]
	r.sessions[init.Slug] = s
	total := len(r.sessions)
	r.mu.Unlock()

	setSessions(total)
	logging.Info().
		Str("component", "gamepack").
		Str("pack", init.Slug).
		Int32("game_id", init.GameID).
		Bool("replaced", replaced).
		Msg("Gamepack registered")
	return *s, nil
}

// Deregister removes a pack's session. Reports whether one existed.
func (r *Registry) Deregister(packID string) bool {
	r.mu.Lock()
	_, ok := r.sessions[packID]
	delete(r.sessions, packID)
	total := len(r.sessions)
	r.mu.Unlock()

	if ok {
		setSessions(total)
		logging.Info().
			Str("component", "gamepack").
			Str("pack", packID).
			Msg("Gamepack deregistered")
	}
	return ok
}

// UpdateStatus records a pack's game connection status and refreshes
// its liveness. Returns ErrUnknownPack for a pack with no session.
func (r *Registry) UpdateStatus(packID string, status protocol.GameStatus) error {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[packID]
	if !ok {
		return fmt.Errorf("pack %s: %w", packID, ErrUnknownPack)
	}
	s.Status = status
	s.StatusAt = now
	s.LastSeen = now
	return nil
}

// Touch refreshes a pack's liveness without changing its status. Match
// data arriving on the pack's topic counts as proof of life.
func (r *Registry) Touch(packID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[packID]; ok {
		s.LastSeen = time.Now().UTC()
	}
}

// Get returns a copy of the pack's session.
func (r *Registry) Get(packID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[packID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Connected reports whether the pack has a live session. Recovery
// queries only connected packs; the rest stay flagged for later.
func (r *Registry) Connected(packID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[packID]
	return ok
}

// List returns copies of all sessions, sorted by pack ID.
func (r *Registry) List() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PackID < out[j].PackID })
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ErrEmptySlug is returned when an InitResponse carries no slug.
var ErrEmptySlug = errors.New("gamepack: empty slug")

// ErrVersionMismatch is returned when a pack registers with a protocol
// revision the daemon does not speak.
var ErrVersionMismatch = errors.New("gamepack: protocol version mismatch")

// ErrUnknownPack is returned for operations on a pack with no session.
var ErrUnknownPack = errors.New("gamepack: unknown pack")
