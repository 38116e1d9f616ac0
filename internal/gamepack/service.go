// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package gamepack

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/pipeline"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/store"
	"github.com/matchkeeper/matchkeeper/internal/transport"
)

// CaptureWindow is the default clip capture window advertised to packs
// at registration. Individual events may override either side.
type CaptureWindow struct {
	PreSecs  float64
	PostSecs float64
}

// Service is the daemon's RPC surface for gamepacks: session lifecycle,
// timeline reads, and legacy match submissions inbound; liveness
// queries outbound on behalf of recovery.
type Service struct {
	registry  *Registry
	timelines store.TimelineStore
	pipe      *pipeline.Pipeline
	requester *transport.Requester
	known     map[string]struct{}
	capture   CaptureWindow
}

// NewService builds the RPC service. knownPacks are the pack IDs the
// daemon consumes match data for; packs outside the set may still
// register, but get a warning that their telemetry topic has no
// consumer.
func NewService(
	registry *Registry,
	timelines store.TimelineStore,
	pipe *pipeline.Pipeline,
	requester *transport.Requester,
	knownPacks []string,
	capture CaptureWindow,
) *Service {
	known := make(map[string]struct{}, len(knownPacks))
	for _, p := range knownPacks {
		known[p] = struct{}{}
	}
	return &Service{
		registry:  registry,
		timelines: timelines,
		pipe:      pipe,
		requester: requester,
		known:     known,
		capture:   capture,
	}
}

// Attach registers the service's methods on the daemon responder.
func (s *Service) Attach(responder *transport.Responder) {
	responder.Handle(transport.MethodRegister, s.handleRegister)
	responder.Handle(transport.MethodDeregister, s.handleDeregister)
	responder.Handle(transport.MethodStatus, s.handleStatus)
	responder.Handle(transport.MethodGetMatchTimeline, s.handleTimeline)
	responder.Handle(transport.MethodMatchData, s.handleLegacyMatchData)
}

// registerAck is the daemon's reply to a successful registration. The
// capture defaults tell the pack how much footage to keep around an
// event when the event itself does not say.
type registerAck struct {
	ProtocolVersion        uint32  `json:"protocol_version"`
	DefaultPreCaptureSecs  float64 `json:"default_pre_capture_secs"`
	DefaultPostCaptureSecs float64 `json:"default_post_capture_secs"`
}

func (s *Service) handleRegister(ctx context.Context, peer string, payload []byte) ([]byte, error) {
	var init protocol.InitResponse
	if err := json.Unmarshal(payload, &init); err != nil {
		return nil, fmt.Errorf("decode init response: %w", err)
	}
	if peer != "" && peer != init.Slug {
		return nil, fmt.Errorf("peer %q registering as %q", peer, init.Slug)
	}

	if _, err := s.registry.Register(init); err != nil {
		return nil, err
	}
	if _, ok := s.known[init.Slug]; !ok {
		logging.Warn().
			Str("component", "gamepack").
			Str("pack", init.Slug).
			Msg("Registered pack has no configured schema; its match data topic is not consumed")
	}
	return json.Marshal(registerAck{
		ProtocolVersion:        protocol.Version,
		DefaultPreCaptureSecs:  s.capture.PreSecs,
		DefaultPostCaptureSecs: s.capture.PostSecs,
	})
}

func (s *Service) handleDeregister(ctx context.Context, peer string, payload []byte) ([]byte, error) {
	if peer == "" {
		return nil, errMissingPeer
	}
	s.registry.Deregister(peer)
	return nil, nil
}

func (s *Service) handleStatus(ctx context.Context, peer string, payload []byte) ([]byte, error) {
	if peer == "" {
		return nil, errMissingPeer
	}
	var status protocol.GameStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("decode game status: %w", err)
	}
	if err := s.registry.UpdateStatus(peer, status); err != nil {
		return nil, err
	}
	recordStatusUpdate(peer)
	return nil, nil
}

// handleTimeline answers a pack's timeline read. The query has no side
// effects; a restarted pack uses it to rebuild in-memory match state.
func (s *Service) handleTimeline(ctx context.Context, peer string, payload []byte) ([]byte, error) {
	if peer == "" {
		return nil, errMissingPeer
	}
	var req protocol.GetMatchTimelineRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode timeline request: %w", err)
	}

	res, err := s.timelines.QueryTimeline(ctx, store.Key(peer, req.Ref()), store.TimelineQuery{
		EntryTypes: req.EntryTypes,
		Limit:      int(req.Limit),
	})
	if err != nil {
		return nil, err
	}

	resp := protocol.GetMatchTimelineResponse{Found: res.Found, Entries: res.Entries}
	if resp.Entries == nil {
		resp.Entries = []protocol.TimelineEntry{}
	}
	return json.Marshal(resp)
}

// legacyAck is the daemon's reply to a legacy match data submission.
type legacyAck struct {
	ExternalMatchID string `json:"external_match_id"`
}

// handleLegacyMatchData converts a legacy end-of-game payload into the
// subpack message model: a synthesized match on subpack 0, the details
// preserved as a timeline event, completed as live fallback. Duplicate
// submissions create duplicate matches; legacy packs carry no match ID
// to deduplicate on.
func (s *Service) handleLegacyMatchData(ctx context.Context, peer string, payload []byte) ([]byte, error) {
	if peer == "" {
		return nil, errMissingPeer
	}
	var md protocol.MatchData
	if err := json.Unmarshal(payload, &md); err != nil {
		return nil, fmt.Errorf("decode match data: %w", err)
	}
	if md.GameSlug != "" && md.GameSlug != peer {
		return nil, fmt.Errorf("peer %q submitting match data for %q", peer, md.GameSlug)
	}

	id := "legacy-" + uuid.New().String()

	ws := protocol.NewWriteStats(0, id, nil).WithResult(md.Result)
	if err := s.pipe.Apply(ctx, peer, ws); err != nil {
		return nil, err
	}

	if len(md.Details) > 0 && !bytes.Equal(md.Details, []byte("null")) {
		ev := protocol.NewGameEvent("match_data", 0, md.Details)
		if err := s.pipe.Apply(ctx, peer, protocol.NewWriteEvents(0, id, []protocol.GameEvent{ev})); err != nil {
			return nil, err
		}
	}

	sc := protocol.NewSetComplete(0, id, protocol.SummarySourceLiveFallback)
	if err := s.pipe.Apply(ctx, peer, sc); err != nil {
		return nil, err
	}

	recordLegacyMatch(peer)
	logging.Info().
		Str("component", "gamepack").
		Str("pack", peer).
		Str("match", id).
		Str("result", md.Result).
		Msg("Legacy match data converted")
	return json.Marshal(legacyAck{ExternalMatchID: id})
}

// IsMatchInProgress asks the pack that owns a match whether it is still
// being played. Recovery calls this for every flagged candidate. A pack
// with no live session is unreachable; the caller leaves the candidate
// flagged and tries again next pass.
func (s *Service) IsMatchInProgress(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
	var resp protocol.IsMatchInProgressResponse
	if !s.registry.Connected(packID) {
		return resp, fmt.Errorf("pack %s: %w", packID, ErrPackUnreachable)
	}

	payload, err := json.Marshal(protocol.IsMatchInProgressRequest{
		Subpack:         ref.Subpack,
		ExternalMatchID: ref.ExternalMatchID,
	})
	if err != nil {
		return resp, fmt.Errorf("encode is_match_in_progress request: %w", err)
	}

	raw, err := s.requester.Request(ctx, packID, transport.MethodIsMatchInProgress, payload)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("decode is_match_in_progress response: %w", err)
	}
	return resp, nil
}

// ErrPackUnreachable is returned when a liveness query targets a pack
// with no live session.
var ErrPackUnreachable = errors.New("gamepack: pack unreachable")

var errMissingPeer = errors.New("request carries no peer identity")
