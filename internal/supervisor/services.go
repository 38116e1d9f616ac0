// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/matchkeeper/matchkeeper/internal/logging"
)

// Collector is the slice of the store the GC service drives.
// Satisfied by *store.Store.
type Collector interface {
	RunGC() error
	GCInterval() time.Duration
}

// GCService runs the store's value log garbage collection on the
// configured cadence.
type GCService struct {
	store Collector
	log   zerolog.Logger
}

// NewGCService creates the GC service.
func NewGCService(store Collector) *GCService {
	return &GCService{
		store: store,
		log:   logging.WithComponent("store-gc"),
	}
}

// Serve implements suture.Service.
func (s *GCService) Serve(ctx context.Context) error {
	interval := s.store.GCInterval()
	if interval <= 0 {
		// GC disabled; park until shutdown so suture does not spin.
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// A failed GC round is not fatal; the next tick retries.
			if err := s.store.RunGC(); err != nil {
				s.log.Warn().Err(err).Msg("Value log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's event log.
func (s *GCService) String() string {
	return "store-gc"
}

// MessageRouter is the slice of the transport router the router
// service runs. Satisfied by *transport.Router.
type MessageRouter interface {
	Run(ctx context.Context) error
}

// RouterService runs the watermill router, which carries every
// telemetry consumer and RPC responder handler.
type RouterService struct {
	router MessageRouter
}

// NewRouterService creates the router service. All handlers must be
// attached before the tree starts serving.
func NewRouterService(router MessageRouter) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service. It blocks inside the router until
// ctx is canceled.
func (s *RouterService) Serve(ctx context.Context) error {
	return s.router.Run(ctx)
}

// String implements fmt.Stringer for suture's event log.
func (s *RouterService) String() string {
	return "message-router"
}

// RecoveryRunner is the slice of the recovery orchestrator the
// recovery service drives. Satisfied by *recovery.Orchestrator.
type RecoveryRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// RecoveryService adapts the orchestrator's Start/Stop lifecycle to a
// blocking Serve.
type RecoveryService struct {
	orchestrator RecoveryRunner
}

// NewRecoveryService creates the recovery service.
func NewRecoveryService(orchestrator RecoveryRunner) *RecoveryService {
	return &RecoveryService{orchestrator: orchestrator}
}

// Serve implements suture.Service.
func (s *RecoveryService) Serve(ctx context.Context) error {
	if err := s.orchestrator.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.orchestrator.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's event log.
func (s *RecoveryService) String() string {
	return "recovery"
}
