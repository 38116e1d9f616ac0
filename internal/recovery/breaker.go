// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package recovery

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/matchkeeper/matchkeeper/internal/gamepack"
	"github.com/matchkeeper/matchkeeper/internal/logging"
)

// breakerPool holds one circuit breaker per gamepack. A pack that stops
// answering liveness queries trips only its own breaker; verification of
// matches on other packs continues unaffected.
type breakerPool struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[interface{}]
}

func newBreakerPool() *breakerPool {
	return &breakerPool{breakers: make(map[string]*gobreaker.CircuitBreaker[interface{}])}
}

// get returns the breaker for a pack, creating it on first use.
func (p *breakerPool) get(packID string) *gobreaker.CircuitBreaker[interface{}] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.breakers[packID]; ok {
		return cb
	}

	name := "recovery-" + packID
	setBreakerState(packID, gobreaker.StateClosed)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,               // Allow 3 requests through in half-open state
		Interval:    time.Minute,     // Reset counts after 1 minute in closed state
		Timeout:     2 * time.Minute, // Wait 2 minutes before transitioning from open to half-open

		// Opens when failure rate >= 60% with minimum 10 requests
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Str("component", "recovery").
					Str("pack_id", packID).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("component", "recovery").
				Str("pack_id", packID).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			setBreakerState(packID, to)
		},

		// No query is sent to an unreachable pack, so it neither counts as
		// a failure nor trips the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, gamepack.ErrPackUnreachable)
		},
	})

	p.breakers[packID] = cb
	return cb
}

// breakerRejected reports whether the error came from the breaker itself
// rather than from the query it guarded.
func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
