// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/matchkeeper/matchkeeper/internal/gamepack"
	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// Verifier asks a gamepack whether a match is still running. Implemented
// by gamepack.Service.
type Verifier interface {
	IsMatchInProgress(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error)
}

// Applier applies a match data message through the write pipeline.
// Implemented by pipeline.Pipeline.
type Applier interface {
	Apply(ctx context.Context, packID string, msg protocol.MatchDataMessage) error
}

// Orchestrator periodically sweeps in-progress matches and verifies them
// with their gamepacks, finalizing the ones whose game has ended.
type Orchestrator struct {
	cfg      Config
	matches  store.MatchStore
	verifier Verifier
	applier  Applier

	limiter  *rate.Limiter
	breakers *breakerPool

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	lastPass *PassReport
}

// NewOrchestrator creates a recovery orchestrator.
func NewOrchestrator(cfg Config, matches store.MatchStore, verifier Verifier, applier Applier) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:      cfg,
		matches:  matches,
		verifier: verifier,
		applier:  applier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), cfg.QueryBurst),
		breakers: newBreakerPool(),
	}, nil
}

// Start begins the periodic verification sweep.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("recovery orchestrator is already running")
	}
	o.running = true
	o.stopChan = make(chan struct{})
	o.mu.Unlock()

	logging.Info().
		Dur("interval", o.cfg.Interval).
		Dur("startup_delay", o.cfg.StartupDelay).
		Int("max_concurrent", o.cfg.MaxConcurrentVerifies).
		Msg("Starting recovery orchestrator")

	o.wg.Add(1)
	go o.run(ctx)
	return nil
}

// Stop halts the sweep and waits for in-flight work to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stopChan)
	o.mu.Unlock()

	o.wg.Wait()
	logging.Info().Msg("Recovery orchestrator stopped")
}

// IsRunning reports whether the sweep loop is active.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// LastPass returns the most recent pass report, if any pass has run.
func (o *Orchestrator) LastPass() (PassReport, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastPass == nil {
		return PassReport{}, false
	}
	return *o.lastPass, true
}

func (o *Orchestrator) run(ctx context.Context) {
	defer o.wg.Done()

	// Let gamepacks reconnect after a restart before asking them about
	// matches that were live when the daemon went down.
	if o.cfg.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-o.stopChan:
			return
		case <-time.After(o.cfg.StartupDelay):
		}
	}

	o.pass(ctx)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopChan:
			return
		case <-ticker.C:
			o.pass(ctx)
		}
	}
}

func (o *Orchestrator) pass(ctx context.Context) {
	report, err := o.RunPass(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Recovery pass failed")
		return
	}
	if report.Candidates == 0 {
		return
	}
	logging.Info().
		Int("candidates", report.Candidates).
		Int("confirmed", report.Confirmed).
		Int("finalized", report.Finalized).
		Int("unreachable", report.Unreachable).
		Int("timed_out", report.TimedOut).
		Int("skipped", report.Skipped).
		Int("errors", report.Errors).
		Dur("duration", report.Duration).
		Msg("Recovery pass completed")
}

// RunPass sweeps every in-progress match once and returns the report.
// Verifications run concurrently, bounded by MaxConcurrentVerifies and
// paced by the query rate limit.
func (o *Orchestrator) RunPass(ctx context.Context) (PassReport, error) {
	start := time.Now().UTC()

	records, err := o.matches.ListInProgress(ctx, "")
	if err != nil {
		return PassReport{}, fmt.Errorf("list in-progress matches: %w", err)
	}

	report := PassReport{StartedAt: start, Candidates: len(records)}

	if len(records) > 0 {
		var (
			reportMu sync.Mutex
			workers  sync.WaitGroup
			sem      = make(chan struct{}, o.cfg.MaxConcurrentVerifies)
		)

	sweep:
		for _, rec := range records {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break sweep
			}

			workers.Add(1)
			go func(rec *store.MatchRecord) {
				defer workers.Done()
				defer func() { <-sem }()

				outcome := o.verify(ctx, rec)

				reportMu.Lock()
				switch outcome {
				case outcomeConfirmed:
					report.Confirmed++
				case outcomeFinalized:
					report.Finalized++
				case outcomeUnreachable:
					report.Unreachable++
				case outcomeTimeout:
					report.TimedOut++
				case outcomeSkipped:
					report.Skipped++
				default:
					report.Errors++
				}
				reportMu.Unlock()
			}(rec)
		}
		workers.Wait()
	}

	report.Duration = time.Since(start)
	recordPass(report.Duration)
	setFlagged(report.Flagged())

	o.mu.Lock()
	o.lastPass = &report
	o.mu.Unlock()

	return report, nil
}

// verify resolves one candidate and returns its outcome label.
func (o *Orchestrator) verify(ctx context.Context, rec *store.MatchRecord) string {
	key := rec.Key()

	if err := o.limiter.Wait(ctx); err != nil {
		return outcomeError
	}

	cand := newCandidate(rec)
	cand.transition(StateVerifying)

	qctx, cancel := context.WithTimeout(ctx, o.cfg.QueryTimeout)
	defer cancel()

	cb := o.breakers.get(key.PackID)
	result, err := cb.Execute(func() (interface{}, error) {
		resp, err := o.verifier.IsMatchInProgress(qctx, key.PackID, key.Ref())
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return o.verifyFailed(ctx, cand, err)
	}

	resp, ok := result.(protocol.IsMatchInProgressResponse)
	if !ok {
		logging.Error().Str("match", key.String()).Msgf("unexpected verifier result type %T", result)
		recordVerification(key.PackID, outcomeError)
		return outcomeError
	}

	if resp.StillPlaying {
		cand.transition(StateConfirmed)
		o.markConfirmed(ctx, key)
		recordVerification(key.PackID, outcomeConfirmed)
		return outcomeConfirmed
	}

	return o.finalize(ctx, cand, resp.SetComplete)
}

// verifyFailed classifies a failed verification. Only timeouts and real
// query errors count as attempts; a skipped or unanswerable query does
// not, because nothing was actually asked.
func (o *Orchestrator) verifyFailed(ctx context.Context, cand *candidate, err error) string {
	key := cand.rec.Key()

	switch {
	case breakerRejected(err):
		cand.transition(StateFlagged)
		logging.Debug().Str("match", key.String()).Msg("Verification skipped, circuit open")
		recordVerification(key.PackID, outcomeSkipped)
		return outcomeSkipped

	case errors.Is(err, gamepack.ErrPackUnreachable):
		cand.transition(StateFlagged)
		logging.Debug().Str("match", key.String()).Msg("Pack not connected, match stays flagged")
		recordVerification(key.PackID, outcomeUnreachable)
		return outcomeUnreachable

	case ctx.Err() != nil:
		// The daemon is shutting down; leave the record alone.
		recordVerification(key.PackID, outcomeError)
		return outcomeError

	case errors.Is(err, context.DeadlineExceeded):
		cand.transition(StateFlagged)
		logging.Warn().Err(fmt.Errorf("%w: %v", ErrRecoveryTimeout, err)).
			Str("match", key.String()).
			Int("attempts", cand.rec.VerifyAttempts+1).
			Msg("Verification timed out")
		o.bumpAttempts(ctx, key)
		recordVerification(key.PackID, outcomeTimeout)
		return outcomeTimeout

	default:
		cand.transition(StateFlagged)
		logging.Warn().Err(err).
			Str("match", key.String()).
			Int("attempts", cand.rec.VerifyAttempts+1).
			Msg("Verification failed")
		o.bumpAttempts(ctx, key)
		recordVerification(key.PackID, outcomeError)
		return outcomeError
	}
}

// finalize completes a match the pack reported as ended. When the pack
// embedded a completion it is applied as-is; otherwise the match is
// closed as a live fallback with whatever summary the timeline already
// produced. Recovery never invents final stats.
func (o *Orchestrator) finalize(ctx context.Context, cand *candidate, sc *protocol.SetComplete) string {
	key := cand.rec.Key()

	if sc != nil && sc.Ref() != key.Ref() {
		cand.transition(StateFlagged)
		logging.Warn().
			Str("match", key.String()).
			Str("completion_match", sc.ExternalMatchID).
			Msg("Pack answered with a completion for a different match")
		o.bumpAttempts(ctx, key)
		recordVerification(key.PackID, outcomeError)
		return outcomeError
	}

	embedded := sc != nil
	if sc == nil {
		fallback := protocol.NewSetComplete(key.Subpack, key.ExternalMatchID, protocol.SummarySourceLiveFallback)
		sc = &fallback
	}

	if err := o.applier.Apply(ctx, key.PackID, *sc); err != nil {
		cand.transition(StateFlagged)
		logging.Warn().Err(err).Str("match", key.String()).Msg("Applying recovered completion failed")
		o.bumpAttempts(ctx, key)
		recordVerification(key.PackID, outcomeError)
		return outcomeError
	}

	cand.transition(StateFinalized)
	logging.Info().
		Str("match", key.String()).
		Str("source", string(sc.SummarySource)).
		Bool("embedded_completion", embedded).
		Msg("Stale match finalized")
	recordVerification(key.PackID, outcomeFinalized)
	return outcomeFinalized
}

// markConfirmed records a successful verification on the match.
func (o *Orchestrator) markConfirmed(ctx context.Context, key store.MatchKey) {
	now := time.Now().UTC()
	_, err := o.matches.UpdateMatch(ctx, key, func(r *store.MatchRecord) error {
		r.VerifyAttempts = 0
		r.LastVerifiedAt = &now
		return nil
	})
	if err != nil {
		logging.Warn().Err(err).Str("match", key.String()).Msg("Recording confirmation failed")
	}
}

// bumpAttempts counts a verification attempt that reached the pack but
// did not resolve the match.
func (o *Orchestrator) bumpAttempts(ctx context.Context, key store.MatchKey) {
	_, err := o.matches.UpdateMatch(ctx, key, func(r *store.MatchRecord) error {
		r.VerifyAttempts++
		return nil
	})
	if err != nil {
		logging.Warn().Err(err).Str("match", key.String()).Msg("Recording verification attempt failed")
	}
}

// ErrRecoveryTimeout indicates a liveness query that did not answer
// within the configured query timeout.
var ErrRecoveryTimeout = errors.New("recovery: verification timed out")
