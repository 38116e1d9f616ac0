// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/matchkeeper/matchkeeper/internal/gamepack"
	"github.com/matchkeeper/matchkeeper/internal/pipeline"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/schema"
	"github.com/matchkeeper/matchkeeper/internal/store"
)

// verifyFunc adapts a function to the Verifier interface.
type verifyFunc func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error)

func (f verifyFunc) IsMatchInProgress(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
	return f(ctx, packID, ref)
}

// recoveryRig is the shared harness: real badger store, a kills column
// per pack, real write pipeline as the applier.
type recoveryRig struct {
	store *store.Store
	pipe  *pipeline.Pipeline
}

func setupRecovery(t *testing.T, packs ...string) *recoveryRig {
	t.Helper()

	cfg := store.DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.SyncWrites = false
	st, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	reg := schema.NewRegistry()
	for _, pack := range packs {
		if err := reg.Register(pack, 0, map[string]schema.ColumnType{
			"kills": schema.ColumnInt,
		}); err != nil {
			t.Fatalf("failed to register schema: %v", err)
		}
	}

	return &recoveryRig{store: st, pipe: pipeline.New(st, reg)}
}

// fastConfig keeps passes quick; the hour-long interval means only
// explicitly triggered passes run.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	cfg.StartupDelay = 0
	cfg.QueryTimeout = 2 * time.Second
	cfg.QueriesPerSecond = 1000
	cfg.QueryBurst = 100
	return cfg
}

func newTestOrchestrator(t *testing.T, rig *recoveryRig, cfg Config, v Verifier) *Orchestrator {
	t.Helper()

	o, err := NewOrchestrator(cfg, rig.store, v, rig.pipe)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

// seedMatch writes live telemetry so the match exists in progress.
func seedMatch(t *testing.T, rig *recoveryRig, packID, id string) store.MatchKey {
	t.Helper()

	ws := protocol.NewWriteStats(0, id, map[string]json.RawMessage{
		"kills": json.RawMessage(`3`),
	})
	if err := rig.pipe.Apply(context.Background(), packID, ws); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return store.MatchKey{PackID: packID, Subpack: 0, ExternalMatchID: id}
}

func mustGet(t *testing.T, rig *recoveryRig, key store.MatchKey) *store.MatchRecord {
	t.Helper()

	rec, err := rig.store.GetMatch(context.Background(), key)
	if err != nil {
		t.Fatalf("GetMatch %s: %v", key, err)
	}
	return rec
}

func TestRunPassConfirmsStillPlaying(t *testing.T) {
	rig := setupRecovery(t, "league")
	key := seedMatch(t, rig, "league", "m1")

	// Earlier failed passes left attempts behind; confirmation must
	// clear them.
	if _, err := rig.store.UpdateMatch(context.Background(), key, func(r *store.MatchRecord) error {
		r.VerifyAttempts = 3
		return nil
	}); err != nil {
		t.Fatalf("UpdateMatch: %v", err)
	}

	o := newTestOrchestrator(t, rig, fastConfig(), verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			if packID != "league" || ref.ExternalMatchID != "m1" {
				t.Errorf("queried %s/%s", packID, ref.ExternalMatchID)
			}
			return protocol.StillPlayingResponse(), nil
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Candidates != 1 || report.Confirmed != 1 {
		t.Fatalf("report = %+v, want 1 candidate confirmed", report)
	}
	if report.Flagged() != 0 {
		t.Fatalf("Flagged() = %d, want 0", report.Flagged())
	}

	rec := mustGet(t, rig, key)
	if !rec.IsInProgress {
		t.Fatal("confirmed match must stay in progress")
	}
	if rec.LastVerifiedAt == nil {
		t.Fatal("LastVerifiedAt not set")
	}
	if rec.VerifyAttempts != 0 {
		t.Fatalf("VerifyAttempts = %d, want 0 after confirmation", rec.VerifyAttempts)
	}

	last, ok := o.LastPass()
	if !ok || last.Confirmed != 1 {
		t.Fatalf("LastPass = %+v, %v", last, ok)
	}
}

func TestRunPassFinalizesWithEmbeddedCompletion(t *testing.T) {
	rig := setupRecovery(t, "league")
	key := seedMatch(t, rig, "league", "m2")

	sc := protocol.NewSetComplete(0, "m2", protocol.SummarySourceAPI).
		WithFinalStats(map[string]json.RawMessage{"kills": json.RawMessage(`11`)})
	o := newTestOrchestrator(t, rig, fastConfig(), verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			return protocol.EndedWithCompletion(sc), nil
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Finalized != 1 {
		t.Fatalf("report = %+v, want 1 finalized", report)
	}

	rec := mustGet(t, rig, key)
	if rec.IsInProgress {
		t.Fatal("finalized match still in progress")
	}
	if rec.SummarySource != protocol.SummarySourceAPI {
		t.Fatalf("SummarySource = %q, want api", rec.SummarySource)
	}
	if string(rec.SummaryStats["kills"]) != `11` {
		t.Fatalf("kills = %s, want final stats to overwrite live value", rec.SummaryStats["kills"])
	}
	if rec.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
}

func TestRunPassAppliesBareFallback(t *testing.T) {
	rig := setupRecovery(t, "league")
	key := seedMatch(t, rig, "league", "m3")

	o := newTestOrchestrator(t, rig, fastConfig(), verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			return protocol.EndedResponse(), nil
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Finalized != 1 {
		t.Fatalf("report = %+v, want 1 finalized", report)
	}

	// The fallback closes the match with whatever live telemetry wrote.
	// No stats are invented.
	rec := mustGet(t, rig, key)
	if rec.IsInProgress {
		t.Fatal("match still in progress")
	}
	if rec.SummarySource != protocol.SummarySourceLiveFallback {
		t.Fatalf("SummarySource = %q, want live_fallback", rec.SummarySource)
	}
	if string(rec.SummaryStats["kills"]) != `3` {
		t.Fatalf("kills = %s, want untouched live value 3", rec.SummaryStats["kills"])
	}
	if rec.Result != nil {
		t.Fatalf("Result = %v, want nil: recovery never fabricates an outcome", *rec.Result)
	}
}

func TestRunPassLeavesUnreachableFlagged(t *testing.T) {
	rig := setupRecovery(t, "league")
	key := seedMatch(t, rig, "league", "m4")

	o := newTestOrchestrator(t, rig, fastConfig(), verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			return protocol.IsMatchInProgressResponse{}, fmt.Errorf("pack %q: %w", packID, gamepack.ErrPackUnreachable)
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Unreachable != 1 {
		t.Fatalf("report = %+v, want 1 unreachable", report)
	}
	if report.Flagged() != 1 {
		t.Fatalf("Flagged() = %d, want 1", report.Flagged())
	}

	// No query was made, so nothing counts as an attempt.
	rec := mustGet(t, rig, key)
	if !rec.IsInProgress {
		t.Fatal("unreachable match must stay in progress")
	}
	if rec.VerifyAttempts != 0 {
		t.Fatalf("VerifyAttempts = %d, want 0", rec.VerifyAttempts)
	}
	if rec.LastVerifiedAt != nil {
		t.Fatal("LastVerifiedAt set without a successful verification")
	}
}

func TestRunPassTimeoutBumpsAttempts(t *testing.T) {
	rig := setupRecovery(t, "league")
	key := seedMatch(t, rig, "league", "m5")

	cfg := fastConfig()
	cfg.QueryTimeout = 50 * time.Millisecond
	o := newTestOrchestrator(t, rig, cfg, verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			<-ctx.Done()
			return protocol.IsMatchInProgressResponse{}, ctx.Err()
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.TimedOut != 1 {
		t.Fatalf("report = %+v, want 1 timed out", report)
	}
	if rec := mustGet(t, rig, key); rec.VerifyAttempts != 1 {
		t.Fatalf("VerifyAttempts = %d, want 1", rec.VerifyAttempts)
	}

	// Timeouts accumulate across passes.
	if _, err := o.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	rec := mustGet(t, rig, key)
	if rec.VerifyAttempts != 2 {
		t.Fatalf("VerifyAttempts = %d, want 2", rec.VerifyAttempts)
	}
	if !rec.IsInProgress {
		t.Fatal("timed out match must stay in progress")
	}
}

func TestRunPassMismatchedCompletionRejected(t *testing.T) {
	rig := setupRecovery(t, "league")
	key := seedMatch(t, rig, "league", "m6")

	// The pack answers with a completion for some other match. Applying
	// it would complete a match nobody verified.
	rogue := protocol.NewSetComplete(0, "other-match", protocol.SummarySourceAPI)
	o := newTestOrchestrator(t, rig, fastConfig(), verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			return protocol.EndedWithCompletion(rogue), nil
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Errors != 1 {
		t.Fatalf("report = %+v, want 1 error", report)
	}

	rec := mustGet(t, rig, key)
	if !rec.IsInProgress {
		t.Fatal("match must stay in progress")
	}
	if rec.VerifyAttempts != 1 {
		t.Fatalf("VerifyAttempts = %d, want 1", rec.VerifyAttempts)
	}

	// The rogue completion must not have created its own match either.
	ghost := store.MatchKey{PackID: "league", Subpack: 0, ExternalMatchID: "other-match"}
	if _, err := rig.store.GetMatch(context.Background(), ghost); !errors.Is(err, store.ErrMatchNotFound) {
		t.Fatalf("GetMatch ghost err = %v, want ErrMatchNotFound", err)
	}
}

func TestRunPassBoundsConcurrency(t *testing.T) {
	rig := setupRecovery(t, "league")
	for i := 0; i < 6; i++ {
		seedMatch(t, rig, "league", fmt.Sprintf("mc%d", i))
	}

	cfg := fastConfig()
	cfg.MaxConcurrentVerifies = 2

	var cur, peak atomic.Int64
	o := newTestOrchestrator(t, rig, cfg, verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			n := cur.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			cur.Add(-1)
			return protocol.StillPlayingResponse(), nil
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Confirmed != 6 {
		t.Fatalf("report = %+v, want 6 confirmed", report)
	}
	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrent verifies = %d, want <= 2", got)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	rig := setupRecovery(t, "flaky")
	for i := 0; i < 12; i++ {
		seedMatch(t, rig, "flaky", fmt.Sprintf("mf%d", i))
	}

	// Sequential verifies make the breaker trip deterministic: it opens
	// after the tenth straight failure, so the last two are skipped.
	cfg := fastConfig()
	cfg.MaxConcurrentVerifies = 1

	o := newTestOrchestrator(t, rig, cfg, verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			return protocol.IsMatchInProgressResponse{}, errors.New("pack exploded")
		}))

	report, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Errors != 10 {
		t.Fatalf("Errors = %d, want 10", report.Errors)
	}
	if report.Skipped != 2 {
		t.Fatalf("Skipped = %d, want 2", report.Skipped)
	}
	if report.Flagged() != 12 {
		t.Fatalf("Flagged() = %d, want 12", report.Flagged())
	}
}

func TestStartStopLifecycle(t *testing.T) {
	rig := setupRecovery(t, "league")
	seedMatch(t, rig, "league", "m7")

	cfg := fastConfig()
	cfg.StartupDelay = 5 * time.Millisecond
	o := newTestOrchestrator(t, rig, cfg, verifyFunc(
		func(ctx context.Context, packID string, ref protocol.MatchRef) (protocol.IsMatchInProgressResponse, error) {
			return protocol.StillPlayingResponse(), nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Start(ctx); err == nil {
		t.Fatal("second Start must fail")
	}
	if !o.IsRunning() {
		t.Fatal("IsRunning = false after Start")
	}

	// The initial pass runs after the startup delay.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if report, ok := o.LastPass(); ok {
			if report.Confirmed != 1 {
				t.Fatalf("initial pass report = %+v", report)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("initial pass never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}

	o.Stop()
	if o.IsRunning() {
		t.Fatal("IsRunning = true after Stop")
	}
	o.Stop() // idempotent
}
