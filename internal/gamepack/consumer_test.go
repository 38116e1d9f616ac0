// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package gamepack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matchkeeper/matchkeeper/internal/pipeline"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/schema"
	"github.com/matchkeeper/matchkeeper/internal/store"
	"github.com/matchkeeper/matchkeeper/internal/transport"
)

// testRig is the shared test harness: real badger store, schema with a
// kills column per pack, pipeline, in-process bus, session registry.
type testRig struct {
	bus      *transport.Bus
	store    *store.Store
	pipe     *pipeline.Pipeline
	registry *Registry
}

func setupRig(t *testing.T, packs ...string) *testRig {
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

	bus, err := transport.NewBus(transport.DefaultConfig())
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return &testRig{
		bus:      bus,
		store:    st,
		pipe:     pipeline.New(st, reg),
		registry: NewRegistry(),
	}
}

// newTestRouter builds a router with retry backoff short enough for
// tests. poison empty disables the poison queue.
func newTestRouter(t *testing.T, rig *testRig, poison string) *transport.Router {
	t.Helper()

	cfg := transport.RouterConfig{
		CloseTimeout:         5 * time.Second,
		RetryMaxRetries:      2,
		RetryInitialInterval: 5 * time.Millisecond,
		RetryMaxInterval:     20 * time.Millisecond,
		RetryMultiplier:      2.0,
		PoisonTopic:          poison,
	}
	var poisonPub message.Publisher
	if poison != "" {
		poisonPub = rig.bus.Publisher()
	}
	router, err := transport.NewRouter(cfg, poisonPub)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

// startRouter runs the router and blocks until its handlers are live.
func startRouter(t *testing.T, router *transport.Router) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := router.Run(ctx); err != nil {
			t.Errorf("router run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("router did not stop")
		}
	})

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
}

func publishMatchData(t *testing.T, rig *testRig, packID string, m protocol.MatchDataMessage) {
	t.Helper()

	payload, err := protocol.MarshalMessage(m)
	if err != nil {
		t.Fatalf("MarshalMessage: %v", err)
	}
	msg := message.NewMessage(uuid.New().String(), payload)
	if err := rig.bus.Publish(context.Background(), transport.MatchDataTopic(packID), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

// waitForMatch polls until the match exists or the deadline passes.
func waitForMatch(t *testing.T, st *store.Store, key store.MatchKey) *store.MatchRecord {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := st.GetMatch(context.Background(), key)
		if err == nil {
			return rec
		}
		if !errors.Is(err, store.ErrMatchNotFound) {
			t.Fatalf("GetMatch: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("match never appeared")
	return nil
}

func TestConsumerAppliesMatchData(t *testing.T) {
	rig := setupRig(t, "league")
	if _, err := rig.registry.Register(leagueInit()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	before, _ := rig.registry.Get("league")

	router := newTestRouter(t, rig, "")
	NewConsumer(rig.bus, rig.pipe, rig.registry, []string{"league"}).Attach(router)
	startRouter(t, router)

	time.Sleep(5 * time.Millisecond)
	ws := protocol.NewWriteStats(0, "m1", map[string]json.RawMessage{
		"kills": json.RawMessage(`7`),
	}).WithResult(protocol.ResultWin)
	publishMatchData(t, rig, "league", ws)

	key := store.MatchKey{PackID: "league", Subpack: 0, ExternalMatchID: "m1"}
	rec := waitForMatch(t, rig.store, key)
	if !rec.IsInProgress {
		t.Fatal("match not in progress")
	}
	if string(rec.SummaryStats["kills"]) != `7` {
		t.Fatalf("kills = %s", rec.SummaryStats["kills"])
	}
	if rec.Result == nil || *rec.Result != protocol.ResultWin {
		t.Fatalf("result = %v", rec.Result)
	}

	// Seeing telemetry counts as proof of life for the session.
	deadline := time.Now().Add(2 * time.Second)
	for {
		after, _ := rig.registry.Get("league")
		if after.LastSeen.After(before.LastSeen) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("LastSeen never refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConsumerAcksDeterministicRejections(t *testing.T) {
	rig := setupRig(t, "rejectpack")
	router := newTestRouter(t, rig, "")
	NewConsumer(rig.bus, rig.pipe, rig.registry, []string{"rejectpack"}).Attach(router)
	startRouter(t, router)

	rejected := consumedTotal.WithLabelValues("rejectpack", consumeRejected)
	before := testutil.ToFloat64(rejected)

	ws := protocol.NewWriteStats(0, "m1", map[string]json.RawMessage{
		"mana": json.RawMessage(`40`),
	})
	publishMatchData(t, rig, "rejectpack", ws)

	deadline := time.Now().Add(5 * time.Second)
	for testutil.ToFloat64(rejected) < before+1 {
		if time.Now().After(deadline) {
			t.Fatal("rejection never counted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Rejections ack: no redelivery, so the count stays put.
	time.Sleep(100 * time.Millisecond)
	if got := testutil.ToFloat64(rejected); got != before+1 {
		t.Fatalf("rejected count = %v, want %v", got, before+1)
	}

	// A whole-message rejection never creates the match.
	key := store.MatchKey{PackID: "rejectpack", Subpack: 0, ExternalMatchID: "m1"}
	if _, err := rig.store.GetMatch(context.Background(), key); !errors.Is(err, store.ErrMatchNotFound) {
		t.Fatalf("GetMatch err = %v, want ErrMatchNotFound", err)
	}
}

func TestConsumerRoutesUndecodableToPoison(t *testing.T) {
	rig := setupRig(t, "badpack")
	router := newTestRouter(t, rig, "dlq.matchdata.test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poisoned, err := rig.bus.Subscribe(ctx, "dlq.matchdata.test")
	if err != nil {
		t.Fatalf("Subscribe dlq: %v", err)
	}

	NewConsumer(rig.bus, rig.pipe, rig.registry, []string{"badpack"}).Attach(router)
	startRouter(t, router)

	msg := message.NewMessage(uuid.New().String(), []byte("not a message envelope"))
	if err := rig.bus.Publish(context.Background(), transport.MatchDataTopic("badpack"), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case dead := <-poisoned:
		dead.Ack()
		if string(dead.Payload) != "not a message envelope" {
			t.Fatalf("poisoned payload = %q", dead.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("undecodable payload never reached the poison topic")
	}
}
