// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// setupRPC wires a responder for the "league" peer and a started
// daemon-side requester over one in-process bus.
func setupRPC(t *testing.T, methods map[string]HandlerFunc) *Requester {
	t.Helper()
	bus := setupBus(t)

	router, err := NewRouter(fastRetryConfig(), nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	responder := NewResponder(bus, "league")
	for method, fn := range methods {
		responder.Handle(method, fn)
	}
	responder.Attach(router)
	runRouter(t, router)

	requester := NewRequester(bus, DaemonPeer, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := requester.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return requester
}

func TestRequestReply(t *testing.T) {
	requester := setupRPC(t, map[string]HandlerFunc{
		"echo": func(ctx context.Context, peer string, payload []byte) ([]byte, error) {
			return append([]byte("ack:"), payload...), nil
		},
	})

	reply, err := requester.Request(context.Background(), "league", "echo", []byte("ping"))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(reply) != "ack:ping" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestRequestCarriesPeerIdentity(t *testing.T) {
	requester := setupRPC(t, map[string]HandlerFunc{
		"whoami": func(ctx context.Context, peer string, payload []byte) ([]byte, error) {
			return []byte(peer), nil
		},
	})

	reply, err := requester.Request(context.Background(), "league", "whoami", nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(reply) != DaemonPeer {
		t.Fatalf("peer = %q, want %q", reply, DaemonPeer)
	}
}

func TestConcurrentRequestsCorrelate(t *testing.T) {
	requester := setupRPC(t, map[string]HandlerFunc{
		"echo": func(ctx context.Context, peer string, payload []byte) ([]byte, error) {
			return payload, nil
		},
	})

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("req-%d", i)
			reply, err := requester.Request(context.Background(), "league", "echo", []byte(want))
			if err != nil {
				errs <- err
				return
			}
			if string(reply) != want {
				errs <- fmt.Errorf("reply %q for request %q", reply, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent request: %v", err)
	}
}

func TestRequestRemoteError(t *testing.T) {
	requester := setupRPC(t, map[string]HandlerFunc{
		"fail": func(ctx context.Context, peer string, payload []byte) ([]byte, error) {
			return nil, errors.New("match store unavailable")
		},
	})

	_, err := requester.Request(context.Background(), "league", "fail", nil)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if remote.Method != "fail" || remote.Peer != "league" {
		t.Fatalf("remote = %+v", remote)
	}
	if remote.Message != "match store unavailable" {
		t.Fatalf("message = %q", remote.Message)
	}
}

func TestRequestUnknownMethod(t *testing.T) {
	requester := setupRPC(t, map[string]HandlerFunc{})

	_, err := requester.Request(context.Background(), "league", "no_such_method", nil)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if !strings.Contains(remote.Message, "unknown method") {
		t.Fatalf("message = %q", remote.Message)
	}
}

func TestRequestTimesOutWithoutResponder(t *testing.T) {
	bus := setupBus(t)
	requester := NewRequester(bus, DaemonPeer, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := requester.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer reqCancel()
	_, err := requester.Request(reqCtx, "ghost", "echo", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRequesterLifecycle(t *testing.T) {
	bus := setupBus(t)
	requester := NewRequester(bus, DaemonPeer, time.Second)

	if _, err := requester.Request(context.Background(), "league", "echo", nil); err == nil {
		t.Fatal("expected error before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := requester.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := requester.Start(ctx); err == nil {
		t.Fatal("expected error on second Start")
	}
}
