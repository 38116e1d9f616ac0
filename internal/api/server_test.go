// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/matchkeeper/matchkeeper/internal/config"
)

func TestServerStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = 2 * time.Second

	srv := NewServer(cfg, http.NewServeMux())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	// Give the listener a moment to bind before asking it to stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected serve error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServerAddrFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.Host = "10.1.2.3"
	cfg.Port = 9999

	srv := NewServer(cfg, http.NewServeMux())
	if got := srv.Addr(); got != "10.1.2.3:9999" {
		t.Errorf("Addr() = %q, want 10.1.2.3:9999", got)
	}
}
