// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/matchkeeper/matchkeeper/internal/config"
	"github.com/matchkeeper/matchkeeper/internal/logging"
)

// Server runs the HTTP listener with the configured timeouts.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// NewServer creates the HTTP server around an already built handler.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logging.WithComponent("api"),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// String names the service in supervision logs.
func (s *Server) String() string {
	return "http-server"
}

// Serve runs the server until ctx is canceled, then drains in-flight
// requests within the shutdown timeout. The signature matches
// suture.Service so the server can sit in the supervision tree
// directly.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		return err
	}
	<-errCh
	s.log.Info().Msg("HTTP server stopped")
	return ctx.Err()
}
