// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/matchkeeper/matchkeeper/internal/config"
	"github.com/matchkeeper/matchkeeper/internal/metrics"
)

// healthRateLimit is permissive so monitoring tools can poll the
// health probes freely while still bounding abuse.
var healthRateLimit = struct {
	requests int
	window   time.Duration
}{requests: 1000, window: time.Minute}

// Middleware builds the rate limiting middleware stack from server
// configuration.
type Middleware struct {
	cfg config.ServerConfig
}

// NewMiddleware creates the middleware factory.
func NewMiddleware(cfg config.ServerConfig) *Middleware {
	return &Middleware{cfg: cfg}
}

// RateLimit returns the per-IP limiter for data endpoints, using the
// configured request budget and window.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		m.cfg.RateLimitRequests,
		m.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// RateLimitHealth returns the permissive per-IP limiter for health
// endpoints.
func (m *Middleware) RateLimitHealth() func(http.Handler) http.Handler {
	return httprate.Limit(
		healthRateLimit.requests,
		healthRateLimit.window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// rateLimitExceeded answers a throttled request with the standard
// error envelope and records the hit.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	metrics.RecordRateLimitHit(r.URL.Path)
	respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
}
