// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newCapturedSlog(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	return slog.New(NewSlogHandlerWithLogger(zl)), &buf
}

func TestSlogHandlerLevels(t *testing.T) {
	logger, buf := newCapturedSlog(t)
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	tests := []struct {
		name    string
		logFunc func()
		level   string
	}{
		{"Debug", func() { logger.Debug("d") }, `"level":"debug"`},
		{"Info", func() { logger.Info("i") }, `"level":"info"`},
		{"Warn", func() { logger.Warn("w") }, `"level":"warn"`},
		{"Error", func() { logger.Error("e") }, `"level":"error"`},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc()
		if !strings.Contains(buf.String(), tt.level) {
			t.Errorf("%s: expected %s in output: %s", tt.name, tt.level, buf.String())
		}
	}
}

func TestSlogHandlerAttrs(t *testing.T) {
	logger, buf := newCapturedSlog(t)

	logger.Info("supervisor event",
		slog.String("supervisor", "matchkeeper"),
		slog.Int("restarts", 2),
		slog.Bool("backoff", true),
	)

	output := buf.String()
	for _, want := range []string{
		`"supervisor":"matchkeeper"`,
		`"restarts":2`,
		`"backoff":true`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandlerWithAttrsAndGroup(t *testing.T) {
	logger, buf := newCapturedSlog(t)

	child := logger.With(slog.String("service", "recovery")).WithGroup("pass")
	child.Info("done", slog.Int("verified", 4))

	output := buf.String()
	if !strings.Contains(output, `"service":"recovery"`) {
		t.Errorf("expected inherited attr in output: %s", output)
	}
	if !strings.Contains(output, `"pass.verified":4`) {
		t.Errorf("expected group-prefixed attr in output: %s", output)
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.WarnLevel)
	h := NewSlogHandlerWithLogger(zl)

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
