// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package transport

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/matchkeeper/matchkeeper/internal/logging"
)

// watermillLogger bridges Watermill's logger interface onto the daemon's
// zerolog logger. Watermill's trace output maps to zerolog trace and stays
// silent at normal levels.
type watermillLogger struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a watermill.LoggerAdapter writing through the
// global daemon logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

// Error implements watermill.LoggerAdapter.
func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(logging.Error(), fields).Err(err).Msg(msg)
}

// Info implements watermill.LoggerAdapter.
func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(logging.Info(), fields).Msg(msg)
}

// Debug implements watermill.LoggerAdapter.
func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg(msg)
}

// Trace implements watermill.LoggerAdapter.
func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(logging.Trace(), fields).Msg(msg)
}

// With implements watermill.LoggerAdapter.
func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{fields: merged}
}

func (l *watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	e = e.Str("component", "transport")
	for k, v := range l.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
