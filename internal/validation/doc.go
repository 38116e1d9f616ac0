// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package validation wraps go-playground/validator behind a shared
// instance and translates tag failures into readable messages.
//
// Configuration loading and API query parsing both validate through
// ValidateStruct, so constraint wording stays consistent between
// startup errors and HTTP error payloads.
package validation
