// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package models defines the operational API's wire shapes: the
// response envelope and the view renderings of store records and
// gamepack sessions. Views decouple the HTTP surface from storage, so
// record fields can move without breaking API clients.
package models
