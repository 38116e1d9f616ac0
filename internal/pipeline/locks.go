// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package pipeline

import (
	"sync"

	"github.com/matchkeeper/matchkeeper/internal/store"
)

// keyedLocks serializes message application per match key. Entries are
// reference counted and removed when the last holder releases, so the map
// stays bounded by the number of matches with in-flight writes.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[store.MatchKey]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[store.MatchKey]*lockEntry)}
}

// lock acquires the lock for key and returns its release function.
func (l *keyedLocks) lock(key store.MatchKey) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
