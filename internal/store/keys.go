// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package store

import (
	"fmt"
	"net/url"
)

// Key family prefixes.
const (
	prefixMatch    = "match:"
	prefixTimeline = "timeline:"
	prefixSeq      = "tseq:"
)

// seqWidth pads timeline sequence numbers so lexicographic key order is
// numeric order.
const seqWidth = 12

// encodeSegment escapes one key segment. External match IDs come from
// games and may contain the ':' separator.
func encodeSegment(s string) string {
	return url.QueryEscape(s)
}

// matchKey builds the summary record key for a match.
func matchKey(key MatchKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%s",
		prefixMatch, encodeSegment(key.PackID), key.Subpack, encodeSegment(key.ExternalMatchID)))
}

// matchPackPrefix builds the scan prefix for all matches of a pack, or all
// matches when packID is empty.
func matchPackPrefix(packID string) []byte {
	if packID == "" {
		return []byte(prefixMatch)
	}
	return []byte(prefixMatch + encodeSegment(packID) + ":")
}

// timelinePrefix builds the scan prefix for a match's timeline entries.
func timelinePrefix(key MatchKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%s:",
		prefixTimeline, encodeSegment(key.PackID), key.Subpack, encodeSegment(key.ExternalMatchID)))
}

// timelineKey builds the key of one timeline entry.
func timelineKey(key MatchKey, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%0*d", timelinePrefix(key), seqWidth, seq))
}

// seqKey builds the key of a match's timeline sequence counter.
func seqKey(key MatchKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%s",
		prefixSeq, encodeSegment(key.PackID), key.Subpack, encodeSegment(key.ExternalMatchID)))
}
