// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package transport

// DaemonPeer is the daemon's peer name in RPC topics.
const DaemonPeer = "daemon"

// Message metadata keys.
const (
	// MetaCorrelationID ties a reply to its request.
	MetaCorrelationID = "correlation_id"

	// MetaReplyTo names the topic the responder should answer on.
	MetaReplyTo = "reply_to"

	// MetaMethod names the RPC method carried by a request.
	MetaMethod = "method"

	// MetaError carries a responder-side failure back to the requester.
	MetaError = "error"

	// MetaPeer names the requesting peer on RPC requests.
	MetaPeer = "peer"

	// MetaPackID names the gamepack a message belongs to.
	MetaPackID = "pack_id"
)

// RPC method names.
const (
	// MethodIsMatchInProgress asks a gamepack whether a match is still
	// being played.
	MethodIsMatchInProgress = "is_match_in_progress"

	// MethodGetMatchTimeline asks the daemon for a match's persisted
	// timeline.
	MethodGetMatchTimeline = "get_match_timeline"

	// MethodRegister establishes a gamepack session with the daemon.
	MethodRegister = "register"

	// MethodDeregister ends a gamepack session cleanly.
	MethodDeregister = "deregister"

	// MethodStatus reports a gamepack's game connection status; it
	// doubles as the session heartbeat.
	MethodStatus = "status"

	// MethodMatchData submits a legacy end-of-game payload from packs
	// that predate the subpack message model.
	MethodMatchData = "match_data"
)

// MatchDataTopic is the topic a gamepack publishes match data on.
func MatchDataTopic(packID string) string {
	return "matchdata." + packID
}

// RequestTopic is the topic a peer receives RPC requests on.
func RequestTopic(peer string) string {
	return "rpc." + peer + ".req"
}

// ReplyTopic is the topic a peer receives RPC replies on.
func ReplyTopic(peer string) string {
	return "rpc." + peer + ".reply"
}
