// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

// Package transport carries messages between the daemon and its gamepacks.
//
// The core abstraction is the Bus, a Watermill publisher/subscriber pair.
// Two implementations exist behind one configuration switch: an in-process
// gochannel bus for embedded gamepacks and tests, and a NATS JetStream bus
// (optionally with an embedded nats-server) for out-of-process gamepacks.
//
// Topics:
//
//	matchdata.{pack}   gamepack → daemon match data messages
//	rpc.{pack}.req     daemon → gamepack verification/timeline requests
//	rpc.daemon.req     gamepack → daemon timeline requests
//	rpc.{peer}.reply   replies, addressed via the reply_to metadata key
//	dlq.matchdata      messages that exhausted their redeliveries
//
// Request/reply is correlation-ID based: the requester stamps each request
// with a correlation ID and a reply topic, and matches the reply back to
// the waiting call. Timeouts are plain context deadlines; an expired
// request leaves no state behind and a straggler reply is dropped.
package transport
