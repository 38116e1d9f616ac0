// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package gamepack

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/matchkeeper/matchkeeper/internal/logging"
	"github.com/matchkeeper/matchkeeper/internal/pipeline"
	"github.com/matchkeeper/matchkeeper/internal/protocol"
	"github.com/matchkeeper/matchkeeper/internal/store"
	"github.com/matchkeeper/matchkeeper/internal/transport"
)

// Consumer feeds match data from the bus into the write pipeline. One
// consumer serves all configured packs; each pack gets its own router
// handler on its own matchdata topic.
type Consumer struct {
	bus      *transport.Bus
	pipe     *pipeline.Pipeline
	registry *Registry
	packs    []string
}

// NewConsumer builds a consumer for the given pack IDs. Only configured
// packs are consumed: a pack the daemon has no schema for has no
// business writing telemetry.
func NewConsumer(bus *transport.Bus, pipe *pipeline.Pipeline, registry *Registry, packs []string) *Consumer {
	return &Consumer{bus: bus, pipe: pipe, registry: registry, packs: packs}
}

// Attach registers one handler per pack on the router. Handler errors
// go through the router's retry chain and end up on the poison topic,
// so undecodable payloads and persistent store failures are kept for
// inspection instead of being lost.
func (c *Consumer) Attach(router *transport.Router) {
	for _, packID := range c.packs {
		router.AddConsumerHandler(
			"matchdata-"+packID,
			transport.MatchDataTopic(packID),
			c.bus.Subscriber(),
			c.handlerFor(packID),
		)
	}
}

func (c *Consumer) handlerFor(packID string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		m, err := protocol.UnmarshalMessage(msg.Payload)
		if err != nil {
			recordConsumed(packID, consumeUndecodable)
			logging.Warn().
				Err(err).
				Str("component", "gamepack").
				Str("pack", packID).
				Str("message_uuid", msg.UUID).
				Msg("Undecodable match data")
			return fmt.Errorf("decode match data: %w", err)
		}

		if err := c.pipe.Apply(msg.Context(), packID, m); err != nil {
			if retryable(err) {
				recordConsumed(packID, consumeRetried)
				return err
			}
			// A deterministic rejection: the pipeline has already
			// logged and counted it, and redelivery cannot change the
			// outcome. Ack and move on.
			recordConsumed(packID, consumeRejected)
			return nil
		}

		c.registry.Touch(packID)
		recordConsumed(packID, consumeApplied)
		return nil
	}
}

// retryable reports whether redelivering the message could succeed.
// Engine failures and shutdown interruptions are worth retrying;
// everything else the pipeline rejects is rejected forever.
func retryable(err error) bool {
	var se *store.StoreError
	if errors.As(err, &se) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
