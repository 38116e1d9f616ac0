// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/matchkeeper/matchkeeper/internal/logging"
)

// Bus is the daemon's message bus. It is a publisher/subscriber pair
// backed either by an in-process gochannel or by NATS JetStream,
// selected by Config.Mode. Both sides of an RPC conversation and both
// ends of the match data flow must share one Bus (inproc) or one NATS
// deployment.
type Bus struct {
	cfg        Config
	publisher  message.Publisher
	subscriber message.Subscriber
	gochan     *gochannel.GoChannel
	embedded   *EmbeddedServer
	breaker    *gobreaker.CircuitBreaker[interface{}]
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus builds a bus for the configured mode. In NATS mode with
// Embedded set, an in-process nats-server is started first and the bus
// connects to it instead of cfg.NATS.URL.
func NewBus(cfg Config) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := NewWatermillLogger()
	b := &Bus{cfg: cfg, logger: logger}

	switch cfg.Mode {
	case ModeInProc:
		goch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger)
		b.gochan = goch
		b.publisher = goch
		b.subscriber = goch

	case ModeNATS:
		url := cfg.NATS.URL
		if cfg.NATS.Embedded {
			srv, err := StartEmbeddedServer(cfg.NATS)
			if err != nil {
				return nil, fmt.Errorf("start embedded nats: %w", err)
			}
			b.embedded = srv
			url = srv.ClientURL()
		}
		if err := b.connectNATS(url); err != nil {
			if b.embedded != nil {
				b.embedded.Shutdown()
			}
			return nil, err
		}
		b.breaker = newPublishBreaker(cfg.Breaker)

	default:
		return nil, fmt.Errorf("transport: unknown mode %q", cfg.Mode)
	}

	logging.Info().
		Str("component", "transport").
		Str("mode", string(cfg.Mode)).
		Bool("embedded", b.embedded != nil).
		Msg("Message bus ready")
	return b, nil
}

func (b *Bus) connectNATS(url string) error {
	cfg := b.cfg.NATS
	logger := b.logger

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		// Deliver everything still in the stream: undelivered match data
		// from before a restart is exactly what recovery wants to see.
		natsgo.DeliverAll(),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    true,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create nats subscriber: %w", err)
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		_ = sub.Close()
		return fmt.Errorf("create nats publisher: %w", err)
	}

	b.subscriber = sub
	b.publisher = pub
	return nil
}

func newPublishBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "transport-publish",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("component", "transport").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Publish circuit breaker state changed")
		},
	})
}

// Publish sends a message to the topic. In NATS mode publishes run
// through a circuit breaker and carry the message UUID as Nats-Msg-Id
// for JetStream deduplication.
func (b *Bus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	b.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if b.cfg.Mode == ModeNATS && msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	var err error
	if b.breaker != nil {
		_, err = b.breaker.Execute(func() (interface{}, error) {
			return nil, b.publisher.Publish(topic, msg)
		})
	} else {
		err = b.publisher.Publish(topic, msg)
	}

	if err != nil {
		recordPublish(topic, outcomeError)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	recordPublish(topic, outcomeOK)
	return nil
}

// Subscribe returns a channel of messages for the topic. The channel
// closes when ctx is canceled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrBusClosed
	}
	b.mu.RUnlock()

	return b.subscriber.Subscribe(ctx, topic)
}

// Publisher returns the underlying Watermill publisher for components
// that need the native interface, such as the poison queue middleware.
func (b *Bus) Publisher() message.Publisher {
	return b.publisher
}

// Subscriber returns the underlying Watermill subscriber for router
// handler registration.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// Close shuts the bus down, bounded by the NATS close timeout. Closing
// twice is safe. In embedded mode the nats-server is stopped last so
// in-flight acks can still reach it.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var firstErr error
		if b.gochan != nil {
			// gochannel is one object on both sides; close it once.
			firstErr = b.gochan.Close()
		} else {
			if err := b.subscriber.Close(); err != nil {
				firstErr = err
			}
			if err := b.publisher.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		done <- firstErr
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(b.cfg.NATS.CloseTimeout):
		err = fmt.Errorf("transport: close timed out after %s", b.cfg.NATS.CloseTimeout)
	}

	if b.embedded != nil {
		b.embedded.Shutdown()
	}

	logging.Info().Str("component", "transport").Msg("Message bus closed")
	return err
}

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("transport: bus is closed")
