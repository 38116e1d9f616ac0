// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package transport

import (
	"fmt"
	"time"
)

// Mode selects the bus implementation.
type Mode string

const (
	// ModeInProc runs an in-process gochannel bus. Used for embedded
	// gamepacks and tests; no external broker involved.
	ModeInProc Mode = "inproc"

	// ModeNATS runs a NATS JetStream bus, external or embedded.
	ModeNATS Mode = "nats"
)

// Config holds transport configuration.
type Config struct {
	// Mode selects inproc or nats.
	Mode Mode `koanf:"mode"`

	// RequestTimeout is the default deadline for RPC requests without
	// their own.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// BufferSize is the per-topic channel buffer for the in-process bus.
	BufferSize int64 `koanf:"buffer_size"`

	NATS    NATSConfig    `koanf:"nats"`
	Router  RouterConfig  `koanf:"router"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig holds circuit breaker settings for NATS publishes.
type BreakerConfig struct {
	// MaxRequests allowed through in half-open state.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval resets the failure counts while closed.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `koanf:"timeout"`

	// FailureThreshold is the consecutive failures before opening.
	FailureThreshold uint32 `koanf:"failure_threshold"`
}

// NATSConfig holds NATS JetStream settings.
type NATSConfig struct {
	// URL of the external server; ignored when Embedded is true.
	URL string `koanf:"url"`

	// Embedded starts an in-process nats-server instead of dialing URL.
	Embedded bool `koanf:"embedded"`

	// Host/Port/StoreDir configure the embedded server.
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	StoreDir string `koanf:"store_dir"`

	// MaxMemory/MaxStore bound embedded JetStream usage in bytes.
	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// DurableName prefixes durable consumer names.
	DurableName string `koanf:"durable_name"`

	// QueueGroup load-balances subscribers across daemon instances.
	QueueGroup string `koanf:"queue_group"`

	// SubscribersCount is the number of concurrent consumers per topic.
	// Keep at 1: match data ordering within a topic matters.
	SubscribersCount int `koanf:"subscribers_count"`

	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver     int           `koanf:"max_deliver"`
	MaxAckPending  int           `koanf:"max_ack_pending"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// RouterConfig holds middleware settings for the consumer router.
type RouterConfig struct {
	CloseTimeout time.Duration `koanf:"close_timeout"`

	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// PoisonTopic receives messages that exhausted their retries. Empty
	// disables the poison queue.
	PoisonTopic string `koanf:"poison_topic"`
}

// DefaultConfig returns production defaults: in-process bus, NATS settings
// ready to enable.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeInProc,
		RequestTimeout: 10 * time.Second,
		BufferSize:     256,
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			Embedded:         true,
			Host:             "127.0.0.1",
			Port:             4222,
			StoreDir:         "/data/matchkeeper/jetstream",
			MaxMemory:        1 << 30,
			MaxStore:         10 << 30,
			DurableName:      "matchkeeper",
			QueueGroup:       "matchkeeper",
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
			MaxDeliver:       5,
			MaxAckPending:    1000,
			CloseTimeout:     30 * time.Second,
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
		},
		Router: RouterConfig{
			CloseTimeout:         30 * time.Second,
			RetryMaxRetries:      5,
			RetryInitialInterval: time.Second,
			RetryMaxInterval:     time.Minute,
			RetryMultiplier:      2.0,
			PoisonTopic:          "dlq.matchdata",
		},
		Breaker: BreakerConfig{
			MaxRequests:      3,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeInProc, ModeNATS:
	default:
		return fmt.Errorf("transport: unknown mode %q", c.Mode)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("transport: request_timeout must be positive")
	}
	if c.Mode == ModeInProc && c.BufferSize <= 0 {
		return fmt.Errorf("transport: buffer_size must be positive")
	}
	if c.Mode == ModeNATS {
		if !c.NATS.Embedded && c.NATS.URL == "" {
			return fmt.Errorf("transport: nats url required when not embedded")
		}
		if c.NATS.Embedded && c.NATS.StoreDir == "" {
			return fmt.Errorf("transport: nats store_dir required for embedded server")
		}
		if c.NATS.SubscribersCount < 1 {
			return fmt.Errorf("transport: subscribers_count must be at least 1")
		}
	}
	return nil
}
