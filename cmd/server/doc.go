// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

/*
Package main is the entry point for the Matchkeeper daemon.

Matchkeeper collects match telemetry from gamepacks: events, stat
updates, and capture moments stream in over the message bus, land in a
per-match timeline, and survive daemon and pack crashes. Gamepacks
register over RPC, push match data at their own pace, and read
timelines back when they assemble highlight clips.

# Application Architecture

The daemon implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("matchkeeper")
	├── DataSupervisor ("data-layer")
	│   └── Store GC (BadgerDB value log rewrites)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Message Router (match data consumers + gamepack RPC)
	│   └── Recovery Orchestrator (in-progress match verification)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (operational REST API + Prometheus metrics)

Component initialization order:

 1. Configuration: Koanf v2 with YAML file and environment variables
 2. Logging: zerolog with JSON/console output modes
 3. Match store: BadgerDB keyed by pack, subpack, and external match ID
 4. Schema registry: per-subpack stat columns from the declared packs
 5. Transport: Watermill bus, in-process or NATS JetStream (optionally embedded)
 6. Gamepack plane: session registry, match data consumer, RPC service
 7. Recovery orchestrator: periodic sweeps over in-progress matches
 8. HTTP API: chi router with rate limiting and Prometheus metrics
 9. Supervisor tree: Suture v4 process supervision

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Operational API
	HTTP_HOST=0.0.0.0
	HTTP_PORT=7251
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Match store
	STORE_PATH=/data/matchkeeper
	STORE_SYNC_WRITES=true       # fsync per batch; durability over speed

	# Transport (choose one mode)
	TRANSPORT_MODE=inproc        # inproc or nats
	NATS_URL=nats://127.0.0.1:4222
	NATS_EMBEDDED=true           # run an in-process nats-server
	NATS_STORE_DIR=/data/matchkeeper/jetstream

	# Crash recovery
	RECOVERY_INTERVAL=2m
	RECOVERY_STARTUP_DELAY=5s

	# Store backups (off by default)
	BACKUP_ENABLED=true
	BACKUP_DIR=/data/backups
	BACKUP_INTERVAL=24h
	BACKUP_PREFERRED_HOUR=3      # daily+ backups run at this local hour

Pack schemas are file-only; nested tables cannot be expressed through
flat environment variables. Declare them in config.yaml:

	packs:
	  - id: rocketpack
	    name: Rocket League
	    subpacks:
	      - index: 0
	        columns:
	          goals: int
	          saves: int
	          score: float

CONFIG_PATH overrides the config file search path. Without it, the
daemon tries config.yaml and config.yml in the working directory, then
under /etc/matchkeeper. While running, the daemon watches the file it
loaded and applies log level changes without a restart.

# Transport Modes

inproc runs a gochannel bus inside the daemon process. Gamepacks must
be linked into the same process; there is no broker and nothing
survives a crash except what already reached the store. This is the
mode for development and for single-binary embedded deployments.

nats runs the bus on NATS JetStream. With NATS_EMBEDDED=true the
daemon starts its own nats-server and packs connect to it; with
NATS_EMBEDDED=false the daemon dials NATS_URL like any other client.
JetStream retains undelivered match data across daemon restarts, which
is what the recovery orchestrator leans on after a crash.

# Signal Handling

The daemon handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Drains in-flight requests (shutdown timeout, default 10s)
 3. Stops the recovery orchestrator and waits for the active pass
 4. Closes the message router, acking or redelivering in-flight match data
 5. Closes the bus (an embedded nats-server stops last)
 6. Closes the match store
 7. Reports any services that failed to stop

# Usage Examples

Development (in-process bus, console logs):

	export TRANSPORT_MODE=inproc
	export LOG_FORMAT=console
	export STORE_PATH=./data
	go run ./cmd/server

Production (embedded JetStream):

	export TRANSPORT_MODE=nats
	export NATS_EMBEDDED=true
	export NATS_STORE_DIR=/data/matchkeeper/jetstream
	export STORE_PATH=/data/matchkeeper
	./matchkeeper

External NATS cluster:

	export TRANSPORT_MODE=nats
	export NATS_EMBEDDED=false
	export NATS_URL=nats://nats:4222
	./matchkeeper

Docker:

	docker run -d \
	  -v /srv/matchkeeper:/data/matchkeeper \
	  -e TRANSPORT_MODE=nats \
	  -e NATS_EMBEDDED=true \
	  -p 7251:7251 \
	  ghcr.io/matchkeeper/matchkeeper

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/pipeline: Match data write path
  - internal/gamepack: Pack sessions and RPC surface
  - internal/recovery: Crash recovery sweeps
  - internal/backup: Scheduled store snapshots
  - internal/api: Operational HTTP API
*/
package main
