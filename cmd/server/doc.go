// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

/*
Package main is the entry point for the Crowdwatch server.

Crowdwatch is the backend of a crowd density monitoring dashboard. It watches
a directory of detection and forecast result files, merges them with records
kept in BadgerDB, and serves them over REST and an authenticated WebSocket
channel alongside camera, alert, action and crowd sample management.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("crowdwatch")
	├── DataSupervisor ("data-layer")
	│   ├── Results Watcher (fsnotify + periodic rescan)
	│   ├── Result Cache (TTL sweep, invalidation on file changes)
	│   ├── Store GC (badger value log)
	│   └── Mirror On Start (optional, one shot)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (rooms)
	│   └── Results Bridge (file changes to results-updates)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, optional config file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Store: BadgerDB with a circuit breaker for result reads
 4. Authentication: JWT sessions, bcrypt passwords, seeded admin account
 5. Authorization: Casbin role policy
 6. Results: directory watcher, query service and mirror
 7. Real time: WebSocket hub, optional NATS publisher (-tags nats)
 8. Alerting: alert, camera, action and crowd services
 9. HTTP Server: Chi router with middleware stack

# Build Tags

	go build ./cmd/server                 # WebSocket fan-out only
	go build -tags "nats" ./cmd/server    # Also publish room events to NATS

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains in-flight
requests within SHUTDOWN_TIMEOUT and any service that fails to stop in time
is reported before exit.

# Example Usage

	export JWT_SECRET=$(openssl rand -base64 32)
	export ADMIN_USERNAME=admin
	export ADMIN_PASSWORD=secure-password
	export RESULTS_DIR=/var/lib/crowdwatch/results
	./crowdwatch
*/
package main
