// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

/*
Package main is the entry point for the Teleshow live cache server.

The server keeps per-user views of a remote document store (profile,
ratings, comments, watchlists with their media, followed media and TV
progress) in memory through change-stream listeners, and serves them over
a JSON REST API.

# Application Architecture

Process supervision uses Suture v4:

	RootSupervisor ("teleshow")
	├── DataSupervisor ("data-layer")
	│   └── Live cache manager (listener shutdown on exit)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, YAML file and environment variables
 2. Logging: zerolog with JSON or console output
 3. Document store: NATS JetStream key-value bucket, or in-memory
 4. Live cache manager: registry, listeners and health monitor
 5. HTTP router: chi with request id, CORS, rate limiting and metrics
 6. Supervisor tree

# Configuration

Sources in priority order: environment variables, config file
(CONFIG_PATH, config.yaml, /etc/teleshow/config.yaml), defaults.

	HTTP_PORT=8080
	ENVIRONMENT=production
	LOG_LEVEL=info
	LOG_FORMAT=json

	STORE_BACKEND=nats           # nats or memory
	NATS_EMBEDDED=true
	NATS_STORE_DIR=/data/nats/jetstream
	NATS_BUCKET=teleshow

	LISTENERS_MAX_SUBSCRIPTIONS=50
	LISTENERS_SNAPSHOT_TIMEOUT=5s
	LISTENERS_HEALTH_INTERVAL=120s
	LISTENERS_STALENESS_THRESHOLD=300s

	CORS_ORIGINS=https://app.example.com
	RATE_LIMIT_REQUESTS=100
	RATE_LIMIT_WINDOW=1m

# Graceful Shutdown

SIGINT or SIGTERM cancels the root context. The HTTP server drains within
HTTP_SHUTDOWN_TIMEOUT, every listener is stopped and the document store
connection is closed.

# Endpoints

	GET    /metrics
	GET    /api/v1/health
	GET    /api/v1/performance
	GET    /api/v1/listeners
	POST   /api/v1/listeners/initialize
	POST   /api/v1/listeners/stop
	DELETE /api/v1/listeners/{key}
	GET    /api/v1/users/{userID}/profile
	GET    /api/v1/users/{userID}/ratings
	GET    /api/v1/users/{userID}/comments
	GET    /api/v1/users/{userID}/watchlists
	POST   /api/v1/users/{userID}/watchlists
	DELETE /api/v1/users/{userID}/watchlists/{watchlistID}
	GET    /api/v1/users/{userID}/watchlists/{watchlistID}/media
	PATCH  /api/v1/users/{userID}/watchlists/{watchlistID}/media/{mediaID}
	DELETE /api/v1/users/{userID}/watchlists/{watchlistID}/media/{mediaID}
	GET    /api/v1/users/{userID}/followed
	POST   /api/v1/users/{userID}/followed
	DELETE /api/v1/users/{userID}/followed/{mediaType}/{mediaID}
	GET    /api/v1/users/{userID}/followed/check
	GET    /api/v1/users/{userID}/tv-progress
	GET    /api/v1/users/{userID}/tv-progress/{tvID}
	PUT    /api/v1/users/{userID}/tv-progress/{tvID}/seasons/{season}/episodes/{episode}
	GET    /api/v1/users/{userID}/stats
*/
package main
