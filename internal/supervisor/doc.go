// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

/*
Package supervisor provides process supervision for Teleshow using suture v4.

# Overview

Long-running services are organized into two layers:

	RootSupervisor ("teleshow")
	├── DataSupervisor ("data-layer")
	│   └── CacheManagerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failing HTTP server is restarted with backoff while the live cache keeps
its listeners. Canceling the root context stops both layers; the cache
service then shuts down every listener.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewCacheManagerService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

Supervisor events (service start, failure, backoff, restart) are logged
through the sutureslog adapter, which main wires to zerolog via
logging.NewSlogLogger.

# Shutdown

Each service gets TreeConfig.ShutdownTimeout to return after cancellation.
UnstoppedServiceReport lists services that missed it.
*/
package supervisor
