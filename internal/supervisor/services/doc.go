// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

/*
Package services provides suture.Service wrappers for Teleshow components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

and translates a component lifecycle into it:

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

Live Cache (CacheManagerService):
  - Blocks while the process runs
  - Shuts down every listener and clears the cache on cancellation

Services return ctx.Err() after a requested shutdown, which suture treats as
a normal stop, and wrap startup failures so the supervisor restarts them
with backoff.
*/
package services
