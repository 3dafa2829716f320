// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

/*
Package middleware provides HTTP middleware shared by the API routes.

Key Components:

  - PrometheusMetrics: request count, latency and in-flight instrumentation
  - Compression: gzip for clients that accept it
  - PerformanceMonitor: rolling latency percentiles per route

Endpoints are labelled by their chi route pattern, for example
"/api/v1/users/{userID}/stats", so user ids never become metric label
values or monitor keys.

Middleware Stack:

	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(chiMw.RateLimit())
	    r.Use(middleware.PrometheusMetrics)
	    r.Use(perfMon.Middleware)
	    r.Use(middleware.Compression)
	    ...
	})

Usage Example - Performance Monitor:

	perfMon := middleware.NewPerformanceMonitor(1000, time.Second)
	for _, s := range perfMon.GetStats() {
	    fmt.Printf("%s p95=%dms\n", s.Endpoint, s.P95Duration)
	}

Thread Safety:

All middleware components are safe for concurrent use. The performance
monitor guards its window with a sync.RWMutex and Prometheus collectors
are atomic.

See Also:

  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
