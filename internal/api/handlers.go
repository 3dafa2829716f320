// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

// Package api serves the live cache over HTTP using the Chi router.
package api

import (
	"context"
	"time"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/middleware"
)

// LiveCache is the part of livecache.Manager the handlers use.
type LiveCache interface {
	Profile(ctx context.Context, userID string) (livecache.Record, error)
	Ratings(ctx context.Context, userID string) (map[string]livecache.Record, error)
	Comments(ctx context.Context, userID string) ([]livecache.Record, error)
	Watchlists(ctx context.Context, userID string) ([]livecache.Record, error)
	FollowedMedia(ctx context.Context, userID string) (map[string]livecache.Record, error)
	TVProgress(ctx context.Context, userID string) (map[string]livecache.Record, error)

	StartAllListenersForUser(ctx context.Context, userID string) livecache.StartResult
	ShutdownAllListeners()
	DetachListener(key livecache.Key) bool
	Stats() livecache.Stats
	Config() livecache.Config
}

// BreakerReporter is implemented by store backends with a circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// Handler serves the API endpoints.
type Handler struct {
	cache     LiveCache
	writer    docstore.Writer
	backend   string
	breaker   BreakerReporter
	perf      *middleware.PerformanceMonitor
	version   string
	startTime time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithBreaker reports the store circuit breaker state in health responses.
func WithBreaker(b BreakerReporter) HandlerOption {
	return func(h *Handler) { h.breaker = b }
}

// WithWriter enables the write endpoints. Without a writer they answer
// 501.
func WithWriter(w docstore.Writer) HandlerOption {
	return func(h *Handler) { h.writer = w }
}

// WithPerformanceMonitor exposes per-route latency statistics.
func WithPerformanceMonitor(pm *middleware.PerformanceMonitor) HandlerOption {
	return func(h *Handler) { h.perf = pm }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) HandlerOption {
	return func(h *Handler) { h.version = v }
}

// NewHandler returns a handler serving cache. backend names the document
// store in health responses.
func NewHandler(cache LiveCache, backend string, opts ...HandlerOption) *Handler {
	h := &Handler{
		cache:     cache,
		backend:   backend,
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
