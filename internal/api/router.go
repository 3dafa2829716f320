// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/teleshow/internal/middleware"
)

// Router sets up HTTP routes using the Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil chiMw uses the default middleware
// configuration.
func NewRouter(handler *Handler, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMw}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(RequestLogger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		if router.handler.perf != nil {
			r.Use(router.handler.perf.Middleware)
		}
		r.Use(middleware.Compression)

		r.Get("/health", router.handler.Health)
		r.Get("/performance", router.handler.Performance)

		r.Route("/listeners", func(r chi.Router) {
			r.Get("/", router.handler.ListListeners)
			r.Post("/initialize", router.handler.InitializeListeners)
			r.Post("/stop", router.handler.StopListeners)
			r.Delete("/{key}", router.handler.DetachListener)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/profile", router.handler.UserProfile)
			r.Get("/ratings", router.handler.UserRatings)
			r.Get("/comments", router.handler.UserComments)
			r.Get("/watchlists", router.handler.UserWatchlists)
			r.Get("/watchlists/{watchlistID}/media", router.handler.WatchlistMedia)
			r.Get("/followed", router.handler.FollowedMedia)
			r.Get("/followed/check", router.handler.CheckFollowed)
			r.Get("/tv-progress", router.handler.TVProgress)
			r.Get("/tv-progress/{tvID}", router.handler.ShowProgress)
			r.Get("/stats", router.handler.UserStats)

			r.Post("/followed", router.handler.FollowMedia)
			r.Delete("/followed/{mediaType}/{mediaID}", router.handler.UnfollowMedia)
			r.Post("/watchlists", router.handler.AddToWatchlist)
			r.Delete("/watchlists/{watchlistID}", router.handler.DeleteWatchlist)
			r.Patch("/watchlists/{watchlistID}/media/{mediaID}", router.handler.UpdateMediaStatus)
			r.Delete("/watchlists/{watchlistID}/media/{mediaID}", router.handler.RemoveFromWatchlist)
			r.Put("/tv-progress/{tvID}/seasons/{season}/episodes/{episode}", router.handler.SetEpisodeProgress)
		})
	})

	return r
}
