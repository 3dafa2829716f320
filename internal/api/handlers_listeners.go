// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/models"
)

// InitializeListeners starts every listener of the user in the body.
// A start already running for the user answers 202.
func (h *Handler) InitializeListeners(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.InitializeListenersRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	res := h.cache.StartAllListenersForUser(r.Context(), req.UserID)
	switch res.Status {
	case livecache.StatusSuccess:
		respondSuccess(w, http.StatusOK, res, start)
	case livecache.StatusInProgress:
		respondSuccess(w, http.StatusAccepted, res, start)
	default:
		err := res.Err
		if err == nil {
			err = errors.New(res.Message)
		}
		h.respondCacheError(w, r, err)
	}
}

// StopListeners shuts down every listener and clears the cache.
func (h *Handler) StopListeners(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	n := h.cache.Stats().Active
	h.cache.ShutdownAllListeners()
	logging.Ctx(r.Context()).Info().Int("listeners", n).Msg("Listeners stopped via API")

	respondSuccess(w, http.StatusOK, models.ListenerStopResult{
		Stopped:   n,
		StoppedAt: time.Now(),
	}, start)
}

// ListListeners returns the registry contents.
func (h *Handler) ListListeners(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.cache.Stats(), time.Now())
}

// DetachListener removes the listener named by {key}, for example
// "comments:u1" or "watchlist_media:u1:wl1".
func (h *Handler) DetachListener(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	key, err := livecache.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if !h.cache.DetachListener(key) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No listener for "+key.String(), nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"detached": key.String()}, start)
}
