// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/models"
	"github.com/tomtom215/teleshow/internal/validation"
)

// UserProfile returns the user document.
func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	profile, err := h.cache.Profile(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, profile, start)
}

// UserRatings returns ratings keyed by "<media_type>_<media_id>".
func (h *Handler) UserRatings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	ratings, err := h.cache.Ratings(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, ratings, start)
}

// UserComments returns the user's comments.
func (h *Handler) UserComments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	comments, err := h.cache.Comments(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, comments, start)
}

// UserWatchlists returns the user's watchlists without their media.
func (h *Handler) UserWatchlists(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	watchlists, err := h.cache.Watchlists(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}

	out := make([]models.WatchlistSummary, 0, len(watchlists))
	for _, wl := range watchlists {
		out = append(out, models.WatchlistSummary{
			ID:        wl.ID(),
			Name:      wl["name"],
			CreatedAt: wl["created_at"],
			UpdatedAt: wl["updated_at"],
		})
	}
	respondSuccess(w, http.StatusOK, out, start)
}

// WatchlistMedia returns the titles of one watchlist. Media appear once
// the watchlist's media listener delivered its first snapshot.
func (h *Handler) WatchlistMedia(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	wlID, ok := pathParam(w, r, "watchlistID")
	if !ok {
		return
	}

	watchlists, err := h.cache.Watchlists(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}

	var target livecache.Record
	for _, wl := range watchlists {
		if wl.ID() == wlID {
			target = wl
			break
		}
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Watchlist not found", nil)
		return
	}

	items, _ := target["media"].([]livecache.Record)
	out := make([]models.WatchlistMediaItem, 0, len(items))
	for _, item := range items {
		status := item["status"]
		if status == nil {
			status = models.DefaultWatchStatus
		}
		out = append(out, models.WatchlistMediaItem{
			ID:            item.ID(),
			MediaID:       item["media_id"],
			MediaType:     item["media_type"],
			Title:         item["title"],
			Overview:      item["overview"],
			ReleaseDate:   item["release_date"],
			PosterPath:    item["poster_path"],
			AddedAt:       item["added_at"],
			Status:        status,
			WatchlistID:   wlID,
			WatchlistName: nameOr(target, "Unknown"),
		})
	}
	respondSuccess(w, http.StatusOK, out, start)
}

// FollowedMedia returns followed titles split into TV and movies, ordered
// by key.
func (h *Handler) FollowedMedia(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	followed, err := h.cache.FollowedMedia(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}

	keys := make([]string, 0, len(followed))
	for k := range followed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := models.FollowedMedia{TV: []map[string]any{}, Movies: []map[string]any{}}
	for _, k := range keys {
		rec := followed[k]
		switch rec["media_type"] {
		case "tv":
			out.TV = append(out.TV, rec)
		case "movie":
			out.Movies = append(out.Movies, rec)
		}
	}
	respondSuccess(w, http.StatusOK, out, start)
}

// CheckFollowed reports whether ?media_type=&media_id= is followed.
func (h *Handler) CheckFollowed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	req := models.FollowedCheckRequest{
		MediaType: r.URL.Query().Get("media_type"),
		MediaID:   r.URL.Query().Get("media_id"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	followed, err := h.cache.FollowedMedia(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}
	_, found := followed[livecache.MediaRef(req.MediaType, req.MediaID)]
	respondSuccess(w, http.StatusOK, models.FollowedCheck{Followed: found}, start)
}

// TVProgress returns episode progress of every show keyed by "tv_<id>".
func (h *Handler) TVProgress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	progress, err := h.cache.TVProgress(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, progress, start)
}

// ShowProgress returns the progress of one show. A show without progress
// is not an error.
func (h *Handler) ShowProgress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	tvID, ok := pathParam(w, r, "tvID")
	if !ok {
		return
	}

	progress, err := h.cache.TVProgress(r.Context(), uid)
	if err != nil {
		h.respondCacheError(w, r, err)
		return
	}

	show, found := progress[livecache.TVRef(tvID)]
	if !found {
		respondSuccess(w, http.StatusOK, models.EpisodeProgress{
			Progress: map[string]any{},
			Message:  "No progress found for this show",
		}, start)
		return
	}
	respondSuccess(w, http.StatusOK, models.EpisodeProgress{Progress: show}, start)
}

func nameOr(rec livecache.Record, def string) any {
	if v, ok := rec["name"]; ok && v != nil {
		return v
	}
	return def
}
