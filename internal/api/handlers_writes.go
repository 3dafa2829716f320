// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/models"
)

// Write endpoints go straight to the document store. The live cache picks
// the changes up through its listeners like any other write.

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// userDoc returns the path of a user's document, or of a subcollection or
// document below it when parts are given.
func (h *Handler) userDoc(uid string, parts ...string) string {
	segs := append([]string{h.cache.Config().Collections.Users, uid}, parts...)
	return docstore.JoinPath(segs...)
}

// writeUser validates {userID}, checks a writer is configured and that the
// user exists. On failure the response is written and ok is false.
func (h *Handler) writeUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.writer == nil {
		respondError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Writes are not enabled on this server", nil)
		return "", false
	}
	uid, ok := userIDParam(w, r)
	if !ok {
		return "", false
	}
	if _, err := h.writer.Get(r.Context(), h.userDoc(uid)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return "", false
		}
		respondStoreError(w, r, err)
		return "", false
	}
	return uid, true
}

// watchlistMedia returns the media documents of a watchlist whose media_id
// renders as mediaID. The watchlist must exist.
func (h *Handler) watchlistMedia(ctx context.Context, uid, wlID, mediaID string) ([]docstore.Document, error) {
	cols := h.cache.Config().Collections
	if _, err := h.writer.Get(ctx, h.userDoc(uid, cols.Watchlists, wlID)); err != nil {
		return nil, err
	}
	docs, err := h.writer.List(ctx, h.userDoc(uid, cols.Watchlists, wlID, cols.Media))
	if err != nil {
		return nil, err
	}
	var out []docstore.Document
	for _, d := range docs {
		if livecache.FormatID(d.Data["media_id"]) == mediaID {
			out = append(out, d)
		}
	}
	return out, nil
}

// FollowMedia follows a title. Following it again overwrites the record.
func (h *Handler) FollowMedia(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := h.writeUser(w, r)
	if !ok {
		return
	}
	var req models.FollowMediaRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	id := livecache.MediaRef(req.MediaType, req.MediaID)
	doc := docstore.Data{
		"media_id":             req.MediaID,
		"media_type":           req.MediaType,
		"title":                req.Title,
		"poster_path":          req.PosterPath,
		"release_date":         req.ReleaseDate,
		"genres":               listOrEmpty(req.Genres),
		"keywords":             listOrEmpty(req.Keywords),
		"production_companies": listOrEmpty(req.Producers),
		"timestamp":            nowStamp(),
	}
	if err := h.writer.Set(r.Context(), h.userDoc(uid, h.cache.Config().Collections.Followed, id), doc); err != nil {
		respondStoreError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("user_id", uid).Str("media", id).Msg("Followed media")
	respondSuccess(w, http.StatusOK, models.WriteResult{Message: "Media followed", ID: id}, start)
}

// UnfollowMedia removes a followed title.
func (h *Handler) UnfollowMedia(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := h.writeUser(w, r)
	if !ok {
		return
	}
	mediaType, ok := pathParamTag(w, r, "mediaType", "required,mediatype")
	if !ok {
		return
	}
	mediaID, ok := pathParam(w, r, "mediaID")
	if !ok {
		return
	}

	id := livecache.MediaRef(mediaType, mediaID)
	p := h.userDoc(uid, h.cache.Config().Collections.Followed, id)
	if _, err := h.writer.Get(r.Context(), p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Media was never followed", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}
	if err := h.writer.Delete(r.Context(), p); err != nil {
		respondStoreError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("user_id", uid).Str("media", id).Msg("Unfollowed media")
	respondSuccess(w, http.StatusOK, models.WriteResult{Message: "Media unfollowed", ID: id}, start)
}

// AddToWatchlist adds a title to the watchlist named in the body, creating
// the watchlist when the user has none by that name. A title already in
// the watchlist is a conflict.
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := h.writeUser(w, r)
	if !ok {
		return
	}
	var req models.AddToWatchlistRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	cols := h.cache.Config().Collections
	now := nowStamp()

	watchlists, err := h.writer.List(ctx, h.userDoc(uid, cols.Watchlists))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	var wlID string
	for _, wl := range watchlists {
		if name, _ := wl.Data["name"].(string); name == req.WatchlistName {
			wlID = wl.ID
			break
		}
	}

	created := wlID == ""
	if created {
		wlID = uuid.NewString()
		err = h.writer.Set(ctx, h.userDoc(uid, cols.Watchlists, wlID), docstore.Data{
			"name":       req.WatchlistName,
			"created_at": now,
			"updated_at": now,
		})
	} else {
		var existing []docstore.Document
		existing, err = h.watchlistMedia(ctx, uid, wlID, strconv.FormatInt(req.MediaInfo.ID, 10))
		if err == nil && len(existing) > 0 {
			respondError(w, http.StatusConflict, "CONFLICT", "Media already exists in watchlist", nil)
			return
		}
		if err == nil {
			err = h.writer.Merge(ctx, h.userDoc(uid, cols.Watchlists, wlID), docstore.Data{"updated_at": now})
		}
	}
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	info := req.MediaInfo
	err = h.writer.Set(ctx, h.userDoc(uid, cols.Watchlists, wlID, cols.Media, uuid.NewString()), docstore.Data{
		"title":        info.MediaName,
		"media_id":     info.ID,
		"overview":     info.Overview,
		"release_date": info.ReleaseDate,
		"media_type":   info.MediaType,
		"poster_path":  info.PosterPath,
		"added_at":     now,
		"status":       models.DefaultWatchStatus,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	logging.Ctx(ctx).Info().
		Str("user_id", uid).
		Str("watchlist_id", wlID).
		Int64("media_id", info.ID).
		Bool("watchlist_created", created).
		Msg("Added media to watchlist")
	respondSuccess(w, http.StatusCreated, models.WatchlistAddResult{
		WatchlistID:      wlID,
		MediaID:          info.ID,
		WatchlistCreated: created,
	}, start)
}

// DeleteWatchlist deletes a watchlist and every title in it.
func (h *Handler) DeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := h.writeUser(w, r)
	if !ok {
		return
	}
	wlID, ok := pathParam(w, r, "watchlistID")
	if !ok {
		return
	}
	ctx := r.Context()
	cols := h.cache.Config().Collections
	wlPath := h.userDoc(uid, cols.Watchlists, wlID)

	if _, err := h.writer.Get(ctx, wlPath); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Watchlist not found", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}
	media, err := h.writer.List(ctx, h.userDoc(uid, cols.Watchlists, wlID, cols.Media))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	for _, m := range media {
		if err := h.writer.Delete(ctx, h.userDoc(uid, cols.Watchlists, wlID, cols.Media, m.ID)); err != nil {
			respondStoreError(w, r, err)
			return
		}
	}
	if err := h.writer.Delete(ctx, wlPath); err != nil {
		respondStoreError(w, r, err)
		return
	}

	logging.Ctx(ctx).Info().Str("user_id", uid).Str("watchlist_id", wlID).Int("media", len(media)).Msg("Deleted watchlist")
	respondSuccess(w, http.StatusOK, models.WriteResult{Message: "Watchlist deleted", ID: wlID, Count: len(media)}, start)
}

// RemoveFromWatchlist removes every entry of {mediaID} from a watchlist.
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	h.updateWatchlistMedia(w, r, nil)
}

// UpdateMediaStatus sets the watch status of a title in a watchlist.
func (h *Handler) UpdateMediaStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateMediaStatusRequest
	h.updateWatchlistMedia(w, r, &req)
}

// updateWatchlistMedia applies status to the matching media documents, or
// deletes them when status is nil, then bumps the watchlist's updated_at.
func (h *Handler) updateWatchlistMedia(w http.ResponseWriter, r *http.Request, status *models.UpdateMediaStatusRequest) {
	start := time.Now()
	uid, ok := h.writeUser(w, r)
	if !ok {
		return
	}
	wlID, ok := pathParam(w, r, "watchlistID")
	if !ok {
		return
	}
	mediaID, ok := pathParam(w, r, "mediaID")
	if !ok {
		return
	}
	if status != nil && !decodeJSONBody(w, r, status) {
		return
	}
	ctx := r.Context()
	cols := h.cache.Config().Collections

	matches, err := h.watchlistMedia(ctx, uid, wlID, mediaID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Watchlist not found", nil)
		return
	case err != nil:
		respondStoreError(w, r, err)
		return
	case len(matches) == 0:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Media not found in watchlist", nil)
		return
	}

	for _, m := range matches {
		p := h.userDoc(uid, cols.Watchlists, wlID, cols.Media, m.ID)
		if status == nil {
			err = h.writer.Delete(ctx, p)
		} else {
			err = h.writer.Merge(ctx, p, docstore.Data{"status": status.Status})
		}
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
	}
	if err := h.writer.Merge(ctx, h.userDoc(uid, cols.Watchlists, wlID), docstore.Data{"updated_at": nowStamp()}); err != nil {
		respondStoreError(w, r, err)
		return
	}

	msg := "Media removed from watchlist"
	if status != nil {
		msg = "Media status updated"
	}
	logging.Ctx(ctx).Info().Str("user_id", uid).Str("watchlist_id", wlID).Str("media_id", mediaID).Msg(msg)
	respondSuccess(w, http.StatusOK, models.WriteResult{Message: msg, ID: mediaID, Count: len(matches)}, start)
}

// SetEpisodeProgress marks one episode of a show watched or unwatched.
func (h *Handler) SetEpisodeProgress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := h.writeUser(w, r)
	if !ok {
		return
	}
	tvID, ok := pathParam(w, r, "tvID")
	if !ok {
		return
	}
	season, ok := numberParam(w, r, "season")
	if !ok {
		return
	}
	episode, ok := numberParam(w, r, "episode")
	if !ok {
		return
	}
	var req models.EpisodeWatchedRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	now := nowStamp()
	id := livecache.TVRef(tvID)
	p := h.userDoc(uid, h.cache.Config().Collections.TVProgress, id)

	existing, err := h.writer.Get(ctx, p)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		respondStoreError(w, r, err)
		return
	}

	seasons, _ := existing["seasons"].(map[string]any)
	if seasons == nil {
		seasons = make(map[string]any)
	}
	sKey := strconv.FormatInt(season, 10)
	s, _ := seasons[sKey].(map[string]any)
	if s == nil {
		s = make(map[string]any)
	}
	episodes, _ := s["episodes"].(map[string]any)
	if episodes == nil {
		episodes = make(map[string]any)
	}
	episodes[strconv.FormatInt(episode, 10)] = map[string]any{
		"watched":    *req.Watched,
		"updated_at": now,
	}
	s["episodes"] = episodes
	seasons[sKey] = s

	update := docstore.Data{"seasons": seasons, "updated_at": now}
	if existing == nil {
		update["tv_id"] = tvIDValue(tvID)
		update["created_at"] = now
	}
	if err := h.writer.Merge(ctx, p, update); err != nil {
		respondStoreError(w, r, err)
		return
	}

	logging.Ctx(ctx).Info().
		Str("user_id", uid).
		Str("show", id).
		Int64("season", season).
		Int64("episode", episode).
		Bool("watched", *req.Watched).
		Msg("Updated episode progress")
	respondSuccess(w, http.StatusOK, models.WriteResult{Message: "Episode progress updated", ID: id}, start)
}

// tvIDValue stores numeric show ids as numbers.
func tvIDValue(tvID string) any {
	if n, err := strconv.ParseInt(tvID, 10, 64); err == nil {
		return n
	}
	return tvID
}

func listOrEmpty(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
