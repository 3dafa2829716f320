// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/docstore/memstore"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/models"
)

// getData fetches target and decodes its data, failing on non-200.
func getData(t *testing.T, env *testEnv, target string, data any) {
	t.Helper()
	rec := env.do(t, http.MethodGet, target, "")
	expectStatus(t, rec, http.StatusOK)
	decodeEnvelope(t, rec, data)
}

func isFollowed(t *testing.T, env *testEnv, mediaType, mediaID string) bool {
	t.Helper()
	var check models.FollowedCheck
	getData(t, env, "/api/v1/users/u1/followed/check?media_type="+mediaType+"&media_id="+mediaID, &check)
	return check.Followed
}

func TestFollowMedia(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1", docstore.Data{"name": "Moses"})

	// Read first so the follow arrives through the live listener.
	if isFollowed(t, env, "movie", "550") {
		t.Fatal("followed before any write")
	}

	rec := env.do(t, http.MethodPost, "/api/v1/users/u1/followed", `{
		"media_id": 550, "media_type": "movie", "title": "Fight Club",
		"genres": [{"id": 18, "name": "Drama"}], "producers": [{"id": 508, "name": "Regency"}]
	}`)
	expectStatus(t, rec, http.StatusOK)
	var res models.WriteResult
	decodeEnvelope(t, rec, &res)
	if res.ID != "movie_550" {
		t.Errorf("id = %q, want movie_550", res.ID)
	}

	eventually(t, "follow visible", func() bool { return isFollowed(t, env, "movie", "550") })

	stored, err := env.store.Get(context.Background(), "users/u1/followed_media/movie_550")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored["title"] != "Fight Club" || stored["production_companies"] == nil || stored["timestamp"] == nil {
		t.Errorf("stored = %v", stored)
	}

	var stats models.UserStats
	getData(t, env, "/api/v1/users/u1/stats", &stats)
	if stats.MovieCount != 1 || len(stats.TopGenres) != 1 || stats.TopGenres[0].Name != "Drama" {
		t.Errorf("stats = %+v", stats)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/users/u1/followed/movie/550", "")
	expectStatus(t, rec, http.StatusOK)
	eventually(t, "unfollow visible", func() bool { return !isFollowed(t, env, "movie", "550") })

	expectErrorCode(t, env.do(t, http.MethodDelete, "/api/v1/users/u1/followed/movie/550", ""),
		http.StatusNotFound, "NOT_FOUND")
}

func TestFollowMedia_Rejected(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1", docstore.Data{"name": "Moses"})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"unknown user", http.MethodPost, "/api/v1/users/u2/followed", `{"media_id": 1, "media_type": "tv"}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad media type", http.MethodPost, "/api/v1/users/u1/followed", `{"media_id": 1, "media_type": "book"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing media id", http.MethodPost, "/api/v1/users/u1/followed", `{"media_type": "tv"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative media id", http.MethodPost, "/api/v1/users/u1/followed", `{"media_id": -4, "media_type": "tv"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid json", http.MethodPost, "/api/v1/users/u1/followed", `{"media_id":`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty body", http.MethodPost, "/api/v1/users/u1/followed", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad user id", http.MethodPost, "/api/v1/users/bad.id/followed", `{"media_id": 1, "media_type": "tv"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unfollow bad type", http.MethodDelete, "/api/v1/users/u1/followed/book/1", "", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectErrorCode(t, env.do(t, tt.method, tt.target, tt.body), tt.status, tt.code)
		})
	}

	docs, _ := env.store.List(context.Background(), "users/u1/followed_media")
	if len(docs) != 0 {
		t.Errorf("rejected requests wrote %v", docs)
	}
}

func TestAddToWatchlist(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1", docstore.Data{"name": "Moses"})

	add := func(mediaID string) models.WatchlistAddResult {
		t.Helper()
		rec := env.do(t, http.MethodPost, "/api/v1/users/u1/watchlists", `{
			"watchlist_name": "Weekend",
			"media_info": {"id": `+mediaID+`, "media_name": "Breaking Bad", "media_type": "tv", "overview": "Chemistry"}
		}`)
		expectStatus(t, rec, http.StatusCreated)
		var res models.WatchlistAddResult
		decodeEnvelope(t, rec, &res)
		return res
	}

	first := add("1396")
	if !first.WatchlistCreated || first.WatchlistID == "" || first.MediaID != 1396 {
		t.Fatalf("first add = %+v", first)
	}

	mediaURL := "/api/v1/users/u1/watchlists/" + first.WatchlistID + "/media"
	var items []models.WatchlistMediaItem
	eventually(t, "media listed", func() bool {
		items = nil
		getData(t, env, mediaURL, &items)
		return len(items) == 1
	})
	if items[0].Title != "Breaking Bad" || items[0].Status != models.DefaultWatchStatus || items[0].WatchlistName != "Weekend" {
		t.Errorf("item = %+v", items[0])
	}

	second := add("1399")
	if second.WatchlistCreated || second.WatchlistID != first.WatchlistID {
		t.Errorf("second add = %+v, want the existing watchlist", second)
	}
	eventually(t, "second title listed", func() bool {
		items = nil
		getData(t, env, mediaURL, &items)
		return len(items) == 2
	})

	rec := env.do(t, http.MethodPost, "/api/v1/users/u1/watchlists",
		`{"watchlist_name": "Weekend", "media_info": {"id": 1396, "media_type": "tv"}}`)
	expectErrorCode(t, rec, http.StatusConflict, "CONFLICT")

	docs, _ := env.store.List(context.Background(), "users/u1/watchlists")
	if len(docs) != 1 {
		t.Errorf("watchlists = %v, want one", docs)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/u1/watchlists", `{"watchlist_name": "Weekend", "media_info": {"id": 7}}`)
	expectErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func seedWatchlist(t *testing.T, env *testEnv) {
	t.Helper()
	env.set(t, "users/u1", docstore.Data{"name": "Moses"})
	env.set(t, "users/u1/watchlists/wl1", docstore.Data{"name": "Later", "updated_at": "2026-01-01T00:00:00Z"})
	env.set(t, "users/u1/watchlists/wl1/media/m1", docstore.Data{"media_id": 1396, "media_type": "tv", "title": "Breaking Bad"})
	env.set(t, "users/u1/watchlists/wl1/media/m2", docstore.Data{"media_id": 603, "media_type": "movie", "title": "The Matrix"})
}

func watchlistItems(t *testing.T, env *testEnv) map[string]models.WatchlistMediaItem {
	t.Helper()
	var items []models.WatchlistMediaItem
	getData(t, env, "/api/v1/users/u1/watchlists/wl1/media", &items)
	out := make(map[string]models.WatchlistMediaItem, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out
}

func TestUpdateMediaStatus(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	seedWatchlist(t, env)
	eventually(t, "media loaded", func() bool { return len(watchlistItems(t, env)) == 2 })

	rec := env.do(t, http.MethodPatch, "/api/v1/users/u1/watchlists/wl1/media/1396", `{"status": "Watching"}`)
	expectStatus(t, rec, http.StatusOK)
	eventually(t, "status visible", func() bool {
		return watchlistItems(t, env)["m1"].Status == "Watching"
	})
	if got := watchlistItems(t, env)["m2"].Status; got != models.DefaultWatchStatus {
		t.Errorf("other title status = %v", got)
	}

	wl, err := env.store.Get(context.Background(), "users/u1/watchlists/wl1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if wl["updated_at"] == "2026-01-01T00:00:00Z" {
		t.Error("watchlist updated_at not bumped")
	}

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"missing status", "/api/v1/users/u1/watchlists/wl1/media/1396", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown media", "/api/v1/users/u1/watchlists/wl1/media/42", `{"status": "Done"}`, http.StatusNotFound, "NOT_FOUND"},
		{"unknown watchlist", "/api/v1/users/u1/watchlists/wl9/media/1396", `{"status": "Done"}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectErrorCode(t, env.do(t, http.MethodPatch, tt.target, tt.body), tt.status, tt.code)
		})
	}
}

func TestRemoveFromWatchlist(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	seedWatchlist(t, env)
	eventually(t, "media loaded", func() bool { return len(watchlistItems(t, env)) == 2 })

	rec := env.do(t, http.MethodDelete, "/api/v1/users/u1/watchlists/wl1/media/603", "")
	expectStatus(t, rec, http.StatusOK)
	var res models.WriteResult
	decodeEnvelope(t, rec, &res)
	if res.Count != 1 {
		t.Errorf("removed = %d, want 1", res.Count)
	}
	eventually(t, "removal visible", func() bool {
		items := watchlistItems(t, env)
		_, gone := items["m2"]
		return len(items) == 1 && !gone
	})

	expectErrorCode(t, env.do(t, http.MethodDelete, "/api/v1/users/u1/watchlists/wl1/media/603", ""),
		http.StatusNotFound, "NOT_FOUND")
}

func TestDeleteWatchlist(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	seedWatchlist(t, env)

	var summaries []models.WatchlistSummary
	getData(t, env, "/api/v1/users/u1/watchlists", &summaries)
	if len(summaries) != 1 {
		t.Fatalf("watchlists = %+v", summaries)
	}

	rec := env.do(t, http.MethodDelete, "/api/v1/users/u1/watchlists/wl1", "")
	expectStatus(t, rec, http.StatusOK)
	var res models.WriteResult
	decodeEnvelope(t, rec, &res)
	if res.Count != 2 {
		t.Errorf("media deleted = %d, want 2", res.Count)
	}

	ctx := context.Background()
	if _, err := env.store.Get(ctx, "users/u1/watchlists/wl1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("watchlist still stored: %v", err)
	}
	if media, _ := env.store.List(ctx, "users/u1/watchlists/wl1/media"); len(media) != 0 {
		t.Errorf("media left behind: %v", media)
	}
	eventually(t, "watchlist gone from cache", func() bool {
		summaries = nil
		getData(t, env, "/api/v1/users/u1/watchlists", &summaries)
		return len(summaries) == 0
	})
	eventually(t, "media listener detached", func() bool {
		return !hasListener(env, livecache.MediaKey("u1", "wl1"))
	})

	expectErrorCode(t, env.do(t, http.MethodDelete, "/api/v1/users/u1/watchlists/wl1", ""),
		http.StatusNotFound, "NOT_FOUND")
}

func hasListener(env *testEnv, key livecache.Key) bool {
	for _, l := range env.manager.Stats().Listeners {
		if l.Key == key.String() {
			return true
		}
	}
	return false
}

func TestSetEpisodeProgress(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1", docstore.Data{"name": "Moses"})

	episode := func(progress map[string]any, season, ep string) map[string]any {
		seasons, _ := progress["seasons"].(map[string]any)
		s, _ := seasons[season].(map[string]any)
		eps, _ := s["episodes"].(map[string]any)
		e, _ := eps[ep].(map[string]any)
		return e
	}
	show := func() map[string]any {
		var p models.EpisodeProgress
		getData(t, env, "/api/v1/users/u1/tv-progress/1396", &p)
		return p.Progress
	}

	rec := env.do(t, http.MethodPut, "/api/v1/users/u1/tv-progress/1396/seasons/1/episodes/2", `{"watched": true}`)
	expectStatus(t, rec, http.StatusOK)

	var progress map[string]any
	eventually(t, "progress visible", func() bool {
		progress = show()
		return episode(progress, "1", "2")["watched"] == true
	})
	if progress["tv_id"] != float64(1396) || progress["created_at"] == nil {
		t.Errorf("progress = %v", progress)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/users/u1/tv-progress/1396/seasons/1/episodes/3", `{"watched": false}`)
	expectStatus(t, rec, http.StatusOK)
	eventually(t, "second episode visible", func() bool {
		progress = show()
		e := episode(progress, "1", "3")
		return e != nil && e["watched"] == false
	})
	if episode(progress, "1", "2")["watched"] != true {
		t.Errorf("earlier episode lost: %v", progress)
	}

	var stats models.UserStats
	getData(t, env, "/api/v1/users/u1/stats", &stats)
	if stats.EpisodesWatched != 1 {
		t.Errorf("episodes watched = %d, want 1", stats.EpisodesWatched)
	}

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"non-numeric season", "/api/v1/users/u1/tv-progress/1396/seasons/one/episodes/2", `{"watched": true}`},
		{"non-numeric episode", "/api/v1/users/u1/tv-progress/1396/seasons/1/episodes/-2", `{"watched": true}`},
		{"missing watched", "/api/v1/users/u1/tv-progress/1396/seasons/1/episodes/2", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectErrorCode(t, env.do(t, http.MethodPut, tt.target, tt.body), http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}
}

func TestWrites_Disabled(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig(), WithWriter(nil))
	env.set(t, "users/u1", docstore.Data{"name": "Moses"})

	rec := env.do(t, http.MethodPost, "/api/v1/users/u1/followed", `{"media_id": 1, "media_type": "tv"}`)
	expectErrorCode(t, rec, http.StatusNotImplemented, "NOT_IMPLEMENTED")
}

// failingWriter fails every write after Get succeeds.
type failingWriter struct {
	docstore.Writer
	err error
}

func (f failingWriter) Set(context.Context, string, docstore.Data) error { return f.err }

func TestWrites_StoreFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream", errors.New("connection reset"), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"closed", docstore.ErrClosed, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := memstore.New()
			if err := base.Set(context.Background(), "users/u1", docstore.Data{"name": "Moses"}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			env := newTestEnv(t, livecache.DefaultConfig(), WithWriter(failingWriter{Writer: base, err: tt.err}))

			rec := env.do(t, http.MethodPost, "/api/v1/users/u1/followed", `{"media_id": 1, "media_type": "tv"}`)
			expectErrorCode(t, rec, tt.status, tt.code)
		})
	}
}
