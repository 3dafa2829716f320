// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/models"
)

func TestUserProfile(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1", docstore.Data{"name": "Moses", "email": "m@example.com"})

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/profile", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}

	var profile map[string]any
	decodeEnvelope(t, rec, &profile)
	if profile["name"] != "Moses" || profile["id"] != "u1" {
		t.Errorf("profile = %v", profile)
	}
}

func TestUserEndpoints_InvalidUserID(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())

	for _, p := range []string{"profile", "ratings", "comments", "watchlists", "followed", "tv-progress", "stats"} {
		t.Run(p, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/users/bad.id/"+p, "")
			expectErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}
	if env.store.OpenStreams() != 0 {
		t.Error("invalid requests opened streams")
	}
}

func TestUserRatings(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "Ratings/r1", docstore.Data{"user_id": "u1", "media_type": "movie", "media_id": 603, "rating": 4})
	env.set(t, "Ratings/r2", docstore.Data{"user_id": "u2", "media_type": "movie", "media_id": 604, "rating": 2})

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/ratings", "")
	expectStatus(t, rec, http.StatusOK)

	var ratings map[string]map[string]any
	decodeEnvelope(t, rec, &ratings)
	if len(ratings) != 1 {
		t.Fatalf("ratings = %v", ratings)
	}
	if r, ok := ratings["movie_603"]; !ok || r["rating"] != float64(4) {
		t.Errorf("movie_603 = %v", r)
	}
}

func TestUserComments(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "Comments/c1", docstore.Data{"user_id": "u1", "text": "great"})
	env.set(t, "Comments/c2", docstore.Data{"user_id": "u1", "text": "meh"})

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/comments", "")
	expectStatus(t, rec, http.StatusOK)

	var comments []map[string]any
	decodeEnvelope(t, rec, &comments)
	if len(comments) != 2 || comments[0]["id"] != "c1" || comments[1]["id"] != "c2" {
		t.Errorf("comments = %v", comments)
	}
}

func TestWatchlists(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1/watchlists/wl1", docstore.Data{"name": "Weekend", "created_at": "2026-01-01"})
	env.set(t, "users/u1/watchlists/wl1/media/m1", docstore.Data{
		"media_id": 603, "media_type": "movie", "title": "The Matrix",
	})
	env.set(t, "users/u1/watchlists/wl1/media/m2", docstore.Data{
		"media_id": 1399, "media_type": "tv", "title": "Dark", "status": "Watching",
	})

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/watchlists", "")
	expectStatus(t, rec, http.StatusOK)
	var summaries []models.WatchlistSummary
	decodeEnvelope(t, rec, &summaries)
	if len(summaries) != 1 || summaries[0].ID != "wl1" || summaries[0].Name != "Weekend" {
		t.Fatalf("summaries = %+v", summaries)
	}

	// Media arrive once the cascaded child delivers its snapshot.
	var items []models.WatchlistMediaItem
	eventually(t, "watchlist media", func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/users/u1/watchlists/wl1/media", "")
		if rec.Code != http.StatusOK {
			return false
		}
		items = nil
		decodeEnvelope(t, rec, &items)
		return len(items) == 2
	})

	byID := map[string]models.WatchlistMediaItem{}
	for _, it := range items {
		byID[it.ID] = it
	}
	if byID["m1"].Status != models.DefaultWatchStatus {
		t.Errorf("m1 status = %v, want default", byID["m1"].Status)
	}
	if byID["m2"].Status != "Watching" {
		t.Errorf("m2 status = %v", byID["m2"].Status)
	}
	if byID["m1"].WatchlistID != "wl1" || byID["m1"].WatchlistName != "Weekend" {
		t.Errorf("m1 watchlist = %s/%v", byID["m1"].WatchlistID, byID["m1"].WatchlistName)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/u1/watchlists/missing/media", "")
	expectErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func seedFollowed(t *testing.T, env *testEnv) {
	t.Helper()
	env.set(t, "users/u1/followed_media/f1", docstore.Data{
		"media_type": "tv", "media_id": 1399, "title": "Dark",
		"genres": []any{map[string]any{"name": "Drama"}, map[string]any{"name": "Mystery"}},
	})
	env.set(t, "users/u1/followed_media/f2", docstore.Data{
		"media_type": "movie", "media_id": 603, "title": "The Matrix",
		"genres": []any{map[string]any{"name": "Action"}, map[string]any{"name": "Drama"}},
	})
}

func TestFollowedMedia(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	seedFollowed(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/followed", "")
	expectStatus(t, rec, http.StatusOK)

	var followed models.FollowedMedia
	decodeEnvelope(t, rec, &followed)
	if len(followed.TV) != 1 || followed.TV[0]["title"] != "Dark" {
		t.Errorf("followed_tv = %v", followed.TV)
	}
	if len(followed.Movies) != 1 || followed.Movies[0]["title"] != "The Matrix" {
		t.Errorf("followed_movies = %v", followed.Movies)
	}
}

func TestCheckFollowed(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	seedFollowed(t, env)

	tests := []struct {
		name     string
		query    string
		status   int
		followed bool
	}{
		{"followed show", "?media_type=tv&media_id=1399", http.StatusOK, true},
		{"followed movie", "?media_type=movie&media_id=603", http.StatusOK, true},
		{"wrong type", "?media_type=movie&media_id=1399", http.StatusOK, false},
		{"unknown id", "?media_type=tv&media_id=1", http.StatusOK, false},
		{"bad media type", "?media_type=book&media_id=1", http.StatusBadRequest, false},
		{"missing id", "?media_type=tv", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/users/u1/followed/check"+tt.query, "")
			expectStatus(t, rec, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			var check models.FollowedCheck
			decodeEnvelope(t, rec, &check)
			if check.Followed != tt.followed {
				t.Errorf("followed = %v, want %v", check.Followed, tt.followed)
			}
		})
	}
}

func TestShowProgress(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1/tv_progress/p1", docstore.Data{
		"tv_id": 1399,
		"seasons": map[string]any{
			"1": map[string]any{"episodes": map[string]any{"1": map[string]any{"watched": true}}},
		},
	})

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/tv-progress", "")
	expectStatus(t, rec, http.StatusOK)
	var all map[string]map[string]any
	decodeEnvelope(t, rec, &all)
	if _, ok := all["tv_1399"]; !ok || len(all) != 1 {
		t.Fatalf("tv progress = %v", all)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/u1/tv-progress/1399", "")
	expectStatus(t, rec, http.StatusOK)
	var show models.EpisodeProgress
	decodeEnvelope(t, rec, &show)
	if show.Message != "" || show.Progress["tv_id"] != float64(1399) {
		t.Errorf("show = %+v", show)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/u1/tv-progress/42", "")
	expectStatus(t, rec, http.StatusOK)
	show = models.EpisodeProgress{}
	decodeEnvelope(t, rec, &show)
	if show.Message != "No progress found for this show" || len(show.Progress) != 0 {
		t.Errorf("missing show = %+v", show)
	}
}

func TestUserEndpoints_CapacityExceeded(t *testing.T) {
	cfg := livecache.DefaultConfig()
	cfg.MaxSubscriptions = 1
	env := newTestEnv(t, cfg)

	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/users/u1/profile", ""), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/ratings", "")
	expectErrorCode(t, rec, http.StatusServiceUnavailable, "CAPACITY_EXCEEDED")
	if got := rec.Header().Get("Retry-After"); got != "120" {
		t.Errorf("Retry-After = %q, want 120", got)
	}

	// The existing listener keeps serving.
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/users/u1/profile", ""), http.StatusOK)
}

func TestUserEndpoints_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.store.FailSubscribe(errors.New("unavailable"))

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/comments", "")
	expectErrorCode(t, rec, http.StatusBadGateway, "UPSTREAM_ERROR")
	if env.manager.Stats().Active != 0 {
		t.Error("failed attach left a registry entry")
	}
}
