// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/models"
)

// topGenreCount is how many genres UserStats reports.
const topGenreCount = 5

// userData is everything UserStats is computed from.
type userData struct {
	ratings    map[string]livecache.Record
	comments   []livecache.Record
	followed   map[string]livecache.Record
	watchlists []livecache.Record
	tvProgress map[string]livecache.Record
}

// UserStats summarizes a user's ratings, comments, followed titles,
// watchlists and episode progress. The five reads run concurrently.
func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var d userData
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		d.ratings, err = h.cache.Ratings(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		d.comments, err = h.cache.Comments(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		d.followed, err = h.cache.FollowedMedia(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		d.watchlists, err = h.cache.Watchlists(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		d.tvProgress, err = h.cache.TVProgress(ctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		h.respondCacheError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, computeUserStats(d), start)
}

func computeUserStats(d userData) models.UserStats {
	s := models.UserStats{
		TotalComments:  len(d.comments),
		TotalRatings:   len(d.ratings),
		FollowedCount:  len(d.followed),
		WatchlistCount: len(d.watchlists),
		TopGenres:      []models.GenreCount{},
	}

	if len(d.ratings) > 0 {
		var sum float64
		for _, rating := range d.ratings {
			v, _ := toFloat(rating["rating"])
			sum += v
		}
		s.AvgRating = sum / float64(len(d.ratings))
	}

	// Map order is random; sort keys so genre ties resolve the same way
	// every time.
	followedKeys := make([]string, 0, len(d.followed))
	for k := range d.followed {
		followedKeys = append(followedKeys, k)
	}
	sort.Strings(followedKeys)

	var genres []models.GenreCount
	genreIndex := make(map[string]int)
	for _, k := range followedKeys {
		media := d.followed[k]
		switch media["media_type"] {
		case "movie":
			s.MovieCount++
		case "tv":
			s.TVCount++
		}

		list, _ := media["genres"].([]any)
		for _, g := range list {
			gm, _ := g.(map[string]any)
			name, _ := gm["name"].(string)
			if name == "" {
				continue
			}
			if i, ok := genreIndex[name]; ok {
				genres[i].Count++
				continue
			}
			genreIndex[name] = len(genres)
			genres = append(genres, models.GenreCount{Name: name, Count: 1})
		}
	}
	sort.SliceStable(genres, func(i, j int) bool {
		return genres[i].Count > genres[j].Count
	})
	if len(genres) > topGenreCount {
		genres = genres[:topGenreCount]
	}
	if len(genres) > 0 {
		s.TopGenres = genres
	}

	for _, show := range d.tvProgress {
		seasons, _ := show["seasons"].(map[string]any)
		for _, sv := range seasons {
			season, _ := sv.(map[string]any)
			episodes, _ := season["episodes"].(map[string]any)

			all := len(episodes) > 0
			for _, ev := range episodes {
				ep, _ := ev.(map[string]any)
				if isTrue(ep["watched"]) {
					s.EpisodesWatched++
				} else {
					all = false
				}
			}
			if all {
				s.TotalSeasonsWatched++
			}
		}
	}

	minutes := float64(s.EpisodesWatched * models.MinutesPerEpisode)
	s.WatchTimeHours = math.Round(minutes/60*10) / 10

	return s
}

// toFloat reads a numeric document field. Documents decoded from JSON
// carry float64; documents written in process may carry Go integers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// isTrue accepts a boolean true or a nonzero number.
func isTrue(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	f, ok := toFloat(v)
	return ok && f != 0
}
