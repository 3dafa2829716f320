// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package models

import "time"

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status         string  `json:"status"`
	Version        string  `json:"version"`
	StoreBackend   string  `json:"store_backend"`
	StoreBreaker   string  `json:"store_breaker,omitempty"`
	Listeners      int     `json:"listeners"`
	Capacity       int     `json:"capacity"`
	MonitorRunning bool    `json:"monitor_running"`
	Uptime         float64 `json:"uptime_seconds"`
}

// InitializeListenersRequest is the body of POST /api/v1/listeners/initialize.
type InitializeListenersRequest struct {
	UserID string `json:"user_id" validate:"required,docid"`
}

// FollowedCheckRequest holds the query of the followed check endpoint.
type FollowedCheckRequest struct {
	MediaType string `json:"media_type" validate:"required,mediatype"`
	MediaID   string `json:"media_id" validate:"required,docid"`
}

// FollowedCheck reports whether a title is followed.
type FollowedCheck struct {
	Followed bool `json:"followed"`
}

// FollowedMedia splits followed titles by media type. Records of other
// types are left out.
type FollowedMedia struct {
	TV     []map[string]any `json:"followed_tv"`
	Movies []map[string]any `json:"followed_movies"`
}

// WatchlistSummary is one watchlist without its media.
type WatchlistSummary struct {
	ID        string `json:"id"`
	Name      any    `json:"name"`
	CreatedAt any    `json:"created_at"`
	UpdatedAt any    `json:"updated_at"`
}

// WatchlistMediaItem is one title inside a watchlist.
type WatchlistMediaItem struct {
	ID            string `json:"id"`
	MediaID       any    `json:"media_id"`
	MediaType     any    `json:"media_type"`
	Title         any    `json:"title"`
	Overview      any    `json:"overview"`
	ReleaseDate   any    `json:"release_date"`
	PosterPath    any    `json:"poster_path"`
	AddedAt       any    `json:"added_at"`
	Status        any    `json:"status"`
	WatchlistID   string `json:"watchlist_id"`
	WatchlistName any    `json:"watchlist_name"`
}

// DefaultWatchStatus is reported for watchlist media without a status.
const DefaultWatchStatus = "Plan to watch"

// EpisodeProgress is the progress of one show. Message is set when the
// user has no progress for it.
type EpisodeProgress struct {
	Progress map[string]any `json:"progress"`
	Message  string         `json:"message,omitempty"`
}

// GenreCount is one entry of UserStats.TopGenres.
type GenreCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UserStats summarizes a user's activity.
type UserStats struct {
	TotalComments       int          `json:"total_comments"`
	TotalRatings        int          `json:"total_ratings"`
	AvgRating           float64      `json:"avg_rating"`
	FollowedCount       int          `json:"followed_count"`
	WatchlistCount      int          `json:"watchlist_count"`
	MovieCount          int          `json:"movie_count"`
	TVCount             int          `json:"tv_count"`
	TotalSeasonsWatched int          `json:"total_seasons_watched"`
	EpisodesWatched     int          `json:"episodes_watched"`
	WatchTimeHours      float64      `json:"watch_time_hours"`
	TopGenres           []GenreCount `json:"top_genres"`
}

// MinutesPerEpisode is the estimate behind UserStats.WatchTimeHours.
const MinutesPerEpisode = 40

// ListenerStopResult is the body of POST /api/v1/listeners/stop.
type ListenerStopResult struct {
	Stopped   int       `json:"stopped"`
	StoppedAt time.Time `json:"stopped_at"`
}

// FollowMediaRequest is the body of POST /users/{userID}/followed.
type FollowMediaRequest struct {
	MediaID     int64  `json:"media_id" validate:"required,gt=0"`
	MediaType   string `json:"media_type" validate:"required,mediatype"`
	Title       string `json:"title" validate:"max=500"`
	PosterPath  string `json:"poster_path" validate:"max=500"`
	ReleaseDate string `json:"release_date" validate:"max=32"`
	Genres      []any  `json:"genres" validate:"max=50"`
	Keywords    []any  `json:"keywords" validate:"max=200"`
	Producers   []any  `json:"producers" validate:"max=100"`
}

// WatchlistMediaInfo describes the title added to a watchlist.
type WatchlistMediaInfo struct {
	ID          int64  `json:"id" validate:"required,gt=0"`
	MediaName   string `json:"media_name" validate:"max=500"`
	Overview    string `json:"overview" validate:"max=5000"`
	ReleaseDate string `json:"release_date" validate:"max=32"`
	MediaType   string `json:"media_type" validate:"required,mediatype"`
	PosterPath  string `json:"poster_path" validate:"max=500"`
}

// AddToWatchlistRequest is the body of POST /users/{userID}/watchlists. The
// watchlist is found by name and created when missing.
type AddToWatchlistRequest struct {
	WatchlistName string             `json:"watchlist_name" validate:"required,max=100"`
	MediaInfo     WatchlistMediaInfo `json:"media_info" validate:"required"`
}

// WatchlistAddResult is returned after a title was added to a watchlist.
type WatchlistAddResult struct {
	WatchlistID      string `json:"watchlist_id"`
	MediaID          int64  `json:"media_id"`
	WatchlistCreated bool   `json:"watchlist_created"`
}

// UpdateMediaStatusRequest is the body of
// PATCH /users/{userID}/watchlists/{watchlistID}/media/{mediaID}.
type UpdateMediaStatusRequest struct {
	Status string `json:"status" validate:"required,max=64"`
}

// EpisodeWatchedRequest is the body of the episode progress endpoint.
type EpisodeWatchedRequest struct {
	Watched *bool `json:"watched" validate:"required"`
}

// WriteResult acknowledges a write.
type WriteResult struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
	Count   int    `json:"count,omitempty"`
}
