// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"time"

	"github.com/juju/clock"
)

// Collections names the store paths the accessors subscribe to.
type Collections struct {
	Users      string // users/{uid} holds the profile document
	Ratings    string // top-level, filtered by user_id
	Comments   string // top-level, filtered by user_id
	Watchlists string // users/{uid}/{Watchlists}
	Media      string // users/{uid}/{Watchlists}/{wl}/{Media}
	Followed   string // users/{uid}/{Followed}
	TVProgress string // users/{uid}/{TVProgress}
}

// Config tunes the manager.
type Config struct {
	// MaxSubscriptions bounds the registry across all users and kinds.
	MaxSubscriptions int

	// SnapshotTimeout bounds an accessor's wait for the first snapshot.
	SnapshotTimeout time.Duration

	HealthCheckInterval time.Duration

	// StalenessThreshold is the idle time after which the health monitor
	// evicts a subscription.
	StalenessThreshold time.Duration

	// MonitorJoinTimeout bounds how long shutdown waits for the monitor.
	MonitorJoinTimeout time.Duration

	Collections Collections
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxSubscriptions:    50,
		SnapshotTimeout:     5 * time.Second,
		HealthCheckInterval: 120 * time.Second,
		StalenessThreshold:  300 * time.Second,
		MonitorJoinTimeout:  time.Second,
		Collections: Collections{
			Users:      "users",
			Ratings:    "Ratings",
			Comments:   "Comments",
			Watchlists: "watchlists",
			Media:      "media",
			Followed:   "followed_media",
			TVProgress: "tv_progress",
		},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSubscriptions <= 0 {
		c.MaxSubscriptions = d.MaxSubscriptions
	}
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = d.SnapshotTimeout
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = d.HealthCheckInterval
	}
	if c.StalenessThreshold <= 0 {
		c.StalenessThreshold = d.StalenessThreshold
	}
	if c.MonitorJoinTimeout <= 0 {
		c.MonitorJoinTimeout = d.MonitorJoinTimeout
	}
	cols := &c.Collections
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&cols.Users, d.Collections.Users},
		{&cols.Ratings, d.Collections.Ratings},
		{&cols.Comments, d.Collections.Comments},
		{&cols.Watchlists, d.Collections.Watchlists},
		{&cols.Media, d.Collections.Media},
		{&cols.Followed, d.Collections.Followed},
		{&cols.TVProgress, d.Collections.TVProgress},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
	return c
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, for tests.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}
