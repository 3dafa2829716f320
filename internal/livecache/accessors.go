// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"context"
	"fmt"

	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/metrics"
)

// Profile returns the user document.
func (m *Manager) Profile(ctx context.Context, userID string) (Record, error) {
	v, err := m.read(ctx, NewKey(KindProfile, userID))
	if err != nil {
		return nil, err
	}
	return v.(Record), nil
}

// Ratings returns the user's ratings keyed by "<media_type>_<media_id>".
func (m *Manager) Ratings(ctx context.Context, userID string) (map[string]Record, error) {
	v, err := m.read(ctx, NewKey(KindRatings, userID))
	if err != nil {
		return nil, err
	}
	return v.(map[string]Record), nil
}

// Comments returns the user's comments in arrival order.
func (m *Manager) Comments(ctx context.Context, userID string) ([]Record, error) {
	v, err := m.read(ctx, NewKey(KindComments, userID))
	if err != nil {
		return nil, err
	}
	return v.([]Record), nil
}

// Watchlists returns the user's watchlists. A record carries "media" once
// its media subscription delivered a snapshot.
func (m *Manager) Watchlists(ctx context.Context, userID string) ([]Record, error) {
	v, err := m.read(ctx, NewKey(KindWatchlists, userID))
	if err != nil {
		return nil, err
	}
	return v.([]Record), nil
}

// FollowedMedia returns followed titles keyed by "<media_type>_<media_id>".
func (m *Manager) FollowedMedia(ctx context.Context, userID string) (map[string]Record, error) {
	v, err := m.read(ctx, NewKey(KindFollowed, userID))
	if err != nil {
		return nil, err
	}
	return v.(map[string]Record), nil
}

// TVProgress returns episode progress keyed by "tv_<tv_id>".
func (m *Manager) TVProgress(ctx context.Context, userID string) (map[string]Record, error) {
	v, err := m.read(ctx, NewKey(KindTVProgress, userID))
	if err != nil {
		return nil, err
	}
	return v.(map[string]Record), nil
}

// read attaches key if needed, waits for the first snapshot when the
// subscription is not active yet, and returns a copy of the entry.
func (m *Manager) read(ctx context.Context, key Key) (any, error) {
	if key.UserID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidKey)
	}
	kind := string(key.Kind)

	m.mu.Lock()
	sub, err := m.attachLocked(ctx, key)
	var ready <-chan struct{}
	active := false
	if err == nil {
		ready = sub.ready
		active = sub.state == stateActive
	}
	m.mu.Unlock()
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key.String()).Msg("Listener attach failed")
		return nil, err
	}

	if active {
		metrics.RecordRead(kind, "hit", 0)
		return m.value(key), nil
	}

	start := m.clock.Now()
	timer := m.clock.NewTimer(m.cfg.SnapshotTimeout)
	defer timer.Stop()

	select {
	case <-ready:
		metrics.RecordRead(kind, "wait", m.clock.Now().Sub(start))
	case <-timer.Chan():
		metrics.RecordRead(kind, "timeout", m.cfg.SnapshotTimeout)
		logging.Ctx(ctx).Warn().
			Err(ErrSnapshotTimeout).
			Str("key", key.String()).
			Dur("timeout", m.cfg.SnapshotTimeout).
			Msg("Returning cached data before initial snapshot")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return m.value(key), nil
}

func (m *Manager) value(key Key) any {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()

	if v, ok := m.entries[key]; ok {
		return v.copy()
	}
	return emptyValue(key.Kind)
}
