// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/metrics"
)

// StartStatus is the outcome of StartAllListenersForUser.
type StartStatus string

const (
	StatusSuccess    StartStatus = "success"
	StatusInProgress StartStatus = "in_progress"
	StatusError      StartStatus = "error"
)

// StartResult is returned by StartAllListenersForUser.
type StartResult struct {
	Status  StartStatus `json:"status"`
	Message string      `json:"message"`

	// Err is the failure behind StatusError, for callers that map it.
	Err error `json:"-"`
}

// StartAllListenersForUser attaches (or touches) the six top-level
// subscriptions of userID. A call for a user whose start is still running
// returns StatusInProgress without attaching anything. If
// ShutdownAllListeners runs before the attaches finish, the result is
// StatusError wrapping ErrShutdown; attaches that land after the shutdown
// stay registered and are maintained like any other read.
func (m *Manager) StartAllListenersForUser(ctx context.Context, userID string) StartResult {
	m.initMu.Lock()
	if _, busy := m.initializing[userID]; busy {
		m.initMu.Unlock()
		logging.Ctx(ctx).Info().Str("user_id", userID).Msg("Initialization already in progress, skipping")
		return StartResult{Status: StatusInProgress, Message: "Initialization already in progress"}
	}
	m.initializing[userID] = struct{}{}
	m.initMu.Unlock()

	defer func() {
		m.initMu.Lock()
		delete(m.initializing, userID)
		m.initMu.Unlock()
	}()

	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}

	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range topLevelKinds {
		key := NewKey(kind, userID)
		g.Go(func() error {
			_, err := m.read(gctx, key)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("Error starting listeners")
		return StartResult{Status: StatusError, Message: err.Error(), Err: err}
	}

	m.mu.Lock()
	interrupted := m.epoch != epoch
	m.mu.Unlock()
	if interrupted {
		logging.Ctx(ctx).Warn().Str("user_id", userID).Msg("Listeners shut down while starting")
		return StartResult{Status: StatusError, Message: ErrShutdown.Error(), Err: ErrShutdown}
	}

	logging.Ctx(ctx).Info().Str("user_id", userID).Msg("All listeners initialized")
	return StartResult{Status: StatusSuccess, Message: "All listeners initialized"}
}

// ShutdownAllListeners stops the health monitor, clears the registry and
// the cache, and unsubscribes every stream best-effort. It is idempotent
// and the manager can be used again afterwards.
func (m *Manager) ShutdownAllListeners() {
	m.mu.Lock()
	// Signalled under mu so an attach after the unlock starts a fresh
	// monitor instead of finding the old one still marked running.
	monitorDone := m.signalMonitor()
	m.epoch++

	subs := make([]*subscription, 0, len(m.subs))
	for _, key := range sortedKeys(m.subs) {
		sub := m.subs[key]
		sub.state = stateEvicted
		sub.markReady()
		subs = append(subs, sub)
	}
	m.subs = make(map[Key]*subscription)

	m.cacheMu.Lock()
	m.entries = make(map[Key]view)
	m.cacheMu.Unlock()

	metrics.SetRegistrySize(0, m.cfg.MaxSubscriptions)
	m.mu.Unlock()

	m.joinMonitor(monitorDone)

	logging.Info().Int("listeners", len(subs)).Msg("Shutting down active listeners")
	for _, sub := range subs {
		metrics.RecordDetach(string(sub.key.Kind), "shutdown")
	}
	m.unsubscribe(subs)
}
