// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/metrics"
)

type state int

const (
	stateAttaching state = iota
	stateActive
	stateEvicted
)

func (s state) String() string {
	switch s {
	case stateAttaching:
		return "attaching"
	case stateActive:
		return "active"
	case stateEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// subscription is one registry entry. All fields are guarded by
// Manager.mu.
type subscription struct {
	key        Key
	stream     docstore.Stream
	restart    func(context.Context) (docstore.Stream, error)
	state      state
	lastActive time.Time

	// gen identifies the stream whose batches may be merged; it changes
	// on repair so a replaced stream's leftovers are dropped.
	gen uint64

	children map[Key]struct{}

	// ready is closed once the first batch is merged or the
	// subscription is evicted.
	ready chan struct{}
}

func (s *subscription) markReady() {
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
}

// Manager is the live cache: subscription registry, cache, accessors,
// health monitor and lifecycle controller.
type Manager struct {
	cfg   Config
	store docstore.Store
	clock clock.Clock

	mu   sync.Mutex
	subs map[Key]*subscription
	gen  uint64

	// epoch counts ShutdownAllListeners calls.
	epoch uint64

	// cacheMu is taken after mu, never before.
	cacheMu sync.RWMutex
	entries map[Key]view

	initMu       sync.Mutex
	initializing map[string]struct{}

	monitorMu   sync.Mutex
	monitorStop chan struct{}
	monitorDone chan struct{}
}

// NewManager returns an empty manager reading from store. Zero config
// fields take their defaults.
func NewManager(store docstore.Store, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:          cfg.withDefaults(),
		store:        store,
		clock:        clock.WallClock,
		subs:         make(map[Key]*subscription),
		entries:      make(map[Key]view),
		initializing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics.SetRegistrySize(0, m.cfg.MaxSubscriptions)
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// refFor returns the store reference a key subscribes to.
func (m *Manager) refFor(key Key) docstore.Ref {
	c := m.cfg.Collections
	switch key.Kind {
	case KindProfile:
		return docstore.DocumentRef(docstore.JoinPath(c.Users, key.UserID))
	case KindRatings:
		return docstore.CollectionRef(c.Ratings).Where("user_id", key.UserID)
	case KindComments:
		return docstore.CollectionRef(c.Comments).Where("user_id", key.UserID)
	case KindWatchlists:
		return docstore.CollectionRef(docstore.JoinPath(c.Users, key.UserID, c.Watchlists))
	case KindWatchlistMedia:
		return docstore.CollectionRef(docstore.JoinPath(c.Users, key.UserID, c.Watchlists, key.SubID, c.Media))
	case KindFollowed:
		return docstore.CollectionRef(docstore.JoinPath(c.Users, key.UserID, c.Followed))
	default:
		return docstore.CollectionRef(docstore.JoinPath(c.Users, key.UserID, c.TVProgress))
	}
}

// attachLocked returns the subscription for key, creating it if needed.
// An existing subscription is touched. The capacity check, the store
// subscribe call and the insert happen under one hold of m.mu.
func (m *Manager) attachLocked(ctx context.Context, key Key) (*subscription, error) {
	if sub, ok := m.subs[key]; ok {
		m.touchLocked(sub)
		return sub, nil
	}

	kind := string(key.Kind)
	if n := len(m.subs); n >= m.cfg.MaxSubscriptions {
		metrics.RecordAttach(kind, "capacity")
		return nil, fmt.Errorf("%w: %d of %d in use, cannot attach %s",
			ErrCapacityExceeded, n, m.cfg.MaxSubscriptions, key)
	}

	ref := m.refFor(key)
	restart := func(ctx context.Context) (docstore.Stream, error) {
		return m.store.Subscribe(ctx, ref)
	}
	stream, err := restart(ctx)
	if err != nil {
		metrics.RecordAttach(kind, "failure")
		return nil, fmt.Errorf("%w: %s: %w", ErrAttachFailure, key, err)
	}

	m.gen++
	sub := &subscription{
		key:        key,
		stream:     stream,
		restart:    restart,
		state:      stateAttaching,
		lastActive: m.clock.Now(),
		gen:        m.gen,
		children:   make(map[Key]struct{}),
		ready:      make(chan struct{}),
	}
	m.subs[key] = sub
	if pk, ok := key.parent(); ok {
		if parent, ok := m.subs[pk]; ok {
			parent.children[key] = struct{}{}
		}
	}

	metrics.RecordAttach(kind, "created")
	metrics.SetRegistrySize(len(m.subs), m.cfg.MaxSubscriptions)
	logging.Info().Str("key", key.String()).Str("ref", ref.String()).Msg("Attached listener")

	go m.consume(sub.gen, key, stream)

	// Every registered subscription must be reachable by the monitor,
	// however it was attached.
	m.ensureMonitor()
	return sub, nil
}

// detachLocked removes key, its children and their cache entries. The
// returned subscriptions still need their streams unsubscribed, which
// callers do after releasing the locks.
func (m *Manager) detachLocked(key Key, reason string) []*subscription {
	sub, ok := m.subs[key]
	if !ok {
		return nil
	}

	var out []*subscription
	for child := range sub.children {
		out = append(out, m.detachLocked(child, "cascade")...)
	}

	delete(m.subs, key)
	sub.state = stateEvicted
	sub.markReady()

	pk, hasParent := key.parent()
	if hasParent {
		if parent, ok := m.subs[pk]; ok {
			delete(parent.children, key)
		}
	}

	m.cacheMu.Lock()
	delete(m.entries, key)
	if hasParent {
		if wv, ok := m.entries[pk].(*watchlistView); ok {
			wv.clearMedia(key.SubID)
		}
	}
	m.cacheMu.Unlock()

	metrics.RecordDetach(string(key.Kind), reason)
	metrics.SetRegistrySize(len(m.subs), m.cfg.MaxSubscriptions)
	return append(out, sub)
}

// unsubscribe closes detached streams. Failures are logged and counted;
// the registry slots are already free.
func (m *Manager) unsubscribe(subs []*subscription) {
	for _, sub := range subs {
		if err := sub.stream.Unsubscribe(); err != nil {
			metrics.ListenerDetachErrors.Inc()
			logging.Error().
				Err(fmt.Errorf("%w: %w", ErrDetachFailure, err)).
				Str("key", sub.key.String()).
				Msg("Error detaching listener")
			continue
		}
		logging.Info().Str("key", sub.key.String()).Msg("Detached listener")
	}
}

// touchLocked refreshes lastActive. Media children are read through their
// parent, so they are touched with it.
func (m *Manager) touchLocked(sub *subscription) {
	now := m.clock.Now()
	sub.lastActive = now
	for ck := range sub.children {
		if child, ok := m.subs[ck]; ok {
			child.lastActive = now
		}
	}
}

// consume is the single merge path of one stream. It ends when the stream
// is unsubscribed or breaks.
func (m *Manager) consume(gen uint64, key Key, stream docstore.Stream) {
	for batch := range stream.Events() {
		m.apply(gen, key, batch)
	}
}

// apply merges one batch atomically.
func (m *Manager) apply(gen uint64, key Key, b docstore.Batch) {
	kind := string(key.Kind)

	m.mu.Lock()
	sub, ok := m.subs[key]
	if !ok || sub.gen != gen {
		m.mu.Unlock()
		reason := "detached"
		if ok {
			reason = "stale_generation"
		}
		metrics.RecordDroppedBatch(kind, reason)
		logging.Debug().Str("key", key.String()).Str("reason", reason).Msg("Dropping change batch")
		return
	}
	m.touchLocked(sub)

	if b.Empty() {
		m.mu.Unlock()
		logging.Debug().Str("key", key.String()).Msg("Empty batch after initial load, ignoring")
		return
	}

	m.cacheMu.Lock()
	merged := m.mergeLocked(key, b)
	m.cacheMu.Unlock()

	if !merged {
		m.mu.Unlock()
		metrics.RecordDroppedBatch(kind, "orphaned")
		logging.Error().Str("key", key.String()).Msg("Watchlist not cached, dropping media batch")
		return
	}

	if sub.state == stateAttaching {
		sub.state = stateActive
		sub.markReady()
	}

	var detached []*subscription
	if key.Kind == KindWatchlists {
		detached = m.reconcileMediaLocked(sub)
	}
	m.mu.Unlock()

	m.unsubscribe(detached)
}

// mergeLocked applies b to key's entry, creating it on the first batch.
// Media batches merge into the owning watchlist record and report false
// if it is gone. Callers hold mu and cacheMu.
func (m *Manager) mergeLocked(key Key, b docstore.Batch) bool {
	if key.Kind == KindWatchlistMedia {
		pk, _ := key.parent()
		wv, ok := m.entries[pk].(*watchlistView)
		if !ok || !wv.applyMedia(key, key.SubID, b) {
			return false
		}
	} else {
		v, ok := m.entries[key]
		if !ok {
			v = newView(key.Kind)
			m.entries[key] = v
		}
		v.apply(key, b)
	}

	kind := string(key.Kind)
	if b.Snapshot {
		metrics.RecordChange(kind, "snapshot")
	}
	for _, ch := range b.Changes {
		metrics.RecordChange(kind, ch.Type.String())
	}
	return true
}

// reconcileMediaLocked makes the media children of a watchlists
// subscription match the cached watchlist records: records without a
// child get one, children without a record are detached. Runs under the
// same hold of mu as the merge that changed the records.
func (m *Manager) reconcileMediaLocked(parent *subscription) []*subscription {
	m.cacheMu.RLock()
	var ids []string
	if wv, ok := m.entries[parent.key].(*watchlistView); ok {
		ids = wv.ids()
	}
	m.cacheMu.RUnlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var detached []*subscription
	for ck := range parent.children {
		if _, ok := want[ck.SubID]; !ok {
			detached = append(detached, m.detachLocked(ck, "cascade")...)
		}
	}

	for _, id := range ids {
		ck := MediaKey(parent.key.UserID, id)
		if _, ok := m.subs[ck]; ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SnapshotTimeout)
		_, err := m.attachLocked(ctx, ck)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Str("key", ck.String()).Msg("Watchlist media listener not attached")
		}
	}
	return detached
}

// DetachListener removes one subscription (and its media children) and
// its cache entry. It reports whether anything was removed.
func (m *Manager) DetachListener(key Key) bool {
	m.mu.Lock()
	detached := m.detachLocked(key, "manual")
	m.mu.Unlock()

	m.unsubscribe(detached)
	return len(detached) > 0
}

// Size returns the number of registered subscriptions.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// ListenerInfo describes one registry entry.
type ListenerInfo struct {
	Key         string  `json:"key"`
	Kind        Kind    `json:"kind"`
	UserID      string  `json:"user_id"`
	State       string  `json:"state"`
	IdleSeconds float64 `json:"idle_seconds"`
	Closed      bool    `json:"closed"`
	Children    int     `json:"children,omitempty"`
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Active         int            `json:"active"`
	Capacity       int            `json:"capacity"`
	MonitorRunning bool           `json:"monitor_running"`
	Listeners      []ListenerInfo `json:"listeners"`
}

// Stats returns the registry contents sorted by key.
func (m *Manager) Stats() Stats {
	running := m.MonitorRunning()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	st := Stats{
		Active:         len(m.subs),
		Capacity:       m.cfg.MaxSubscriptions,
		MonitorRunning: running,
		Listeners:      make([]ListenerInfo, 0, len(m.subs)),
	}
	for _, key := range sortedKeys(m.subs) {
		sub := m.subs[key]
		st.Listeners = append(st.Listeners, ListenerInfo{
			Key:         key.String(),
			Kind:        key.Kind,
			UserID:      key.UserID,
			State:       sub.state.String(),
			IdleSeconds: now.Sub(sub.lastActive).Seconds(),
			Closed:      sub.stream.IsClosed(),
			Children:    len(sub.children),
		})
	}
	return st
}

func sortedKeys(subs map[Key]*subscription) []Key {
	keys := make([]Key, 0, len(subs))
	for k := range subs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
