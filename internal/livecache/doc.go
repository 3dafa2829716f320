// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

/*
Package livecache keeps an in-process, read-optimized mirror of each user's
documents fresh by attaching change subscriptions to the document store.

# Overview

A Manager owns three pieces of shared state:

  - the subscription registry: CacheKey -> subscription (stream handle,
    restart function, state, last-active time), bounded by
    Config.MaxSubscriptions across all users and kinds
  - the cache: CacheKey -> merged view (profile record, keyed maps, ordered
    lists)
  - the health monitor goroutine, started by the first attach however it
    happens and stopped by ShutdownAllListeners

Resource accessors (Profile, Ratings, Comments, Watchlists, FollowedMedia,
TVProgress) attach a subscription on first use and wait up to
Config.SnapshotTimeout for its initial snapshot. Later calls return the
cached view immediately. Results are deep copies.

# Subscription lifecycle

	NEW -> ATTACHING -> ACTIVE
	ATTACHING/ACTIVE -> EVICTED (a later read starts over from NEW)

Each stream has one consumer goroutine that merges batches in delivery
order. A batch whose key was detached, or that belongs to a stream replaced
by a repair, is dropped.

# Watchlist media

Every watchlist record owns a child subscription on its media collection.
Children are attached when the record appears and detached in the same
locked step that removes it. Their entries live at record["media"] inside
the parent view.

# Locking

The registry mutex is always taken before the cache lock. Neither is held
while an accessor waits for a snapshot, or while the monitor re-subscribes a
closed stream. Streams are unsubscribed after both locks are released.

# Usage

	mgr := livecache.NewManager(store, livecache.DefaultConfig())
	defer mgr.ShutdownAllListeners()

	res := mgr.StartAllListenersForUser(ctx, uid)
	ratings, err := mgr.Ratings(ctx, uid)
	if errors.Is(err, livecache.ErrCapacityExceeded) {
	    // retry later
	}
*/
package livecache
