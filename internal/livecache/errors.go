// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import "errors"

var (
	// ErrCapacityExceeded is returned when the registry already holds
	// Config.MaxSubscriptions subscriptions. It is retryable.
	ErrCapacityExceeded = errors.New("listener capacity exceeded")

	// ErrAttachFailure is returned when the store rejects a subscribe
	// call. Nothing is left in the registry.
	ErrAttachFailure = errors.New("listener attach failed")

	// ErrSnapshotTimeout is logged when an accessor gives up waiting for
	// the first snapshot and returns what is cached. Never returned.
	ErrSnapshotTimeout = errors.New("initial snapshot timed out")

	// ErrDetachFailure is logged when unsubscribing a stream fails during
	// eviction or shutdown. Never returned.
	ErrDetachFailure = errors.New("listener detach failed")

	// ErrInvalidKey is returned by ParseKey.
	ErrInvalidKey = errors.New("invalid listener key")

	// ErrShutdown is reported by a StartAllListenersForUser that was still
	// running when ShutdownAllListeners cleared the registry.
	ErrShutdown = errors.New("listeners shut down during start")
)
