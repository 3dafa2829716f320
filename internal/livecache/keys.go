// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"fmt"
	"strings"
)

// Kind is a cached resource kind.
type Kind string

const (
	KindProfile        Kind = "user"
	KindRatings        Kind = "ratings"
	KindComments       Kind = "comments"
	KindWatchlists     Kind = "watchlists"
	KindWatchlistMedia Kind = "watchlist_media"
	KindFollowed       Kind = "followed"
	KindTVProgress     Kind = "tv_progress"
)

// topLevelKinds are the kinds a user session starts, in start order.
var topLevelKinds = []Kind{
	KindProfile,
	KindRatings,
	KindComments,
	KindWatchlists,
	KindFollowed,
	KindTVProgress,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProfile, KindRatings, KindComments, KindWatchlists,
		KindWatchlistMedia, KindFollowed, KindTVProgress:
		return true
	}
	return false
}

// Key identifies one subscription and its cache entry. SubID is set only
// for KindWatchlistMedia, where it holds the watchlist id.
type Key struct {
	Kind   Kind
	UserID string
	SubID  string
}

// NewKey returns the key of a top-level kind for userID.
func NewKey(kind Kind, userID string) Key {
	return Key{Kind: kind, UserID: userID}
}

// MediaKey returns the key of a watchlist's media subscription.
func MediaKey(userID, watchlistID string) Key {
	return Key{Kind: KindWatchlistMedia, UserID: userID, SubID: watchlistID}
}

// parent returns the owning watchlists key of a media key.
func (k Key) parent() (Key, bool) {
	if k.Kind != KindWatchlistMedia {
		return Key{}, false
	}
	return NewKey(KindWatchlists, k.UserID), true
}

// String renders "kind:user" or "kind:user:sub".
func (k Key) String() string {
	if k.SubID != "" {
		return string(k.Kind) + ":" + k.UserID + ":" + k.SubID
	}
	return string(k.Kind) + ":" + k.UserID
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	for _, p := range parts {
		if p == "" {
			return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
	}

	k := Key{Kind: Kind(parts[0]), UserID: parts[1]}
	if !k.Kind.Valid() {
		return Key{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidKey, parts[0])
	}
	hasSub := len(parts) == 3
	if hasSub != (k.Kind == KindWatchlistMedia) {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	if hasSub {
		k.SubID = parts[2]
	}
	return k, nil
}
