// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"errors"
	"testing"
)

func TestKeyString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  Key
		want string
	}{
		{NewKey(KindProfile, "u1"), "user:u1"},
		{NewKey(KindTVProgress, "u1"), "tv_progress:u1"},
		{MediaKey("u1", "wl1"), "watchlist_media:u1:wl1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			parsed, err := ParseKey(tt.want)
			if err != nil {
				t.Fatalf("ParseKey(%q): %v", tt.want, err)
			}
			if parsed != tt.key {
				t.Errorf("ParseKey(%q) = %+v, want %+v", tt.want, parsed, tt.key)
			}
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"",
		"user",
		"user:",
		"bogus:u1",
		"ratings:u1:extra",
		"watchlist_media:u1",
		"a:b:c:d",
	} {
		if _, err := ParseKey(s); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParseKey(%q) error = %v, want ErrInvalidKey", s, err)
		}
	}
}

func TestKeyParent(t *testing.T) {
	t.Parallel()

	p, ok := MediaKey("u1", "wl1").parent()
	if !ok || p != NewKey(KindWatchlists, "u1") {
		t.Errorf("parent = %+v, %v", p, ok)
	}
	if _, ok := NewKey(KindRatings, "u1").parent(); ok {
		t.Error("top-level key should have no parent")
	}
}
