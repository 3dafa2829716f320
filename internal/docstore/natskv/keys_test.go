// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package natskv

import (
	"errors"
	"testing"

	"github.com/tomtom215/teleshow/internal/docstore"
)

func TestWatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ref     docstore.Ref
		want    string
		wantErr bool
	}{
		{"document", docstore.DocumentRef("users/u1"), "users.u1", false},
		{"collection", docstore.CollectionRef("users/u1/watchlists"), "users.u1.watchlists.*", false},
		{"filtered", docstore.CollectionRef("Ratings").Where("user_id", "u1"), "Ratings.*", false},
		{"dot in segment", docstore.DocumentRef("users/a.b"), "", true},
		{"wildcard", docstore.CollectionRef("users/*"), "", true},
		{"empty segment", docstore.CollectionRef("users//x"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := watchPattern(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, docstore.ErrInvalidPath) {
					t.Fatalf("expected ErrInvalidPath, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("watchPattern = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocID(t *testing.T) {
	t.Parallel()

	if got := docID("users.u1.watchlists.w1"); got != "w1" {
		t.Errorf("docID = %q, want w1", got)
	}
	if got := docID("single"); got != "single" {
		t.Errorf("docID = %q, want single", got)
	}
}
