// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAttach(t *testing.T) {
	before := testutil.ToFloat64(ListenerAttaches.WithLabelValues("ratings", "created"))
	RecordAttach("ratings", "created")
	RecordAttach("ratings", "created")

	if got := testutil.ToFloat64(ListenerAttaches.WithLabelValues("ratings", "created")); got != before+2 {
		t.Errorf("attaches = %v, want %v", got, before+2)
	}
}

func TestRecordRepair(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("store unavailable"), "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ListenerRepairs.WithLabelValues("comments", tt.result)
			before := testutil.ToFloat64(c)
			RecordRepair("comments", tt.err)
			if got := testutil.ToFloat64(c); got != before+1 {
				t.Errorf("repairs{%s} = %v, want %v", tt.result, got, before+1)
			}
		})
	}
}

func TestRecordRead(t *testing.T) {
	hit := CacheReads.WithLabelValues("user", "hit")
	before := testutil.ToFloat64(hit)
	RecordRead("user", "hit", 0)
	RecordRead("user", "wait", 20*time.Millisecond)

	if got := testutil.ToFloat64(hit); got != before+1 {
		t.Errorf("hit reads = %v, want %v", got, before+1)
	}
	if n := testutil.CollectAndCount(SnapshotWait); n == 0 {
		t.Error("expected snapshot wait observations")
	}
}

func TestSetRegistrySize(t *testing.T) {
	SetRegistrySize(7, 50)

	if got := testutil.ToFloat64(ListenersActive); got != 7 {
		t.Errorf("active = %v, want 7", got)
	}
	if got := testutil.ToFloat64(ListenersCapacity); got != 50 {
		t.Errorf("capacity = %v, want 50", got)
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	tests := []struct {
		to   string
		want float64
	}{
		{"open", 2},
		{"half-open", 1},
		{"closed", 0},
	}
	for _, tt := range tests {
		RecordBreakerTransition("docstore-subscribe", "closed", tt.to)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("docstore-subscribe")); got != tt.want {
			t.Errorf("state after %s = %v, want %v", tt.to, got, tt.want)
		}
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordChange("watchlists", "added")
			RecordDetach("watchlist_media", "cascade")
			TrackActiveRequest(true)
			TrackActiveRequest(false)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(ChangeEvents.WithLabelValues("watchlists", "added")); got < 50 {
		t.Errorf("change events = %v, want >= 50", got)
	}
}
