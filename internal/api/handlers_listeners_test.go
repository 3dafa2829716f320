// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/models"
)

func TestInitializeListeners(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.set(t, "users/u1", docstore.Data{"name": "Moses"})

	rec := env.do(t, http.MethodPost, "/api/v1/listeners/initialize", `{"user_id":"u1"}`)
	expectStatus(t, rec, http.StatusOK)

	var res livecache.StartResult
	decodeEnvelope(t, rec, &res)
	if res.Status != livecache.StatusSuccess {
		t.Fatalf("result = %+v", res)
	}
	if got := env.manager.Stats().Active; got != 6 {
		t.Errorf("active listeners = %d, want 6", got)
	}
}

func TestInitializeListeners_Validation(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())

	tests := []struct {
		name string
		body string
	}{
		{"missing body", ""},
		{"malformed json", `{"user_id":`},
		{"missing user", `{}`},
		{"invalid user id", `{"user_id":"u/1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/listeners/initialize", tt.body)
			expectErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}
	if got := env.manager.Stats().Active; got != 0 {
		t.Errorf("rejected requests attached %d listeners", got)
	}
}

func TestInitializeListeners_InProgress(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.store.HoldSnapshots()

	first := make(chan int, 1)
	go func() {
		first <- env.do(t, http.MethodPost, "/api/v1/listeners/initialize", `{"user_id":"u1"}`).Code
	}()
	eventually(t, "first start attaching", func() bool { return env.manager.Stats().Active > 0 })

	rec := env.do(t, http.MethodPost, "/api/v1/listeners/initialize", `{"user_id":"u1"}`)
	expectStatus(t, rec, http.StatusAccepted)
	var res livecache.StartResult
	decodeEnvelope(t, rec, &res)
	if res.Status != livecache.StatusInProgress {
		t.Errorf("second start = %+v", res)
	}

	env.store.ReleaseSnapshots()
	if code := <-first; code != http.StatusOK {
		t.Errorf("first start status = %d", code)
	}
}

func TestInitializeListeners_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	env.store.FailSubscribe(errors.New("permission denied"))

	rec := env.do(t, http.MethodPost, "/api/v1/listeners/initialize", `{"user_id":"u1"}`)
	expectErrorCode(t, rec, http.StatusBadGateway, "UPSTREAM_ERROR")
}

func TestStopListeners(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/listeners/initialize", `{"user_id":"u1"}`), http.StatusOK)

	rec := env.do(t, http.MethodPost, "/api/v1/listeners/stop", "")
	expectStatus(t, rec, http.StatusOK)

	var res models.ListenerStopResult
	decodeEnvelope(t, rec, &res)
	if res.Stopped != 6 {
		t.Errorf("Stopped = %d, want 6", res.Stopped)
	}
	if env.manager.Stats().Active != 0 || env.store.OpenStreams() != 0 {
		t.Error("listeners survived stop")
	}

	// Stopping twice is harmless.
	expectStatus(t, env.do(t, http.MethodPost, "/api/v1/listeners/stop", ""), http.StatusOK)
}

func TestListListeners(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/users/u1/comments", ""), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/api/v1/listeners", "")
	expectStatus(t, rec, http.StatusOK)

	var stats livecache.Stats
	decodeEnvelope(t, rec, &stats)
	if stats.Active != 1 || len(stats.Listeners) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Listeners[0].Key != "comments:u1" || stats.Listeners[0].State != "active" {
		t.Errorf("listener = %+v", stats.Listeners[0])
	}
	if stats.Capacity != livecache.DefaultConfig().MaxSubscriptions {
		t.Errorf("capacity = %d", stats.Capacity)
	}
}

func TestDetachListener(t *testing.T) {
	env := newTestEnv(t, livecache.DefaultConfig())
	expectStatus(t, env.do(t, http.MethodGet, "/api/v1/users/u1/comments", ""), http.StatusOK)

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"detach existing", "comments:u1", http.StatusOK},
		{"already detached", "comments:u1", http.StatusNotFound},
		{"unknown kind", "bogus:u1", http.StatusBadRequest},
		{"missing user", "comments", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodDelete, "/api/v1/listeners/"+tt.key, "")
			expectStatus(t, rec, tt.status)
		})
	}
	if env.store.OpenStreams() != 0 {
		t.Error("detached stream still open")
	}
}
