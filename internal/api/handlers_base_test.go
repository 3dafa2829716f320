// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/docstore/memstore"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/models"
)

// testEnv is a router over a real manager backed by an in-process store.
type testEnv struct {
	store   *memstore.Store
	manager *livecache.Manager
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg livecache.Config, opts ...HandlerOption) *testEnv {
	t.Helper()
	store := memstore.New()
	m := livecache.NewManager(store, cfg)
	t.Cleanup(m.ShutdownAllListeners)

	chiCfg := DefaultChiMiddlewareConfig()
	chiCfg.RateLimitDisabled = true
	opts = append([]HandlerOption{WithWriter(store)}, opts...)
	router := NewRouter(NewHandler(m, "memory", opts...), NewChiMiddleware(chiCfg))

	return &testEnv{store: store, manager: m, handler: router.SetupChi()}
}

func (e *testEnv) set(t *testing.T, p string, data docstore.Data) {
	t.Helper()
	if err := e.store.Set(context.Background(), p, data); err != nil {
		t.Fatalf("Set %s: %v", p, err)
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors models.APIResponse with raw data for per-test decoding.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v (data %s)", err, env.Data)
		}
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func expectErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	env := decodeEnvelope(t, rec, nil)
	if env.Status != "error" || env.Error == nil || env.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", env.Error, code)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
