// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/teleshow/internal/models"
)

// Health reports service status. The service is degraded while the store
// circuit breaker is open, and the response is then 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats := h.cache.Stats()

	status := models.HealthStatus{
		Status:         "healthy",
		Version:        h.version,
		StoreBackend:   h.backend,
		Listeners:      stats.Active,
		Capacity:       stats.Capacity,
		MonitorRunning: stats.MonitorRunning,
		Uptime:         time.Since(h.startTime).Seconds(),
	}

	code := http.StatusOK
	if h.breaker != nil {
		status.StoreBreaker = h.breaker.BreakerState()
		if status.StoreBreaker == "open" {
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	respondSuccess(w, code, status, start)
}

// Performance returns per-route latency statistics over the recent
// request window.
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.perf == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Performance monitoring is disabled", nil)
		return
	}
	respondSuccess(w, http.StatusOK, h.perf.GetStats(), start)
}
