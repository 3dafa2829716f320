// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

// Package metrics holds the Prometheus collectors for Teleshow. Collectors
// register on the default registry at init through promauto and are
// exposed by the /metrics route.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Subscription Registry Metrics
	ListenersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teleshow_listeners_active",
			Help: "Current number of registered change subscriptions",
		},
	)

	ListenersCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teleshow_listeners_capacity",
			Help: "Maximum number of concurrent change subscriptions",
		},
	)

	ListenerAttaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teleshow_listener_attaches_total",
			Help: "Total number of subscription attach attempts",
		},
		[]string{"kind", "result"}, // result: "created", "capacity", "failure"
	)

	ListenerDetaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teleshow_listener_detaches_total",
			Help: "Total number of detached subscriptions",
		},
		[]string{"kind", "reason"}, // reason: "stale", "cascade", "manual", "shutdown"
	)

	ListenerDetachErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teleshow_listener_detach_errors_total",
			Help: "Total number of failed stream unsubscribe calls",
		},
	)

	ListenerRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teleshow_listener_repairs_total",
			Help: "Total number of closed streams re-created by the health monitor",
		},
		[]string{"kind", "result"}, // result: "success", "failure"
	)

	// Cache Metrics
	ChangeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teleshow_change_events_total",
			Help: "Total number of merged change events",
		},
		[]string{"kind", "type"}, // type: "snapshot", "added", "modified", "removed"
	)

	DroppedBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teleshow_dropped_batches_total",
			Help: "Total number of change batches dropped without merging",
		},
		[]string{"kind", "reason"}, // reason: "detached", "stale_generation", "orphaned"
	)

	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teleshow_cache_reads_total",
			Help: "Total number of accessor reads",
		},
		[]string{"kind", "path"}, // path: "hit", "wait", "timeout"
	)

	SnapshotWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teleshow_snapshot_wait_seconds",
			Help:    "Time accessors spent waiting for an initial snapshot",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	HealthChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teleshow_health_checks_total",
			Help: "Total number of health monitor passes",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAttach records the outcome of a registry attach for kind.
func RecordAttach(kind, result string) {
	ListenerAttaches.WithLabelValues(kind, result).Inc()
}

// RecordDetach records a removed subscription.
func RecordDetach(kind, reason string) {
	ListenerDetaches.WithLabelValues(kind, reason).Inc()
}

// RecordRepair records a health monitor repair attempt.
func RecordRepair(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ListenerRepairs.WithLabelValues(kind, result).Inc()
}

// RecordChange records one merged snapshot or change event.
func RecordChange(kind, changeType string) {
	ChangeEvents.WithLabelValues(kind, changeType).Inc()
}

// RecordDroppedBatch records a batch that was not merged.
func RecordDroppedBatch(kind, reason string) {
	DroppedBatches.WithLabelValues(kind, reason).Inc()
}

// RecordRead records an accessor read. wait is zero on the hit path.
func RecordRead(kind, path string, wait time.Duration) {
	CacheReads.WithLabelValues(kind, path).Inc()
	if path != "hit" {
		SnapshotWait.WithLabelValues(kind).Observe(wait.Seconds())
	}
}

// SetRegistrySize updates the registry gauges.
func SetRegistrySize(active, capacity int) {
	ListenersActive.Set(float64(active))
	ListenersCapacity.Set(float64(capacity))
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBreakerTransition records a circuit breaker state change. States
// are the gobreaker names: "closed", "half-open", "open".
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
