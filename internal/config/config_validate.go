// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks that configuration values are present and in range.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateListeners,
		c.validateCollections,
		c.validateStore,
		c.validateRateLimits,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

// Live cache limits.
const (
	maxSubscriptionsLimit = 10000
	minSnapshotTimeout    = 100 * time.Millisecond
	maxSnapshotTimeout    = time.Minute
	minHealthInterval     = time.Second
)

// validateListeners checks the live cache tunables. The staleness
// threshold must exceed the monitor interval or every listener idle for
// one interval would already be stale.
func (c *Config) validateListeners() error {
	l := c.Listeners
	if l.MaxSubscriptions < 1 || l.MaxSubscriptions > maxSubscriptionsLimit {
		return fmt.Errorf("LISTENERS_MAX_SUBSCRIPTIONS must be between 1 and %d", maxSubscriptionsLimit)
	}
	if l.SnapshotTimeout < minSnapshotTimeout || l.SnapshotTimeout > maxSnapshotTimeout {
		return fmt.Errorf("LISTENERS_SNAPSHOT_TIMEOUT must be between %v and %v", minSnapshotTimeout, maxSnapshotTimeout)
	}
	if l.HealthCheckInterval < minHealthInterval {
		return fmt.Errorf("LISTENERS_HEALTH_INTERVAL must be at least %v", minHealthInterval)
	}
	if l.StalenessThreshold <= l.HealthCheckInterval {
		return fmt.Errorf("LISTENERS_STALENESS_THRESHOLD (%v) must be greater than LISTENERS_HEALTH_INTERVAL (%v)",
			l.StalenessThreshold, l.HealthCheckInterval)
	}
	if l.MonitorJoinTimeout <= 0 {
		return fmt.Errorf("LISTENERS_MONITOR_JOIN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateCollections() error {
	cols := map[string]string{
		"users":       c.Collections.Users,
		"ratings":     c.Collections.Ratings,
		"comments":    c.Collections.Comments,
		"watchlists":  c.Collections.Watchlists,
		"media":       c.Collections.Media,
		"followed":    c.Collections.Followed,
		"tv_progress": c.Collections.TVProgress,
	}
	for name, v := range cols {
		if v == "" {
			return fmt.Errorf("collections.%s must not be empty", name)
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendMemory:
		return nil
	case BackendNATS:
		return c.validateNATS()
	default:
		return fmt.Errorf("STORE_BACKEND must be %s or %s, got %q", BackendNATS, BackendMemory, c.Store.Backend)
	}
}

// NATS limit constants
const (
	natsMinMemory = 16 * 1024 * 1024 // 16MB
	natsMinStore  = 64 * 1024 * 1024 // 64MB
)

func (c *Config) validateNATS() error {
	if c.NATS.Bucket == "" {
		return fmt.Errorf("NATS_BUCKET is required")
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.MaxMemory < natsMinMemory {
			return fmt.Errorf("NATS_MAX_MEMORY must be at least 16MB (16777216 bytes)")
		}
		if c.NATS.FileStorage && c.NATS.MaxStore < natsMinStore {
			return fmt.Errorf("NATS_MAX_STORE must be at least 64MB (67108864 bytes)")
		}
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

// validateNATSURL checks the scheme (nats, tls, ws, wss) and host.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com)")
	}

	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// ShouldWarnAboutCORS reports a wildcard origin in production, logged at
// startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	if !c.IsProduction() {
		return false
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
