// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

// Package config loads service configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of
// precedence (lowest first).
package config

import (
	"time"

	"github.com/tomtom215/teleshow/internal/docstore/natskv"
	"github.com/tomtom215/teleshow/internal/livecache"
	"github.com/tomtom215/teleshow/internal/logging"
)

// Store backends.
const (
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Config holds all service configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Listeners   ListenersConfig   `koanf:"listeners"`
	Collections CollectionsConfig `koanf:"collections"`
	Store       StoreConfig       `koanf:"store"`
	NATS        NATSConfig        `koanf:"nats"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is development or production.
	Environment string `koanf:"environment"`
}

// ListenersConfig tunes the live cache.
type ListenersConfig struct {
	// MaxSubscriptions bounds open store subscriptions across all users.
	MaxSubscriptions int `koanf:"max_subscriptions"`

	// SnapshotTimeout bounds how long a read waits for the first snapshot.
	SnapshotTimeout time.Duration `koanf:"snapshot_timeout"`

	HealthCheckInterval time.Duration `koanf:"health_check_interval"`

	// StalenessThreshold is the idle time after which a listener is evicted.
	StalenessThreshold time.Duration `koanf:"staleness_threshold"`

	MonitorJoinTimeout time.Duration `koanf:"monitor_join_timeout"`
}

// CollectionsConfig names the document store collections.
type CollectionsConfig struct {
	Users      string `koanf:"users"`
	Ratings    string `koanf:"ratings"`
	Comments   string `koanf:"comments"`
	Watchlists string `koanf:"watchlists"`
	Media      string `koanf:"media"`
	Followed   string `koanf:"followed"`
	TVProgress string `koanf:"tv_progress"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is nats or memory.
	Backend string `koanf:"backend"`
}

// NATSConfig holds the JetStream key-value backend settings.
type NATSConfig struct {
	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process server. If false, expects an
	// external server at URL.
	EmbeddedServer bool `koanf:"embedded_server"`

	// Host and Port are where the embedded server listens.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// StoreDir is the JetStream storage directory of the embedded server.
	StoreDir string `koanf:"store_dir"`

	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// Bucket is the KV bucket holding user documents.
	Bucket string `koanf:"bucket"`

	// FileStorage keeps the bucket on disk instead of in memory.
	FileStorage bool `koanf:"file_storage"`

	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds HTTP hardening settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is json or console. Default: json
	Format string `koanf:"format"`

	// Caller adds file:line to every log event.
	Caller bool `koanf:"caller"`
}

// LiveCache returns the live cache manager configuration.
func (c *Config) LiveCache() livecache.Config {
	return livecache.Config{
		MaxSubscriptions:    c.Listeners.MaxSubscriptions,
		SnapshotTimeout:     c.Listeners.SnapshotTimeout,
		HealthCheckInterval: c.Listeners.HealthCheckInterval,
		StalenessThreshold:  c.Listeners.StalenessThreshold,
		MonitorJoinTimeout:  c.Listeners.MonitorJoinTimeout,
		Collections: livecache.Collections{
			Users:      c.Collections.Users,
			Ratings:    c.Collections.Ratings,
			Comments:   c.Collections.Comments,
			Watchlists: c.Collections.Watchlists,
			Media:      c.Collections.Media,
			Followed:   c.Collections.Followed,
			TVProgress: c.Collections.TVProgress,
		},
	}
}

// NATSStore returns the natskv backend configuration.
func (c *Config) NATSStore() natskv.Config {
	return natskv.Config{
		URL:      c.NATS.URL,
		Embedded: c.NATS.EmbeddedServer,
		Server: natskv.ServerConfig{
			Host:              c.NATS.Host,
			Port:              c.NATS.Port,
			StoreDir:          c.NATS.StoreDir,
			JetStreamMaxMem:   c.NATS.MaxMemory,
			JetStreamMaxStore: c.NATS.MaxStore,
		},
		Bucket:                  c.NATS.Bucket,
		FileStorage:             c.NATS.FileStorage,
		ConnectTimeout:          c.NATS.ConnectTimeout,
		BreakerFailureThreshold: c.NATS.BreakerFailureThreshold,
		BreakerTimeout:          c.NATS.BreakerTimeout,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = c.Logging.Format
	lc.Caller = c.Logging.Caller
	return lc
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration from defaults, config file and environment.
// See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
