// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/teleshow/config.yaml",
	"/etc/teleshow/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values. These
// are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Listeners: ListenersConfig{
			MaxSubscriptions:    50,
			SnapshotTimeout:     5 * time.Second,
			HealthCheckInterval: 120 * time.Second,
			StalenessThreshold:  300 * time.Second,
			MonitorJoinTimeout:  time.Second,
		},
		Collections: CollectionsConfig{
			Users:      "users",
			Ratings:    "Ratings",
			Comments:   "Comments",
			Watchlists: "watchlists",
			Media:      "media",
			Followed:   "followed_media",
			TVProgress: "tv_progress",
		},
		Store: StoreConfig{
			Backend: BackendNATS,
		},
		NATS: NATSConfig{
			URL:                     "nats://127.0.0.1:4222",
			EmbeddedServer:          true,
			Host:                    "127.0.0.1",
			Port:                    4222,
			StoreDir:                "/data/nats/jetstream",
			MaxMemory:               256 << 20, // 256MB
			MaxStore:                1 << 30,   // 1GB
			Bucket:                  "teleshow",
			FileStorage:             true,
			ConnectTimeout:          10 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: the names in envMappings
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Values from YAML are already slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Live cache
	"listeners_max_subscriptions":    "listeners.max_subscriptions",
	"listeners_snapshot_timeout":     "listeners.snapshot_timeout",
	"listeners_health_interval":      "listeners.health_check_interval",
	"listeners_staleness_threshold":  "listeners.staleness_threshold",
	"listeners_monitor_join_timeout": "listeners.monitor_join_timeout",

	// Collections
	"collection_users":       "collections.users",
	"collection_ratings":     "collections.ratings",
	"collection_comments":    "collections.comments",
	"collection_watchlists":  "collections.watchlists",
	"collection_media":       "collections.media",
	"collection_followed":    "collections.followed",
	"collection_tv_progress": "collections.tv_progress",

	// Store
	"store_backend": "store.backend",

	// NATS
	"nats_url":                       "nats.url",
	"nats_embedded":                  "nats.embedded_server",
	"nats_host":                      "nats.host",
	"nats_port":                      "nats.port",
	"nats_store_dir":                 "nats.store_dir",
	"nats_max_memory":                "nats.max_memory",
	"nats_max_store":                 "nats.max_store",
	"nats_bucket":                    "nats.bucket",
	"nats_file_storage":              "nats.file_storage",
	"nats_connect_timeout":           "nats.connect_timeout",
	"nats_breaker_failure_threshold": "nats.breaker_failure_threshold",
	"nats_breaker_timeout":           "nats.breaker_timeout",

	// Security
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped, so unrelated environment
// does not leak into the config.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - LISTENERS_MAX_SUBSCRIPTIONS -> listeners.max_subscriptions
//   - NATS_EMBEDDED -> nats.embedded_server
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
