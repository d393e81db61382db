// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mirrortracker/config.yaml",
	"/etc/mirrortracker/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "/data/mirrortracker",
		},
		DebugLog: DebugLogConfig{
			Path:     "debug_log.json",
			Capacity: 100,
			Timezone: "America/Los_Angeles",
		},
		Prefs: PrefsConfig{
			Path: "mirror_prefs.json",
		},
		Auth: AuthConfig{
			Mode:     "none",
			TokenTTL: 30 * 24 * time.Hour,
		},
		Remote: RemoteConfig{
			Backend:        "nats",
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			StoreDir:       "jetstream",
			Bucket:         "mirror",
			ConnectTimeout: 10 * time.Second,
			ReconnectWait:  2 * time.Second,
		},
		Outbox: OutboxConfig{
			Enabled:         true,
			Path:            "outbox",
			SyncWrites:      true,
			RetryInterval:   30 * time.Second,
			MaxRetries:      100,
			RetryBackoff:    5 * time.Second,
			EntryTTL:        24 * time.Hour,
			CompactInterval: 10 * time.Minute,
		},
		Geocoder: GeocoderConfig{
			Enabled:          true,
			BaseURL:          "https://nominatim.openstreetmap.org",
			UserAgent:        "Mirror",
			Language:         "en",
			Timeout:          10 * time.Second,
			RatePerSecond:    1,
			Burst:            1,
			BreakerFailures:  5,
			BreakerOpenFor:   60 * time.Second,
			BreakerHalfOpen:  1,
			BreakerResetSpan: 2 * time.Minute,
			CacheSize:        512,
			CacheTTL:         24 * time.Hour,
		},
		Platform: PlatformConfig{
			FineLocationGranted:  true,
			Interval:             20 * time.Minute,
			FastestInterval:      5 * time.Minute,
			SmallestDisplacement: 15,
			FixFeedEnabled:       false,
			FixFeedSubject:       "mirror.fixes",
			FixFeedQueueGroup:    "mirrortracker",
			RouterCloseTimeout:   10 * time.Second,
		},
		Sync: SyncConfig{
			PingURL:            "http://www.google.com/",
			PingTimeout:        time.Second,
			WatchShareLocation: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8790,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			RequireAuth:     false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration from defaults, an optional YAML file, and
// environment variables (highest priority), then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

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

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// resolvePaths anchors relative file locations under Data.Dir.
func (c *Config) resolvePaths() {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || c.Data.Dir == "" {
			return p
		}
		return filepath.Join(c.Data.Dir, p)
	}
	c.DebugLog.Path = resolve(c.DebugLog.Path)
	c.Prefs.Path = resolve(c.Prefs.Path)
	c.Remote.StoreDir = resolve(c.Remote.StoreDir)
	c.Outbox.Path = resolve(c.Outbox.Path)
}

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

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
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
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"data_dir": "data.dir",

	"debug_log_path":     "debuglog.path",
	"debug_log_capacity": "debuglog.capacity",
	"debug_log_timezone": "debuglog.timezone",

	"prefs_path": "prefs.path",

	"auth_mode":   "auth.mode",
	"auth_user":   "auth.user_id",
	"auth_token":  "auth.token",
	"jwt_secret":  "auth.jwt_secret",
	"token_ttl":   "auth.token_ttl",
	"user_id":     "auth.user_id",
	"mirror_user": "auth.user_id",

	"remote_backend":        "remote.backend",
	"nats_url":              "remote.url",
	"nats_embedded":         "remote.embedded_server",
	"nats_host":             "remote.host",
	"nats_port":             "remote.port",
	"nats_store_dir":        "remote.store_dir",
	"nats_kv_bucket":        "remote.bucket",
	"nats_connect_timeout":  "remote.connect_timeout",
	"nats_reconnect_wait":   "remote.reconnect_wait",
	"outbox_enabled":        "outbox.enabled",
	"outbox_path":           "outbox.path",
	"outbox_sync_writes":    "outbox.sync_writes",
	"outbox_retry_interval": "outbox.retry_interval",
	"outbox_max_retries":    "outbox.max_retries",
	"outbox_retry_backoff":  "outbox.retry_backoff",
	"outbox_entry_ttl":      "outbox.entry_ttl",
	"outbox_compact":        "outbox.compact_interval",

	"geocoder_enabled":          "geocoder.enabled",
	"geocoder_url":              "geocoder.base_url",
	"geocoder_cache_size":       "geocoder.cache_size",
	"geocoder_cache_ttl":        "geocoder.cache_ttl",
	"geocoder_user_agent":       "geocoder.user_agent",
	"geocoder_language":         "geocoder.language",
	"geocoder_timeout":          "geocoder.timeout",
	"geocoder_rate":             "geocoder.rate_per_second",
	"geocoder_burst":            "geocoder.burst",
	"geocoder_breaker_failures": "geocoder.breaker_failures",
	"geocoder_breaker_open_for": "geocoder.breaker_open_for",

	"fine_location_granted":         "platform.fine_location_granted",
	"location_interval":             "platform.interval",
	"location_fastest_interval":     "platform.fastest_interval",
	"location_min_displacement":     "platform.smallest_displacement",
	"fix_feed_enabled":              "platform.fix_feed_enabled",
	"fix_feed_url":                  "platform.fix_feed_url",
	"fix_feed_subject":              "platform.fix_feed_subject",
	"fix_feed_queue_group":          "platform.fix_feed_queue_group",
	"platform_router_close_timeout": "platform.router_close_timeout",

	"ping_url":             "sync.ping_url",
	"ping_timeout":         "sync.ping_timeout",
	"watch_share_location": "sync.watch_share_location",

	"http_enabled":        "server.enabled",
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"require_auth":        "server.require_auth",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
//
//	NATS_URL -> remote.url
//	DEBUG_LOG_CAPACITY -> debuglog.capacity
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
