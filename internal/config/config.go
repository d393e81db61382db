// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

// Package config loads Mirror Tracker configuration with koanf: built-in
// defaults, then an optional YAML file, then environment variables.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Data       DataConfig       `koanf:"data"`
	DebugLog   DebugLogConfig   `koanf:"debuglog"`
	Prefs      PrefsConfig      `koanf:"prefs"`
	Auth       AuthConfig       `koanf:"auth"`
	Remote     RemoteConfig     `koanf:"remote"`
	Outbox     OutboxConfig     `koanf:"outbox"`
	Geocoder   GeocoderConfig   `koanf:"geocoder"`
	Platform   PlatformConfig   `koanf:"platform"`
	Sync       SyncConfig       `koanf:"sync"`
	Server     ServerConfig     `koanf:"server"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// DataConfig is the root directory for local state. Relative paths in other
// sections are resolved against it.
type DataConfig struct {
	Dir string `koanf:"dir"`
}

// DebugLogConfig configures the bounded, user-visible diagnostic log.
type DebugLogConfig struct {
	Path     string `koanf:"path"`
	Capacity int    `koanf:"capacity"`
	Timezone string `koanf:"timezone"` // IANA name used for line prefixes
}

// PrefsConfig configures the local preference file.
type PrefsConfig struct {
	Path string `koanf:"path"`
}

// AuthConfig selects how the tracked user is identified.
//   - static: UserID is used as-is
//   - jwt: Token is an HS256 JWT signed with JWTSecret; the sub claim is the user
//   - none: no user, tracking stays stopped
type AuthConfig struct {
	Mode      string        `koanf:"mode"`
	UserID    string        `koanf:"user_id"`
	Token     string        `koanf:"token"`
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"` // lifetime of tokens minted by the CLI
}

// RemoteConfig configures the shared realtime store (NATS JetStream key-value).
type RemoteConfig struct {
	// Backend is "nats" or "memory".
	Backend        string        `koanf:"backend"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	StoreDir       string        `koanf:"store_dir"`
	Bucket         string        `koanf:"bucket"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// OutboxConfig configures the durable queue for writes the store could not take.
type OutboxConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Path            string        `koanf:"path"`
	SyncWrites      bool          `koanf:"sync_writes"`
	RetryInterval   time.Duration `koanf:"retry_interval"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	EntryTTL        time.Duration `koanf:"entry_ttl"`
	CompactInterval time.Duration `koanf:"compact_interval"`
}

// GeocoderConfig configures the reverse geocoder.
type GeocoderConfig struct {
	Enabled          bool          `koanf:"enabled"`
	BaseURL          string        `koanf:"base_url"`
	UserAgent        string        `koanf:"user_agent"`
	Language         string        `koanf:"language"`
	Timeout          time.Duration `koanf:"timeout"`
	RatePerSecond    float64       `koanf:"rate_per_second"`
	Burst            int           `koanf:"burst"`
	BreakerFailures  uint32        `koanf:"breaker_failures"`
	BreakerOpenFor   time.Duration `koanf:"breaker_open_for"`
	BreakerHalfOpen  uint32        `koanf:"breaker_half_open_requests"`
	BreakerResetSpan time.Duration `koanf:"breaker_reset_span"`

	// Reverse lookups are cached per ~11 m cell. Zero size disables the cache.
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// PlatformConfig configures the software location provider.
type PlatformConfig struct {
	FineLocationGranted  bool          `koanf:"fine_location_granted"`
	Interval             time.Duration `koanf:"interval"`
	FastestInterval      time.Duration `koanf:"fastest_interval"`
	SmallestDisplacement float64       `koanf:"smallest_displacement"`

	// Fix feed: raw fixes published by devices on a NATS subject.
	FixFeedEnabled    bool   `koanf:"fix_feed_enabled"`
	FixFeedURL        string `koanf:"fix_feed_url"`
	FixFeedSubject    string `koanf:"fix_feed_subject"`
	FixFeedQueueGroup string `koanf:"fix_feed_queue_group"`

	RouterCloseTimeout time.Duration `koanf:"router_close_timeout"`
}

// SyncConfig configures connectivity handling around remote writes.
type SyncConfig struct {
	PingURL            string        `koanf:"ping_url"`
	PingTimeout        time.Duration `koanf:"ping_timeout"`
	WatchShareLocation bool          `koanf:"watch_share_location"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	RequireAuth     bool          `koanf:"require_auth"`
}

// SupervisorConfig holds suture tree tuning.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
