// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // debug log prefixes use a fixed IANA zone
)

// Validate checks that configuration is complete and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDebugLog,
		c.validateAuth,
		c.validateRemote,
		c.validateOutbox,
		c.validateGeocoder,
		c.validatePlatform,
		c.validateSync,
		c.validateServer,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDebugLog() error {
	if c.DebugLog.Path == "" {
		return fmt.Errorf("DEBUG_LOG_PATH is required")
	}
	if c.DebugLog.Capacity < 1 {
		return fmt.Errorf("DEBUG_LOG_CAPACITY must be at least 1, got %d", c.DebugLog.Capacity)
	}
	if _, err := time.LoadLocation(c.DebugLog.Timezone); err != nil {
		return fmt.Errorf("DEBUG_LOG_TIMEZONE is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateAuth() error {
	switch c.Auth.Mode {
	case "none":
		return nil
	case "static":
		if c.Auth.UserID == "" {
			return fmt.Errorf("AUTH_USER is required when AUTH_MODE=static")
		}
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: static, jwt, none (got %q)", c.Auth.Mode)
	}
	if c.Server.RequireAuth && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when REQUIRE_AUTH=true")
	}
	return nil
}

func (c *Config) validateRemote() error {
	switch c.Remote.Backend {
	case "memory":
		return nil
	case "nats":
	default:
		return fmt.Errorf("REMOTE_BACKEND must be nats or memory (got %q)", c.Remote.Backend)
	}
	if c.Remote.Bucket == "" {
		return fmt.Errorf("NATS_KV_BUCKET is required")
	}
	if c.Remote.EmbeddedServer {
		if c.Remote.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
		if c.Remote.Port < 0 || c.Remote.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between 0 and 65535, got %d", c.Remote.Port)
		}
		return nil
	}
	return validateNATSURL(c.Remote.URL, "NATS_URL")
}

func (c *Config) validateOutbox() error {
	if !c.Outbox.Enabled {
		return nil
	}
	if c.Outbox.Path == "" {
		return fmt.Errorf("OUTBOX_PATH is required when OUTBOX_ENABLED=true")
	}
	if c.Outbox.RetryInterval <= 0 {
		return fmt.Errorf("OUTBOX_RETRY_INTERVAL must be positive")
	}
	if c.Outbox.MaxRetries < 1 {
		return fmt.Errorf("OUTBOX_MAX_RETRIES must be at least 1")
	}
	return nil
}

func (c *Config) validateGeocoder() error {
	if !c.Geocoder.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Geocoder.BaseURL, "GEOCODER_URL"); err != nil {
		return err
	}
	if c.Geocoder.RatePerSecond <= 0 {
		return fmt.Errorf("GEOCODER_RATE must be positive")
	}
	if c.Geocoder.Burst < 1 {
		return fmt.Errorf("GEOCODER_BURST must be at least 1")
	}
	if c.Geocoder.Timeout <= 0 {
		return fmt.Errorf("GEOCODER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validatePlatform() error {
	if c.Platform.Interval <= 0 || c.Platform.FastestInterval <= 0 {
		return fmt.Errorf("LOCATION_INTERVAL and LOCATION_FASTEST_INTERVAL must be positive")
	}
	if c.Platform.FastestInterval > c.Platform.Interval {
		return fmt.Errorf("LOCATION_FASTEST_INTERVAL (%v) cannot exceed LOCATION_INTERVAL (%v)",
			c.Platform.FastestInterval, c.Platform.Interval)
	}
	if c.Platform.SmallestDisplacement < 0 {
		return fmt.Errorf("LOCATION_MIN_DISPLACEMENT cannot be negative")
	}
	if c.Platform.FixFeedEnabled {
		if c.Platform.FixFeedSubject == "" {
			return fmt.Errorf("FIX_FEED_SUBJECT is required when FIX_FEED_ENABLED=true")
		}
		if c.Platform.FixFeedURL != "" {
			return validateNATSURL(c.Platform.FixFeedURL, "FIX_FEED_URL")
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.PingURL == "" {
		return nil
	}
	return validateHTTPURL(c.Sync.PingURL, "PING_URL")
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS cannot be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got %q)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.Logging.Format)
	}
	return nil
}
