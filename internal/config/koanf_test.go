// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.DebugLog.Capacity != 100 {
		t.Errorf("DebugLog.Capacity = %d, want 100", cfg.DebugLog.Capacity)
	}
	if cfg.DebugLog.Timezone != "America/Los_Angeles" {
		t.Errorf("DebugLog.Timezone = %q, want America/Los_Angeles", cfg.DebugLog.Timezone)
	}
	if cfg.Platform.Interval != 20*time.Minute {
		t.Errorf("Platform.Interval = %v, want 20m", cfg.Platform.Interval)
	}
	if cfg.Platform.FastestInterval != 5*time.Minute {
		t.Errorf("Platform.FastestInterval = %v, want 5m", cfg.Platform.FastestInterval)
	}
	if cfg.Platform.SmallestDisplacement != 15 {
		t.Errorf("Platform.SmallestDisplacement = %v, want 15", cfg.Platform.SmallestDisplacement)
	}
	if cfg.Sync.PingTimeout != time.Second {
		t.Errorf("Sync.PingTimeout = %v, want 1s", cfg.Sync.PingTimeout)
	}
	if cfg.Geocoder.UserAgent != "Mirror" {
		t.Errorf("Geocoder.UserAgent = %q, want Mirror", cfg.Geocoder.UserAgent)
	}
	if cfg.Auth.Mode != "none" {
		t.Errorf("Auth.Mode = %q, want none", cfg.Auth.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"NATS_URL", "remote.url"},
		{"DEBUG_LOG_CAPACITY", "debuglog.capacity"},
		{"AUTH_USER", "auth.user_id"},
		{"FINE_LOCATION_GRANTED", "platform.fine_location_granted"},
		{"WATCH_SHARE_LOCATION", "sync.watch_share_location"},
		{"log_level", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("CONFIG_PATH env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom.yaml")
		if err := os.WriteFile(customPath, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		t.Setenv(ConfigPathEnvVar, customPath)
		if result := findConfigFile(); result != customPath {
			t.Errorf("findConfigFile() = %q, want %q", result, customPath)
		}
	})

	t.Run("CONFIG_PATH env var with non-existent file", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("DATA_DIR", "/var/lib/mirror")
	t.Setenv("AUTH_MODE", "static")
	t.Setenv("AUTH_USER", "uid-42")
	t.Setenv("DEBUG_LOG_CAPACITY", "250")
	t.Setenv("LOCATION_INTERVAL", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Auth.UserID != "uid-42" {
		t.Errorf("Auth.UserID = %q, want uid-42", cfg.Auth.UserID)
	}
	if cfg.DebugLog.Capacity != 250 {
		t.Errorf("DebugLog.Capacity = %d, want 250", cfg.DebugLog.Capacity)
	}
	if cfg.Platform.Interval != 30*time.Minute {
		t.Errorf("Platform.Interval = %v, want 30m", cfg.Platform.Interval)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v, want two trimmed origins", cfg.Server.CORSOrigins)
	}
	if want := filepath.Join("/var/lib/mirror", "debug_log.json"); cfg.DebugLog.Path != want {
		t.Errorf("DebugLog.Path = %q, want %q", cfg.DebugLog.Path, want)
	}
	if cfg.Remote.Bucket != "mirror" {
		t.Errorf("Remote.Bucket = %q, want mirror (default)", cfg.Remote.Bucket)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	configContent := `
data:
  dir: "` + tmpDir + `"
debuglog:
  path: "/tmp/explicit.json"
auth:
  mode: static
  user_id: file-user
remote:
  backend: memory
logging:
  level: warn
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Auth.UserID != "file-user" {
		t.Errorf("Auth.UserID = %q, want file-user", cfg.Auth.UserID)
	}
	if cfg.Remote.Backend != "memory" {
		t.Errorf("Remote.Backend = %q, want memory", cfg.Remote.Backend)
	}
	if cfg.DebugLog.Path != "/tmp/explicit.json" {
		t.Errorf("absolute DebugLog.Path should be kept, got %q", cfg.DebugLog.Path)
	}
	if cfg.Prefs.Path != filepath.Join(tmpDir, "mirror_prefs.json") {
		t.Errorf("Prefs.Path = %q, want it under data dir", cfg.Prefs.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (env overrides file)", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero capacity", func(c *Config) { c.DebugLog.Capacity = 0 }, "DEBUG_LOG_CAPACITY"},
		{"bad timezone", func(c *Config) { c.DebugLog.Timezone = "Mars/Olympus" }, "DEBUG_LOG_TIMEZONE"},
		{"static without user", func(c *Config) { c.Auth.Mode = "static" }, "AUTH_USER"},
		{"jwt short secret", func(c *Config) { c.Auth.Mode = "jwt"; c.Auth.JWTSecret = "short" }, "32 characters"},
		{"unknown auth", func(c *Config) { c.Auth.Mode = "oauth" }, "AUTH_MODE"},
		{"unknown backend", func(c *Config) { c.Remote.Backend = "redis" }, "REMOTE_BACKEND"},
		{"external nats bad url", func(c *Config) {
			c.Remote.EmbeddedServer = false
			c.Remote.URL = "http://nats"
		}, "NATS_URL"},
		{"fastest above interval", func(c *Config) { c.Platform.FastestInterval = time.Hour }, "cannot exceed"},
		{"geocoder bad url", func(c *Config) { c.Geocoder.BaseURL = "ftp://x" }, "GEOCODER_URL"},
		{"geocoder disabled ignores url", func(c *Config) {
			c.Geocoder.Enabled = false
			c.Geocoder.BaseURL = ""
		}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "HTTP_PORT"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
