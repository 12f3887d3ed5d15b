// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Gate.RateLimit != 20 {
		t.Errorf("rate limit default = %d, want 20", cfg.Gate.RateLimit)
	}
	if cfg.Gate.DedupTTL != 15*time.Second {
		t.Errorf("dedup ttl default = %v, want 15s", cfg.Gate.DedupTTL)
	}
	if cfg.Limits.MaxItems != 8 || cfg.Limits.MaxTotalChars != 300 {
		t.Errorf("limits default = %+v", cfg.Limits)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown gate backend", func(c *Config) { c.Gate.Backend = "redis" }},
		{"badger without path", func(c *Config) { c.Gate.Backend = "badger"; c.Gate.Path = "" }},
		{"zero dedup ttl", func(c *Config) { c.Gate.DedupTTL = 0 }},
		{"zero rate window", func(c *Config) { c.Gate.RateWindow = 0 }},
		{"zero rate limit", func(c *Config) { c.Gate.RateLimit = 0 }},
		{"zero max items", func(c *Config) { c.Limits.MaxItems = 0 }},
		{"zero max chars", func(c *Config) { c.Limits.MaxTotalChars = 0 }},
		{"zero enrich timeout", func(c *Config) { c.Enrich.Timeout = 0 }},
		{"external nats without url", func(c *Config) { c.NATS.EmbeddedServer = false; c.NATS.URL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("DEDUP_TTL", "30s")
	t.Setenv("GATE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Gate.RateLimit != 5 {
		t.Errorf("rate limit = %d, want 5", cfg.Gate.RateLimit)
	}
	if cfg.Gate.DedupTTL != 30*time.Second {
		t.Errorf("dedup ttl = %v, want 30s", cfg.Gate.DedupTTL)
	}
}

func TestLoadUnmappedEnvIgnored(t *testing.T) {
	t.Setenv("PATH_LIKE_NOISE", "should-not-appear")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config polluted by unmapped env var: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 8123\ngate:\n  rate_limit: 7\nsecurity:\n  cors_origins:\n    - https://app.example.com\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123", cfg.Server.Port)
	}
	if cfg.Gate.RateLimit != 7 {
		t.Errorf("rate limit = %d, want 7", cfg.Gate.RateLimit)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("cors origins = %v", cfg.Security.CORSOrigins)
	}
}

func TestCORSOriginsFromEnvSplit(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Fatalf("cors origins = %v, want 2 entries", cfg.Security.CORSOrigins)
	}
	if cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("second origin = %q", cfg.Security.CORSOrigins[1])
	}
}
