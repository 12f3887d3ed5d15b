// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package config defines the Askloop configuration model and its layered
// loader. Precedence is environment variables over config file over
// built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the relay server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	NATS     NATSConfig     `koanf:"nats"`
	Gate     GateConfig     `koanf:"gate"`
	Enrich   EnrichConfig   `koanf:"enrich"`
	Limits   LimitsConfig   `koanf:"limits"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// NATSConfig holds broker and JetStream settings. When EmbeddedServer is
// true the broker runs in-process and URL is ignored.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// GateConfig holds dedup and rate-limit settings. Backend selects the
// store: "memory" (default) or "badger" (persistent, survives restarts).
type GateConfig struct {
	Backend    string        `koanf:"backend"`
	Path       string        `koanf:"path"`
	DedupTTL   time.Duration `koanf:"dedup_ttl"`
	RateWindow time.Duration `koanf:"rate_window"`
	RateLimit  int64         `koanf:"rate_limit"`
}

// EnrichConfig holds enrichment provider settings. An empty APIKey keeps
// the provider client constructed but guarantees fallback output, which is
// the intended behavior for local development.
type EnrichConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float32       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	// RPS throttles outbound provider calls (token bucket).
	RPS float64 `koanf:"rps"`
	// BreakerFailures is the consecutive-failure count that opens the
	// circuit breaker.
	BreakerFailures uint32 `koanf:"breaker_failures"`
}

// LimitsConfig holds submission normalization caps.
type LimitsConfig struct {
	MaxItems      int `koanf:"max_items"`
	MaxTotalChars int `koanf:"max_total_chars"`
}

// SecurityConfig holds transport-level settings. Authentication is out of
// scope: every connected session receives all derived events.
type SecurityConfig struct {
	CORSOrigins []string `koanf:"cors_origins"`
	// WSRateLimit bounds upgrade requests per client IP per minute.
	WSRateLimit int `koanf:"ws_rate_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8090,
			Timeout: 30 * time.Second,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			ConnectTimeout: 30 * time.Second,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Gate: GateConfig{
			Backend:    "memory",
			Path:       "/data/gate",
			DedupTTL:   15 * time.Second,
			RateWindow: 60 * time.Second,
			RateLimit:  20,
		},
		Enrich: EnrichConfig{
			APIKey:          "",
			BaseURL:         "",
			Model:           "gpt-4o-mini",
			MaxTokens:       120,
			Temperature:     0.2,
			Timeout:         20 * time.Second,
			RPS:             5,
			BreakerFailures: 5,
		},
		Limits: LimitsConfig{
			MaxItems:      8,
			MaxTotalChars: 300,
		},
		Security: SecurityConfig{
			CORSOrigins: []string{"*"},
			WSRateLimit: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url required when nats.embedded_server is false")
	}
	switch c.Gate.Backend {
	case "memory":
	case "badger":
		if c.Gate.Path == "" {
			return fmt.Errorf("gate.path required for badger backend")
		}
	default:
		return fmt.Errorf("gate.backend %q unknown (memory, badger)", c.Gate.Backend)
	}
	if c.Gate.DedupTTL <= 0 {
		return fmt.Errorf("gate.dedup_ttl must be positive")
	}
	if c.Gate.RateWindow <= 0 {
		return fmt.Errorf("gate.rate_window must be positive")
	}
	if c.Gate.RateLimit <= 0 {
		return fmt.Errorf("gate.rate_limit must be positive")
	}
	if c.Limits.MaxItems <= 0 {
		return fmt.Errorf("limits.max_items must be positive")
	}
	if c.Limits.MaxTotalChars <= 0 {
		return fmt.Errorf("limits.max_total_chars must be positive")
	}
	if c.Enrich.Timeout <= 0 {
		return fmt.Errorf("enrich.timeout must be positive")
	}
	if c.Enrich.MaxTokens <= 0 {
		return fmt.Errorf("enrich.max_tokens must be positive")
	}
	return nil
}
