// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package main is the entry point for the Askloop relay server.
//
// Askloop accepts follow-up item submissions over WebSocket, appends them
// to a durable JetStream log, derives a single clarifying-question
// sentence per accepted submission (LLM-backed with deterministic
// fallback), appends the derived event to a second log, and broadcasts it
// to every connected session. Reconnecting clients catch up with a
// cursor-based replay.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (env over file over defaults)
//  2. Embedded NATS broker with JetStream, unless an external URL is set
//  3. Append logs: FOLLOWUPS and QUESTIONS streams
//  4. Gate: dedup and rate-limit store (in-memory or Badger)
//  5. Enricher: provider client with circuit breaker and throttle
//  6. Live bus: core-NATS publisher/subscriber for session fan-out
//  7. Supervisor tree: hub, bridge, HTTP server under suture
//
// # Configuration
//
// Environment variables (see internal/config): HTTP_PORT, NATS_URL,
// NATS_EMBEDDED, GATE_BACKEND, OPENAI_API_KEY, MAX_ITEMS, CORS_ORIGINS,
// LOG_LEVEL, and friends. A config.yaml is honored when present.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the HTTP listener
// drains, sessions receive close frames, the bus and logs disconnect,
// and the embedded broker flushes its store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askloop/askloop/internal/api"
	"github.com/askloop/askloop/internal/config"
	"github.com/askloop/askloop/internal/enrich"
	"github.com/askloop/askloop/internal/gate"
	"github.com/askloop/askloop/internal/logging"
	"github.com/askloop/askloop/internal/pipeline"
	"github.com/askloop/askloop/internal/stream"
	"github.com/askloop/askloop/internal/supervisor"
	"github.com/askloop/askloop/internal/supervisor/services"
	ws "github.com/askloop/askloop/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Int("port", cfg.Server.Port).
		Str("gate_backend", cfg.Gate.Backend).
		Bool("embedded_broker", cfg.NATS.EmbeddedServer).
		Bool("enrichment_configured", cfg.Enrich.APIKey != "").
		Msg("Starting Askloop relay")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broker: in-process JetStream by default, external when configured.
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		embedded, err := stream.NewEmbeddedServer(stream.EmbeddedServerConfig{
			StoreDir:  cfg.NATS.StoreDir,
			MaxMemory: cfg.NATS.MaxMemory,
			MaxStore:  cfg.NATS.MaxStore,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Embedded NATS shutdown error")
			}
		}()
	}

	// Append logs.
	streamClient, err := stream.Connect(ctx, stream.Options{
		URL:            natsURL,
		ConnectTimeout: cfg.NATS.ConnectTimeout,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer streamClient.Close()
	logging.Info().Msg("Append logs ready")

	// Gate: dedup and rate-limit store.
	var submissionGate gate.Gate
	switch cfg.Gate.Backend {
	case "badger":
		submissionGate, err = gate.NewBadgerGate(cfg.Gate.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Gate.Path).Msg("Failed to open badger gate")
		}
		logging.Info().Str("path", cfg.Gate.Path).Msg("Badger gate opened")
	default:
		submissionGate = gate.NewMemoryGate()
		logging.Info().Msg("In-memory gate created")
	}
	defer func() {
		if err := submissionGate.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing gate")
		}
	}()

	if cfg.Enrich.APIKey == "" {
		logging.Warn().Msg("No enrichment API key configured; every question uses the deterministic fallback")
	}
	enricher := enrich.New(enrich.Config{
		APIKey:          cfg.Enrich.APIKey,
		BaseURL:         cfg.Enrich.BaseURL,
		Model:           cfg.Enrich.Model,
		MaxTokens:       cfg.Enrich.MaxTokens,
		Temperature:     cfg.Enrich.Temperature,
		Timeout:         cfg.Enrich.Timeout,
		RPS:             cfg.Enrich.RPS,
		BreakerFailures: cfg.Enrich.BreakerFailures,
	})

	// Live fan-out bus.
	publisher, subscriber, err := newBus(cfg, natsURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create live bus")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing bus subscriber")
		}
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing bus publisher")
		}
	}()

	pipe := pipeline.New(
		submissionGate,
		streamClient.Followups,
		streamClient.Questions,
		enricher,
		publisher,
		pipeline.Limits{
			MaxItems:      cfg.Limits.MaxItems,
			MaxTotalChars: cfg.Limits.MaxTotalChars,
		},
		pipeline.GatePolicy{
			DedupTTL:   cfg.Gate.DedupTTL,
			RateWindow: cfg.Gate.RateWindow,
			RateLimit:  cfg.Gate.RateLimit,
		},
	)
	replayer := pipeline.NewReplayer(streamClient.Questions)

	hub := ws.NewHub()
	bridge := ws.NewBridge(hub, subscriber)

	handler := api.NewHandler(cfg, hub, api.NewRelay(pipe, replayer), map[string]api.ReadyCheck{
		"stream": func(context.Context) error {
			return streamClient.Healthy()
		},
		"gate": func(probeCtx context.Context) error {
			// A short-lived probe key exercises the store end to end.
			_, err := submissionGate.SetIfAbsent(probeCtx, "health:probe", time.Second)
			return err
		},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler).Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Supervision: zerolog bridged to slog for sutureslog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewBridgeService(bridge))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel until the supervisor fully stops.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Askloop relay stopped gracefully")
}
