// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package enrich turns a normalized item list into a single polite
// clarifying-question sentence using an OpenAI-compatible chat-completions
// provider. The provider call is throttled, circuit-broken, and bounded by
// a timeout; every failure mode degrades to a deterministic fallback
// sentence, never to an error.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/askloop/askloop/internal/logging"
	"github.com/askloop/askloop/internal/metrics"
)

// systemInstruction fixes the shape of the provider output: one short,
// friendly sentence of two to four clarifying questions.
const systemInstruction = "You are a polite assistant that turns a list of items into a single sentence of 2-4 concise, polite clarifying questions. Keep it short and friendly."

// Config holds enrichment provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration

	// RPS throttles outbound provider calls.
	RPS float64

	// BreakerFailures is the consecutive-failure count that opens the
	// circuit breaker.
	BreakerFailures uint32
}

// completionClient is the slice of the provider client the enricher uses.
// Tests substitute a fake.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Enricher generates clarifying questions with graceful degradation.
type Enricher struct {
	client  completionClient
	breaker *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter
	cfg     Config
}

// New creates an enricher backed by the configured provider.
func New(cfg Config) *Enricher {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newWithClient(cfg, openai.NewClientWithConfig(clientCfg))
}

// newWithClient wires an explicit provider client. Used by tests.
func newWithClient(cfg Config, client completionClient) *Enricher {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "enrichment",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Enricher{
		client:  client,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cfg:     cfg,
	}
}

// Question produces the clarifying-question sentence for items. It always
// returns usable text: on provider error, open breaker, throttle
// exhaustion, or an empty completion it returns the fallback sentence.
func (e *Enricher) Question(ctx context.Context, items []string) string {
	metrics.EnrichmentRequests.Inc()

	if !e.limiter.Allow() {
		metrics.EnrichmentFallbacks.WithLabelValues("throttled").Inc()
		logging.Debug().Msg("enrichment throttled, using fallback")
		return FallbackQuestion(items)
	}

	start := time.Now()
	text, err := e.breaker.Execute(func() (string, error) {
		return e.complete(ctx, items)
	})
	metrics.ObserveEnrichment(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EnrichmentFallbacks.WithLabelValues("breaker_open").Inc()
		logging.Debug().Msg("enrichment breaker open, using fallback")
		return FallbackQuestion(items)
	case err != nil:
		metrics.EnrichmentFallbacks.WithLabelValues("provider_error").Inc()
		logging.Warn().Err(err).Msg("enrichment provider failed, using fallback")
		return FallbackQuestion(items)
	}

	if strings.TrimSpace(text) == "" {
		metrics.EnrichmentFallbacks.WithLabelValues("empty_result").Inc()
		return FallbackQuestion(items)
	}
	return strings.TrimSpace(text)
}

// complete performs one provider call under the configured timeout.
func (e *Enricher) complete(ctx context.Context, items []string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Items: %s\nRespond as one question sentence.", strings.Join(items, ", ")),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// FallbackQuestion is the deterministic sentence used whenever the
// provider cannot produce one.
func FallbackQuestion(items []string) string {
	return fmt.Sprintf("Could you clarify: %s?", strings.Join(items, ", "))
}
