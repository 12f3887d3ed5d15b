// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package enrich

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askloop/askloop/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// fakeCompleter scripts provider behavior for tests.
type fakeCompleter struct {
	text  string
	err   error
	calls int
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.text}},
		},
	}, nil
}

func testConfig() Config {
	return Config{
		Model:           "gpt-4o-mini",
		MaxTokens:       120,
		Temperature:     0.2,
		Timeout:         time.Second,
		RPS:             1000,
		BreakerFailures: 3,
	}
}

func TestFallbackQuestion(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  string
	}{
		{"single item", []string{"printer jam"}, "Could you clarify: printer jam?"},
		{"multiple items", []string{"a", "b", "c"}, "Could you clarify: a, b, c?"},
		{"empty list", nil, "Could you clarify: ?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackQuestion(tt.items); got != tt.want {
				t.Errorf("FallbackQuestion(%v) = %q, want %q", tt.items, got, tt.want)
			}
		})
	}
}

func TestQuestionUsesProviderText(t *testing.T) {
	fake := &fakeCompleter{text: "  Is the printer jammed, and which tray? "}
	e := newWithClient(testConfig(), fake)

	got := e.Question(context.Background(), []string{"printer jam", "tray"})
	if got != "Is the printer jammed, and which tray?" {
		t.Errorf("Question = %q, want trimmed provider text", got)
	}
	if fake.calls != 1 {
		t.Errorf("provider calls = %d, want 1", fake.calls)
	}
}

func TestQuestionFallsBackOnProviderError(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("upstream 500")}
	e := newWithClient(testConfig(), fake)

	got := e.Question(context.Background(), []string{"a", "b"})
	if got != "Could you clarify: a, b?" {
		t.Errorf("Question = %q, want fallback", got)
	}
}

func TestQuestionFallsBackOnEmptyCompletion(t *testing.T) {
	fake := &fakeCompleter{text: "   "}
	e := newWithClient(testConfig(), fake)

	got := e.Question(context.Background(), []string{"x"})
	if got != "Could you clarify: x?" {
		t.Errorf("Question = %q, want fallback", got)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("timeout")}
	e := newWithClient(testConfig(), fake)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if got := e.Question(ctx, []string{"x"}); got != "Could you clarify: x?" {
			t.Fatalf("call %d: got %q, want fallback", i, got)
		}
	}

	// Breaker trips after 3 consecutive failures; later calls must not
	// reach the provider.
	if fake.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (breaker open afterwards)", fake.calls)
	}
}

func TestThrottleFallsBackWithoutProviderCall(t *testing.T) {
	cfg := testConfig()
	cfg.RPS = 0.001 // first token only, no refill within the test
	fake := &fakeCompleter{text: "ok?"}
	e := newWithClient(cfg, fake)

	ctx := context.Background()
	first := e.Question(ctx, []string{"a"})
	second := e.Question(ctx, []string{"a"})

	if first != "ok?" {
		t.Errorf("first call = %q, want provider text", first)
	}
	if second != "Could you clarify: a?" {
		t.Errorf("second call = %q, want throttled fallback", second)
	}
	if fake.calls != 1 {
		t.Errorf("provider calls = %d, want 1", fake.calls)
	}
}

func TestNewBuildsProviderClient(t *testing.T) {
	e := New(Config{APIKey: "", Model: "gpt-4o-mini", MaxTokens: 120, Timeout: time.Second})
	if e.client == nil {
		t.Fatal("expected constructed provider client")
	}
}
