// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package pipeline implements the submission path: validate and normalize
// the payload, apply the global rate window and duplicate suppression,
// persist the followup, enrich it into a clarifying question, persist the
// derived event, and publish it for live fan-out.
//
// Every rejection is silent toward the submitter. An accepted submission
// runs to completion regardless of what happens to the submitting session,
// so callers should pass a context that is not tied to the connection.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/askloop/askloop/internal/gate"
	"github.com/askloop/askloop/internal/logging"
	"github.com/askloop/askloop/internal/metrics"
	"github.com/askloop/askloop/internal/models"
	"github.com/askloop/askloop/internal/stream"
)

// Appender is the append-only log slice the pipeline writes to.
type Appender interface {
	Append(ctx context.Context, data []byte) (string, error)
}

// Enricher produces the clarifying-question text. Implementations never
// fail; degraded modes return fallback text.
type Enricher interface {
	Question(ctx context.Context, items []string) string
}

// Limits are the normalization caps applied to every submission.
type Limits struct {
	MaxItems      int
	MaxTotalChars int
}

// GatePolicy are the dedup and rate-window parameters.
type GatePolicy struct {
	DedupTTL   time.Duration
	RateWindow time.Duration
	RateLimit  int64
}

// Pipeline is the submission processor.
type Pipeline struct {
	gate      gate.Gate
	followups Appender
	questions Appender
	enricher  Enricher
	publisher message.Publisher
	limits    Limits
	policy    GatePolicy
	validate  *validator.Validate
}

// New assembles a pipeline.
func New(
	g gate.Gate,
	followups, questions Appender,
	enricher Enricher,
	publisher message.Publisher,
	limits Limits,
	policy GatePolicy,
) *Pipeline {
	return &Pipeline{
		gate:      g,
		followups: followups,
		questions: questions,
		enricher:  enricher,
		publisher: publisher,
		limits:    limits,
		policy:    policy,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Submit runs one submission through the pipeline. The returned error
// classifies drops and faults for the caller's log line; it must never be
// forwarded to the submitting client.
func (p *Pipeline) Submit(ctx context.Context, payload models.FollowUpPayload) error {
	metrics.SubmissionsReceived.Inc()
	start := time.Now()
	correlationID := uuid.NewString()

	if err := p.validate.Struct(payload); err != nil {
		metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonInvalid).Inc()
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	items, err := normalizeItems(payload.Items, p.limits.MaxItems, p.limits.MaxTotalChars)
	if err != nil {
		reason := metrics.DropReasonInvalid
		if err == ErrPayloadTooLarge {
			reason = metrics.DropReasonOversize
		}
		metrics.SubmissionsDropped.WithLabelValues(reason).Inc()
		return err
	}

	count, err := p.gate.IncrWindow(ctx, gate.RateKey, p.policy.RateWindow)
	if err != nil {
		metrics.GateErrors.WithLabelValues("incr_window").Inc()
		metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonGateError).Inc()
		return fmt.Errorf("rate window: %w", err)
	}
	if count > p.policy.RateLimit {
		metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonRateLimit).Inc()
		return ErrRateLimited
	}

	fresh, err := p.gate.SetIfAbsent(ctx, gate.DedupKey(items), p.policy.DedupTTL)
	if err != nil {
		metrics.GateErrors.WithLabelValues("set_if_absent").Inc()
		metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonGateError).Inc()
		return fmt.Errorf("dedup: %w", err)
	}
	if !fresh {
		metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonDuplicate).Inc()
		return ErrDuplicate
	}

	followupID, err := p.appendFollowup(ctx, items, payload.CreatedAt)
	if err != nil {
		metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonAppendFail).Inc()
		return err
	}

	text := p.enricher.Question(ctx, items)

	record := models.DerivedRecord{
		Text:       text,
		CreatedAt:  models.NowMillis(),
		FollowUpID: followupID,
	}
	streamID, err := p.appendDerived(ctx, record)
	if err != nil {
		// The followup is already durable; the derived record is not.
		// No retry in the submit path.
		metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonAppendFail).Inc()
		return err
	}

	event := models.DerivedEvent{
		Text:      record.Text,
		CreatedAt: record.CreatedAt,
		StreamID:  streamID,
	}

	if err := p.publishLive(event, correlationID); err != nil {
		// The derived record is durable and reachable via replay even if
		// the live publish fails.
		logging.Error().
			Err(err).
			Str("stream_id", streamID).
			Str("correlation_id", correlationID).
			Msg("live publish failed")
	}

	metrics.DerivedEvents.Inc()
	metrics.ObservePipeline(start)
	logging.Info().
		Str("followup_id", followupID).
		Str("stream_id", streamID).
		Str("correlation_id", correlationID).
		Int("items", len(items)).
		Msg("submission processed")
	return nil
}

func (p *Pipeline) appendFollowup(ctx context.Context, items []string, createdAt int64) (string, error) {
	data, err := json.Marshal(models.FollowUpRecord{Items: items, CreatedAt: createdAt})
	if err != nil {
		return "", fmt.Errorf("marshal followup record: %w", err)
	}
	id, err := p.followups.Append(ctx, data)
	if err != nil {
		return "", fmt.Errorf("append followup: %w", err)
	}
	return id, nil
}

func (p *Pipeline) appendDerived(ctx context.Context, record models.DerivedRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal derived event: %w", err)
	}
	id, err := p.questions.Append(ctx, data)
	if err != nil {
		return "", fmt.Errorf("append derived event: %w", err)
	}
	return id, nil
}

func (p *Pipeline) publishLive(event models.DerivedEvent, correlationID string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	msg := message.NewMessage(correlationID, data)
	if err := p.publisher.Publish(stream.LiveTopic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", stream.LiveTopic, err)
	}
	return nil
}
