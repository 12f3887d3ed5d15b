// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package api

import (
	"context"

	"github.com/askloop/askloop/internal/models"
	"github.com/askloop/askloop/internal/pipeline"
)

// Relay binds the submission pipeline and the replayer into the single
// dispatcher the WebSocket sessions talk to.
type Relay struct {
	pipeline *pipeline.Pipeline
	replayer *pipeline.Replayer
}

// NewRelay creates the session-facing dispatcher.
func NewRelay(p *pipeline.Pipeline, r *pipeline.Replayer) *Relay {
	return &Relay{pipeline: p, replayer: r}
}

// Submit runs one submission through the pipeline.
func (r *Relay) Submit(ctx context.Context, payload models.FollowUpPayload) error {
	return r.pipeline.Submit(ctx, payload)
}

// ReplaySince returns derived events strictly after sinceID.
func (r *Relay) ReplaySince(ctx context.Context, sinceID string) ([]models.DerivedEvent, error) {
	return r.replayer.Since(ctx, sinceID)
}
