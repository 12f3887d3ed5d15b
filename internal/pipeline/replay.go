// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package pipeline

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/askloop/askloop/internal/logging"
	"github.com/askloop/askloop/internal/metrics"
	"github.com/askloop/askloop/internal/models"
	"github.com/askloop/askloop/internal/stream"
)

// replayLimit caps the records returned per replaySince request. A client
// further behind issues another request with the advanced cursor.
const replayLimit = 50

// Reader is the log-range slice the replayer needs.
type Reader interface {
	ReadSince(ctx context.Context, sinceID string, limit int) ([]stream.Record, error)
}

// Replayer serves replaySince requests from the questions log.
type Replayer struct {
	questions Reader
}

// NewReplayer creates a replayer over the questions log.
func NewReplayer(questions Reader) *Replayer {
	return &Replayer{questions: questions}
}

// Since returns up to 50 derived events strictly after sinceID, ascending.
// An empty cursor means no replay. A malformed cursor or read fault yields
// an error the caller logs and swallows; the requesting session gets
// nothing either way.
func (r *Replayer) Since(ctx context.Context, sinceID string) ([]models.DerivedEvent, error) {
	if sinceID == "" {
		return nil, nil
	}
	metrics.ReplayRequests.Inc()

	records, err := r.questions.ReadSince(ctx, sinceID, replayLimit)
	if err != nil {
		return nil, err
	}

	events := make([]models.DerivedEvent, 0, len(records))
	for _, rec := range records {
		var stored models.DerivedRecord
		if err := json.Unmarshal(rec.Data, &stored); err != nil {
			// A malformed stored record is skipped, not fatal to the batch.
			logging.Warn().
				Err(err).
				Str("record_id", rec.ID).
				Msg("skipping malformed derived record during replay")
			continue
		}
		events = append(events, models.DerivedEvent{
			Text:      stored.Text,
			CreatedAt: stored.CreatedAt,
			StreamID:  rec.ID,
		})
	}

	metrics.ReplayRecords.Add(float64(len(events)))
	return events, nil
}
