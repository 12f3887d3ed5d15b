// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package models defines the data structures shared across the relay:
// inbound submissions, persisted log records, and the derived events
// broadcast to WebSocket sessions.
package models

import "time"

// FollowUpPayload is the client-supplied body of a submit envelope.
//
// Items is the raw, pre-normalization list: entries may contain embedded
// commas, surrounding whitespace, or be empty. Normalization (splitting,
// trimming, dropping empties, truncating) happens in the pipeline, not here.
//
// CreatedAt is the client-reported submission time in Unix milliseconds.
// It is stored on the followup record as-is; derived events always carry
// server time instead.
type FollowUpPayload struct {
	Items     []string `json:"items" validate:"required,min=1,dive,max=300"`
	CreatedAt int64    `json:"createdAt" validate:"gte=0"`
}

// FollowUpRecord is the persisted form of an accepted submission on the
// followups log. Items holds the normalized list.
type FollowUpRecord struct {
	ID        string   `json:"id"`
	Items     []string `json:"items"`
	CreatedAt int64    `json:"ts"`
}

// DerivedRecord is the persisted form of a clarifying question on the
// questions log. FollowUpID back-references the followup record that caused
// it, for lookup only. The record's own id is not serialized; readers
// recover it from the record's sequence.
type DerivedRecord struct {
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"`
	FollowUpID string `json:"followupId,omitempty"`
}

// DerivedEvent is the enriched clarifying-question event delivered to
// sessions via broadcast and replay: exactly {text, createdAt, streamId}.
//
// StreamID is the questions-log record id: a zero-padded decimal whose
// lexicographic order matches append order, usable as a replay cursor.
type DerivedEvent struct {
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
	StreamID  string `json:"streamId"`
}

// NowMillis returns the current server time in Unix milliseconds, the
// timestamp unit used on the wire and in log records.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
