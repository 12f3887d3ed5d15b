// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestEnvelopeDecodeDispatch(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantEvent string
	}{
		{
			name:      "submit envelope",
			raw:       `{"event":"submit","data":{"items":["printer jam"],"createdAt":1700000000000}}`,
			wantEvent: EventSubmit,
		},
		{
			name:      "replaySince envelope",
			raw:       `{"event":"replaySince","data":{"id":"00000000000000000042"}}`,
			wantEvent: EventReplaySince,
		},
		{
			name:      "unknown event preserved verbatim",
			raw:       `{"event":"ping","data":null}`,
			wantEvent: "ping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			if err := json.Unmarshal([]byte(tt.raw), &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if env.Event != tt.wantEvent {
				t.Errorf("event = %q, want %q", env.Event, tt.wantEvent)
			}
		})
	}
}

func TestEnvelopeSubmitPayloadRoundTrip(t *testing.T) {
	raw := `{"event":"submit","data":{"items":["a, b","c"],"createdAt":1700000000000}}`

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	var payload FollowUpPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if len(payload.Items) != 2 || payload.Items[0] != "a, b" {
		t.Errorf("items = %v, want raw pre-normalization items", payload.Items)
	}
	if payload.CreatedAt != 1700000000000 {
		t.Errorf("createdAt = %d", payload.CreatedAt)
	}
}

func TestNewDerivedEnvelope(t *testing.T) {
	out, err := NewDerivedEnvelope(DerivedEvent{
		Text:      "Could you clarify: printer jam?",
		CreatedAt: 1700000000123,
		StreamID:  "00000000000000000007",
	})
	if err != nil {
		t.Fatalf("NewDerivedEnvelope: %v", err)
	}

	s := string(out)
	if !strings.Contains(s, `"event":"derivedEvent"`) {
		t.Errorf("missing event kind: %s", s)
	}
	if !strings.Contains(s, `"streamId":"00000000000000000007"`) {
		t.Errorf("missing streamId: %s", s)
	}
	if strings.Contains(s, "followupId") {
		t.Errorf("outbound envelope must carry only text, createdAt, streamId: %s", s)
	}

	var env Envelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	var ev DerivedEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if ev.Text != "Could you clarify: printer jam?" {
		t.Errorf("text = %q", ev.Text)
	}
}
