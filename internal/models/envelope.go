// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package models

import "github.com/goccy/go-json"

// Envelope is the wire frame for every WebSocket message in both directions:
// a discriminating event name plus a raw data payload decoded by kind.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope event kinds.
const (
	// EventSubmit carries a FollowUpPayload from client to server.
	EventSubmit = "submit"

	// EventReplaySince carries a ReplayRequest from client to server.
	EventReplaySince = "replaySince"

	// EventDerived carries a DerivedEvent from server to client.
	EventDerived = "derivedEvent"
)

// ReplayRequest is the body of a replaySince envelope. ID is the last
// questions-log record id the client saw; records strictly after it are
// replayed. An empty id means no replay.
type ReplayRequest struct {
	ID string `json:"id"`
}

// NewDerivedEnvelope wraps a DerivedEvent in an outbound envelope, encoded
// and ready to write to a session.
func NewDerivedEnvelope(ev DerivedEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: EventDerived, Data: data})
}
