// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package websocket

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/askloop/askloop/internal/logging"
	"github.com/askloop/askloop/internal/models"
	"github.com/askloop/askloop/internal/stream"
)

// Bridge consumes live derived events from the message bus and hands them
// to the hub for registry fan-out. It is the only path from the pipeline
// to connected sessions, so every event is delivered exactly once per
// session regardless of which process instance accepted the submission.
type Bridge struct {
	hub        *Hub
	subscriber message.Subscriber
}

// NewBridge creates a bus-to-hub bridge.
func NewBridge(hub *Hub, subscriber message.Subscriber) *Bridge {
	return &Bridge{hub: hub, subscriber: subscriber}
}

// Run subscribes to the live topic and forwards events until the context
// is canceled. Designed for suture supervision: a subscribe failure
// returns an error and the supervisor restarts the bridge.
func (b *Bridge) Run(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, stream.LiveTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", stream.LiveTopic, err)
	}

	logging.Info().Str("topic", stream.LiveTopic).Msg("websocket bridge started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Str("component", "websocket-bridge").
				Msg("websocket bridge stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("live subscription closed")
			}
			b.handleMessage(msg)
		}
	}
}

// handleMessage decodes one bus message and broadcasts it. Malformed
// payloads are acked and dropped; redelivery cannot fix them.
func (b *Bridge) handleMessage(msg *message.Message) {
	var event models.DerivedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("dropping malformed live event")
		msg.Ack()
		return
	}

	b.hub.BroadcastDerived(event)
	msg.Ack()
}
