// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/askloop/askloop/internal/models"
	"github.com/askloop/askloop/internal/stream"
)

func TestBridgeForwardsLiveEventsToHub(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, nil)
	hub.Register <- c
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := NewBridge(hub, pubsub)
	bridgeDone := make(chan struct{})
	go func() {
		_ = bridge.Run(ctx)
		close(bridgeDone)
	}()

	// Give the subscription a moment to attach before publishing.
	time.Sleep(100 * time.Millisecond)

	event := models.DerivedEvent{
		Text:      "Could you clarify: cable, port?",
		CreatedAt: 1700000000000,
		StreamID:  "00000000000000000011",
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := pubsub.Publish(stream.LiveTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	env := recvFrame(t, c)
	if env.Event != models.EventDerived {
		t.Errorf("event = %q", env.Event)
	}
	var got models.DerivedEvent
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.StreamID != event.StreamID {
		t.Errorf("streamId = %q, want %q", got.StreamID, event.StreamID)
	}

	cancel()
	select {
	case <-bridgeDone:
	case <-time.After(2 * time.Second):
		t.Error("bridge did not stop")
	}
}

func TestBridgeDropsMalformedPayloads(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, nil)
	hub.Register <- c
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := NewBridge(hub, pubsub)
	go func() { _ = bridge.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := pubsub.Publish(stream.LiveTopic, message.NewMessage(watermill.NewUUID(), []byte("not json"))); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-c.send:
		t.Error("malformed event must not reach sessions")
	case <-time.After(300 * time.Millisecond):
	}
}
