// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package websocket implements the session registry and transport for the
// relay: a hub tracking connected sessions, per-session read/write pumps,
// and a bridge feeding live derived events from the message bus into the
// hub for fan-out.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/askloop/askloop/internal/logging"
	"github.com/askloop/askloop/internal/metrics"
	"github.com/askloop/askloop/internal/models"
)

// Hub maintains the set of active sessions and fans derived events out to
// all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.DerivedEvent
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan models.DerivedEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run drives the hub until the context is canceled, then closes every
// session and returns ctx.Err(). Designed for suture supervision.
//
// Selection is priority-based: shutdown first, then session lifecycle,
// then broadcasts. Go's select picks randomly among ready channels; the
// staged non-blocking checks keep registry state consistent before any
// event is fanned out.
func (h *Hub) Run(ctx context.Context) error {
	for {
		// Priority 1: shutdown.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: session lifecycle.
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or block until anything arrives.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.broadcastToClients(event)
		}
	}
}

// BroadcastDerived queues a derived event for delivery to every session.
// Non-blocking: if the hub's queue is full the event is dropped here and
// remains reachable via replay.
func (h *Hub) BroadcastDerived(event models.DerivedEvent) {
	select {
	case h.broadcast <- event:
	default:
		logging.Warn().
			Str("stream_id", event.StreamID).
			Msg("broadcast queue full, dropping derived event")
	}
}

// GetClientCount returns the number of connected sessions.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSClientsConnected.Set(float64(total))
	logging.Info().
		Uint64("session_id", client.id).
		Int("total_clients", total).
		Msg("websocket session connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSClientsConnected.Set(float64(total))
	logging.Info().
		Uint64("session_id", client.id).
		Int("total_clients", total).
		Msg("websocket session disconnected")
}

// broadcastToClients delivers one event to every session in ascending
// session-id order. Sessions whose send buffer is full are evicted; a slow
// consumer must not stall the rest of the registry.
func (h *Hub) broadcastToClients(event models.DerivedEvent) {
	frame, err := models.NewDerivedEnvelope(event)
	if err != nil {
		logging.Error().Err(err).Msg("encode derived envelope")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		if client.trySend(frame) {
			client.noteDelivered(event.StreamID)
		} else {
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		client.closeSend()
		delete(h.clients, client)
		metrics.WSSendDrops.Inc()
		logging.Warn().
			Uint64("session_id", client.id).
			Msg("session send buffer full, evicting")
	}

	metrics.WSClientsConnected.Set(float64(len(h.clients)))
	metrics.WSBroadcasts.Inc()
}

// shutdown closes every session in ascending id order and logs the reason.
// Context cancellation is expected during graceful shutdown, so it is not
// logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		client.closeSend()
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSClientsConnected.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}
