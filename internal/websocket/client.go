// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/askloop/askloop/internal/logging"
	"github.com/askloop/askloop/internal/metrics"
	"github.com/askloop/askloop/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames. Generous on purpose: an
	// oversize submission must be dropped by validation with the
	// connection kept open, not killed at the transport.
	maxMessageSize = 512 * 1024
)

// clientIDCounter assigns unique, monotonically increasing session ids.
// Broadcast iterates sessions in id order, so delivery order per event is
// deterministic.
var clientIDCounter atomic.Uint64

// Dispatcher handles the two inbound envelope kinds. The pipeline and
// replayer satisfy it in production; tests use fakes.
type Dispatcher interface {
	// Submit runs a submission through the pipeline. The returned error is
	// a drop classification for logging only, never sent to the client.
	Submit(ctx context.Context, payload models.FollowUpPayload) error

	// ReplaySince returns derived events strictly after sinceID.
	ReplaySince(ctx context.Context, sinceID string) ([]models.DerivedEvent, error)
}

// Client is one WebSocket session: the middleman between the connection
// and the hub.
type Client struct {
	id         uint64
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	dispatcher Dispatcher

	// sendMu guards send against the close/send race: the hub closes the
	// channel (eviction, unregister, shutdown) while the readPump may still
	// be pushing replay frames. All sends and the close go through
	// trySend/closeSend under this mutex.
	sendMu sync.Mutex
	closed bool

	// lastStreamID is the newest derived-event id delivered to this
	// session, via broadcast or replay.
	lastMu       sync.Mutex
	lastStreamID string
}

// NewClient creates a session with a fresh id.
func NewClient(hub *Hub, conn *websocket.Conn, dispatcher Dispatcher) *Client {
	return &Client{
		id:         clientIDCounter.Add(1),
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		dispatcher: dispatcher,
	}
}

// ID returns the session's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// LastStreamID returns the newest derived-event id delivered to this
// session, or "" if none yet.
func (c *Client) LastStreamID() string {
	c.lastMu.Lock()
	defer c.lastMu.Unlock()
	return c.lastStreamID
}

func (c *Client) noteDelivered(streamID string) {
	c.lastMu.Lock()
	if streamID > c.lastStreamID {
		c.lastStreamID = streamID
	}
	c.lastMu.Unlock()
}

// trySend queues one frame for the writePump. It reports false when the
// session is already closed or its buffer is full; it never blocks and
// never panics, whatever goroutine calls it.
func (c *Client) trySend(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend marks the session closed and closes its frame channel. Only
// the hub calls this; it is idempotent, and any trySend racing with it
// becomes a no-op instead of a send on a closed channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Start begins the session's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump pumps inbound envelopes from the connection to the dispatcher.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Uint64("session_id", c.id).Msg("unexpected websocket close")
			}
			break
		}
		c.handleEnvelope(data)
	}
}

// handleEnvelope dispatches one inbound frame. Malformed frames and
// unknown event kinds are dropped without a reply.
func (c *Client) handleEnvelope(data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.Debug().Err(err).Uint64("session_id", c.id).Msg("dropping malformed envelope")
		return
	}

	switch env.Event {
	case models.EventSubmit:
		var payload models.FollowUpPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			metrics.SubmissionsDropped.WithLabelValues(metrics.DropReasonInvalid).Inc()
			logging.Debug().Err(err).Uint64("session_id", c.id).Msg("dropping malformed submit payload")
			return
		}
		// Synchronous dispatch bounds the work one connection can have in
		// flight to a single pipeline entry; a flooding client waits on its
		// own frames. The detached context still lets an accepted submission
		// run to completion if the session disconnects mid-pipeline.
		if err := c.dispatcher.Submit(context.Background(), payload); err != nil {
			logging.Debug().
				Err(err).
				Uint64("session_id", c.id).
				Msg("submission dropped")
		}

	case models.EventReplaySince:
		var req models.ReplayRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			logging.Debug().Err(err).Uint64("session_id", c.id).Msg("dropping malformed replay request")
			return
		}
		c.replay(req.ID)

	default:
		logging.Debug().
			Str("event", env.Event).
			Uint64("session_id", c.id).
			Msg("dropping unknown envelope kind")
	}
}

// replay pushes missed derived events to this session only, oldest first.
func (c *Client) replay(sinceID string) {
	events, err := c.dispatcher.ReplaySince(context.Background(), sinceID)
	if err != nil {
		logging.Warn().
			Err(err).
			Uint64("session_id", c.id).
			Str("since_id", sinceID).
			Msg("replay failed")
		return
	}

	for _, ev := range events {
		frame, err := models.NewDerivedEnvelope(ev)
		if err != nil {
			logging.Error().Err(err).Msg("encode replay envelope")
			return
		}
		if !c.trySend(frame) {
			// Buffer full or session closed mid-replay: stop here, the
			// client can re-request from its advanced cursor.
			logging.Warn().
				Uint64("session_id", c.id).
				Msg("send unavailable during replay, truncating batch")
			return
		}
		c.noteDelivered(ev.StreamID)
	}
}

// writePump pumps frames from the send channel to the connection and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("write close message")
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Error().Err(err).Uint64("session_id", c.id).Msg("write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
