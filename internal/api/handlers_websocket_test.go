// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/askloop/askloop/internal/config"
	"github.com/askloop/askloop/internal/models"
	ws "github.com/askloop/askloop/internal/websocket"
)

// recordingDispatcher captures submissions and serves canned replays.
type recordingDispatcher struct {
	mu        sync.Mutex
	submitted []models.FollowUpPayload
	submitCh  chan struct{}

	replayEvents []models.DerivedEvent
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{submitCh: make(chan struct{}, 16)}
}

func (d *recordingDispatcher) Submit(_ context.Context, payload models.FollowUpPayload) error {
	d.mu.Lock()
	d.submitted = append(d.submitted, payload)
	d.mu.Unlock()
	d.submitCh <- struct{}{}
	return nil
}

func (d *recordingDispatcher) ReplaySince(context.Context, string) ([]models.DerivedEvent, error) {
	return d.replayEvents, nil
}

func testConfig(origins ...string) *config.Config {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &config.Config{
		Security: config.SecurityConfig{CORSOrigins: origins, WSRateLimit: 1000},
	}
}

// startServer runs the full router against a live hub.
func startServer(t *testing.T, cfg *config.Config, dispatcher ws.Dispatcher) *httptest.Server {
	t.Helper()

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()

	handler := NewHandler(cfg, hub, dispatcher, nil)
	srv := httptest.NewServer(NewRouter(handler).Setup())

	t.Cleanup(func() {
		srv.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebSocketSubmitRoundTrip(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	srv := startServer(t, testConfig(), dispatcher)

	header := http.Header{"Origin": {"http://client.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	frame := `{"event":"submit","data":{"items":["where is the cable","which port"],"createdAt":1700000000000}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-dispatcher.submitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never reached the dispatcher")
	}

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.submitted) != 1 || len(dispatcher.submitted[0].Items) != 2 {
		t.Errorf("submitted = %+v", dispatcher.submitted)
	}
}

func TestWebSocketLargePaddedFrameKeepsConnection(t *testing.T) {
	// A heavily whitespace-padded frame is still well under the read limit:
	// oversize handling belongs to validation, which drops the submission
	// and keeps the session open.
	dispatcher := newRecordingDispatcher()
	srv := startServer(t, testConfig(), dispatcher)

	header := http.Header{"Origin": {"http://client.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	padded := `{"event":"submit","data":{"items":["` +
		strings.Repeat(" ", 64*1024) + `where is it"],"createdAt":1}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(padded)); err != nil {
		t.Fatalf("write padded frame: %v", err)
	}
	select {
	case <-dispatcher.submitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("padded frame never dispatched")
	}

	// The connection must survive to carry the next submission.
	frame := `{"event":"submit","data":{"items":["which port"],"createdAt":2}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write after padded frame: %v", err)
	}
	select {
	case <-dispatcher.submitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not survive the padded frame")
	}
}

func TestWebSocketReplayRoundTrip(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	dispatcher.replayEvents = []models.DerivedEvent{
		{Text: "Could you clarify: x?", CreatedAt: 1, StreamID: "00000000000000000002"},
	}
	srv := startServer(t, testConfig(), dispatcher)

	header := http.Header{"Origin": {"http://client.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	req := `{"event":"replaySince","data":{"id":"00000000000000000001"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != models.EventDerived {
		t.Errorf("event = %q", env.Event)
	}
	var ev models.DerivedEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.StreamID != "00000000000000000002" {
		t.Errorf("streamId = %q", ev.StreamID)
	}
}

func TestWebSocketRejectsMissingOrigin(t *testing.T) {
	srv := startServer(t, testConfig(), newRecordingDispatcher())

	// No Origin header at all.
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial succeeded without Origin header")
	}
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	}
}

func TestWebSocketRejectsUnauthorizedOrigin(t *testing.T) {
	srv := startServer(t, testConfig("http://allowed.example"), newRecordingDispatcher())

	header := http.Header{"Origin": {"http://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err == nil {
		conn.Close()
		t.Fatal("dial succeeded from unauthorized origin")
	}
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	}
}

func TestWebSocketExactOriginMatch(t *testing.T) {
	srv := startServer(t, testConfig("http://allowed.example"), newRecordingDispatcher())

	header := http.Header{"Origin": {"http://allowed.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial from allowed origin: %v", err)
	}
	conn.Close()
	resp.Body.Close()
}

func TestWebSocketServiceUnavailableWithoutHub(t *testing.T) {
	h := NewHandler(testConfig(), nil, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://client.example")
	h.WebSocket(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
