// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package api

import (
	"context"
	"time"

	"github.com/askloop/askloop/internal/config"
	ws "github.com/askloop/askloop/internal/websocket"
)

// ReadyCheck probes one dependency for the readiness endpoint. A nil
// error means the dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	cfg        *config.Config
	hub        *ws.Hub
	dispatcher ws.Dispatcher
	checks     map[string]ReadyCheck
	startTime  time.Time
}

// NewHandler creates a Handler. checks maps a dependency name to its
// readiness probe; the map may be nil when nothing needs probing.
func NewHandler(cfg *config.Config, hub *ws.Hub, dispatcher ws.Dispatcher, checks map[string]ReadyCheck) *Handler {
	return &Handler{
		cfg:        cfg,
		hub:        hub,
		dispatcher: dispatcher,
		checks:     checks,
		startTime:  time.Now(),
	}
}
