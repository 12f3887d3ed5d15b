// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package services

import (
	"context"
)

// ContextRunner matches the Run(ctx) shape shared by the session hub
// and the live-event bridge. The interface keeps this package free of
// websocket imports.
type ContextRunner interface {
	Run(ctx context.Context) error
}

// HubService supervises the WebSocket session hub. The hub's Run already
// follows the suture.Service pattern, so this wrapper just names it.
type HubService struct {
	hub  ContextRunner
	name string
}

// NewHubService creates a hub service wrapper.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub, name: "websocket-hub"}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *HubService) String() string {
	return s.name
}

// BridgeService supervises the bus-to-hub bridge. A failed subscription
// returns an error from Run, and suture restarts the bridge with
// backoff until the bus is reachable again.
type BridgeService struct {
	bridge ContextRunner
	name   string
}

// NewBridgeService creates a bridge service wrapper.
func NewBridgeService(bridge ContextRunner) *BridgeService {
	return &BridgeService{bridge: bridge, name: "live-event-bridge"}
}

// Serve implements suture.Service.
func (s *BridgeService) Serve(ctx context.Context) error {
	return s.bridge.Run(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *BridgeService) String() string {
	return s.name
}
