// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package services

import (
	"context"
	"errors"
	"testing"
)

// fakeRunner records invocation and mirrors the context error.
type fakeRunner struct {
	ran bool
	err error
}

func (r *fakeRunner) Run(ctx context.Context) error {
	r.ran = true
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHubServiceDelegates(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewHubService(runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !runner.ran {
		t.Error("Run was never called")
	}
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestBridgeServicePropagatesFailure(t *testing.T) {
	subscribeErr := errors.New("subscribe failed")
	runner := &fakeRunner{err: subscribeErr}
	svc := NewBridgeService(runner)

	if err := svc.Serve(context.Background()); !errors.Is(err, subscribeErr) {
		t.Errorf("err = %v, want subscribe failure", err)
	}
	if svc.String() != "live-event-bridge" {
		t.Errorf("String() = %q", svc.String())
	}
}
