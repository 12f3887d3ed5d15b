// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package gate

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a counter with an expiry deadline.
type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryGate is a mutex-guarded in-process Gate. Expired entries are
// treated as absent on access and swept periodically so the map does not
// grow without bound.
type MemoryGate struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewMemoryGate creates an in-memory gate with a background sweeper.
func NewMemoryGate() *MemoryGate {
	g := &MemoryGate{
		entries:   make(map[string]memoryEntry),
		now:       time.Now,
		sweepStop: make(chan struct{}),
	}
	go g.sweepLoop(30 * time.Second)
	return g
}

// newMemoryGateWithClock creates a gate without a sweeper, using the given
// clock. Used by tests to control expiry deterministically.
func newMemoryGateWithClock(now func() time.Time) *MemoryGate {
	return &MemoryGate{
		entries:   make(map[string]memoryEntry),
		now:       now,
		sweepStop: make(chan struct{}),
	}
}

// SetIfAbsent implements Gate.
func (g *MemoryGate) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	g.entries[key] = memoryEntry{count: 1, expiresAt: now.Add(ttl)}
	return true, nil
}

// IncrWindow implements Gate.
func (g *MemoryGate) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	e, ok := g.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		// Window start: TTL is set here and never extended.
		g.entries[key] = memoryEntry{count: 1, expiresAt: now.Add(ttl)}
		return 1, nil
	}
	e.count++
	g.entries[key] = e
	return e.count, nil
}

// Close stops the background sweeper.
func (g *MemoryGate) Close() error {
	g.sweepOnce.Do(func() { close(g.sweepStop) })
	return nil
}

func (g *MemoryGate) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.sweepStop:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *MemoryGate) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, e := range g.entries {
		if !now.Before(e.expiresAt) {
			delete(g.entries, key)
		}
	}
}
