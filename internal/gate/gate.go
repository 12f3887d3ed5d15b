// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package gate provides the two keyed primitives the submission pipeline
// uses for duplicate suppression and global rate limiting: an atomic
// set-if-absent with expiry, and an atomic fixed-window counter.
//
// Two backends are provided: an in-memory store (default, state lost on
// restart) and a BadgerDB store (persistent, gate decisions survive
// restarts). Both are safe for concurrent use.
package gate

import (
	"context"
	"strings"
	"time"
)

// Gate is the keyed store behind dedup and rate-limit decisions.
type Gate interface {
	// SetIfAbsent atomically creates key with the given TTL if it does not
	// exist. It reports true if the key was created (first writer wins) and
	// false if the key was already present. Expired keys count as absent.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IncrWindow atomically increments the counter at key and returns the
	// post-increment value. On the transition from absent to 1 the key's
	// TTL is set to ttl; subsequent increments within the window never
	// extend it, so the window is fixed, not sliding.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Key prefixes. Kept identical to the wire-visible key shapes used by
// operators inspecting the store.
const (
	dedupPrefix = "dedup:"
	ratePrefix  = "rate:"
)

// DedupKey builds the dedup key for a normalized item list: the items
// joined with "|" under the dedup prefix. Identical normalized lists map
// to identical keys.
func DedupKey(items []string) string {
	return dedupPrefix + strings.Join(items, "|")
}

// RateKey is the single global fixed-window rate counter key.
const RateKey = ratePrefix + "global:minute"
