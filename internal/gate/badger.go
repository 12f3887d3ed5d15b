// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package gate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/askloop/askloop/internal/logging"
)

// conflictRetries bounds optimistic-transaction retries under contention.
const conflictRetries = 5

// BadgerGate is a Gate backed by BadgerDB. Atomicity comes from Badger's
// serializable transactions; concurrent writers that touch the same key
// conflict and the loser retries. Expiry uses Badger's native key TTLs, so
// gate state (dedup suppressions, the open rate window) survives restarts.
type BadgerGate struct {
	db *badger.DB
}

// NewBadgerGate opens (or creates) the gate database at path.
func NewBadgerGate(path string) (*BadgerGate, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger gate at %s: %w", path, err)
	}
	return &BadgerGate{db: db}, nil
}

// SetIfAbsent implements Gate.
func (g *BadgerGate) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var created bool

	err := g.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			created = false
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			created = true
			entry := badger.NewEntry([]byte(key), encodeCount(1)).WithTTL(ttl)
			return txn.SetEntry(entry)
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("set if absent %s: %w", key, err)
	}
	return created, nil
}

// IncrWindow implements Gate.
func (g *BadgerGate) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var count int64

	err := g.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// Window start: TTL set once, never extended by later hits.
			count = 1
			entry := badger.NewEntry([]byte(key), encodeCount(1)).WithTTL(ttl)
			return txn.SetEntry(entry)
		case err != nil:
			return err
		}

		var current int64
		if err := item.Value(func(val []byte) error {
			current = decodeCount(val)
			return nil
		}); err != nil {
			return err
		}

		count = current + 1
		entry := badger.NewEntry([]byte(key), encodeCount(count))
		if remaining := remainingTTL(item); remaining > 0 {
			entry = entry.WithTTL(remaining)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return 0, fmt.Errorf("incr window %s: %w", key, err)
	}
	return count, nil
}

// Close closes the underlying database.
func (g *BadgerGate) Close() error {
	return g.db.Close()
}

// update runs fn in a read-write transaction, retrying on optimistic
// conflicts.
func (g *BadgerGate) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		err = g.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}

		logging.Debug().
			Int("attempt", attempt+1).
			Msg("gate transaction conflict, retrying")
	}
	return err
}

// remainingTTL derives the TTL left on an item from its expiry timestamp.
// Badger stores expiry at second granularity; zero means no TTL.
func remainingTTL(item *badger.Item) time.Duration {
	exp := item.ExpiresAt()
	if exp == 0 {
		return 0
	}
	return time.Until(time.Unix(int64(exp), 0))
}

func encodeCount(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCount(val []byte) int64 {
	if len(val) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(val))
}
