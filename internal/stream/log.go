// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

// Package stream provides the ordered append-only logs backing the relay:
// one JetStream stream for accepted followup submissions and one for
// derived question events. Appends return the record id assigned by the
// broker; ids are zero-padded decimal sequences so string order equals
// append order, and they double as replay cursors.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/askloop/askloop/internal/logging"
)

// Stream and subject names. Each log is its own JetStream stream so the
// two sequence spaces stay independent.
const (
	FollowupsStream  = "FOLLOWUPS"
	FollowupsSubject = "followups.submitted"

	QuestionsStream  = "QUESTIONS"
	QuestionsSubject = "questions.derived"

	// LiveTopic is the core-NATS (non-JetStream) subject for realtime
	// fan-out of derived events to WebSocket bridges.
	LiveTopic = "questions.live"
)

// Record is one stored log entry.
type Record struct {
	ID   string
	Data []byte
	Time time.Time
}

// Options holds broker connection settings.
type Options struct {
	URL            string
	ConnectTimeout time.Duration
	MaxReconnects  int
	ReconnectWait  time.Duration
}

// Client owns the broker connection and the two logs.
type Client struct {
	nc *nats.Conn
	js jetstream.JetStream

	Followups *Log
	Questions *Log
}

// Connect dials the broker, creates the JetStream context, and ensures
// both streams exist.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	nc, err := nats.Connect(opts.URL,
		nats.Timeout(opts.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	followups, err := ensureLog(ctx, js, FollowupsStream, FollowupsSubject)
	if err != nil {
		nc.Close()
		return nil, err
	}
	questions, err := ensureLog(ctx, js, QuestionsStream, QuestionsSubject)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Client{
		nc:        nc,
		js:        js,
		Followups: followups,
		Questions: questions,
	}, nil
}

// ensureLog creates or updates the stream and wraps it as a Log.
func ensureLog(ctx context.Context, js jetstream.JetStream, name, subject string) (*Log, error) {
	st, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", name, err)
	}
	return &Log{js: js, stream: st, name: name, subject: subject}, nil
}

// Healthy reports whether the broker connection is up.
func (c *Client) Healthy() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("not connected to NATS")
	}
	return nil
}

// Close drains and closes the broker connection.
func (c *Client) Close() {
	if err := c.nc.Drain(); err != nil {
		logging.Warn().Err(err).Msg("NATS drain failed, closing hard")
		c.nc.Close()
	}
}

// Log is one ordered append-only stream.
type Log struct {
	js      jetstream.JetStream
	stream  jetstream.Stream
	name    string
	subject string
}

// Append persists data and returns the assigned record id. The id is
// derived from the broker sequence, so concurrent appends get distinct,
// strictly increasing ids in commit order.
func (l *Log) Append(ctx context.Context, data []byte) (string, error) {
	ack, err := l.js.Publish(ctx, l.subject, data)
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", l.name, err)
	}
	return FormatID(ack.Sequence), nil
}

// ReadSince returns up to limit records strictly after sinceID, in
// ascending id order. An id below the log's retained range starts the read
// at the oldest retained record. Deleted sequences are skipped.
func (l *Log) ReadSince(ctx context.Context, sinceID string, limit int) ([]Record, error) {
	since, err := ParseID(sinceID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	info, err := l.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream info %s: %w", l.name, err)
	}

	start := since + 1
	if start < info.State.FirstSeq {
		start = info.State.FirstSeq
	}

	var records []Record
	for seq := start; seq <= info.State.LastSeq && len(records) < limit; seq++ {
		msg, err := l.stream.GetMsg(ctx, seq)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			// Deleted or unavailable sequence.
			continue
		}
		records = append(records, Record{
			ID:   FormatID(msg.Sequence),
			Data: msg.Data,
			Time: msg.Time,
		})
	}
	return records, nil
}

// LastID returns the id of the newest record, or "" for an empty log.
func (l *Log) LastID(ctx context.Context) (string, error) {
	info, err := l.stream.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("stream info %s: %w", l.name, err)
	}
	if info.State.LastSeq == 0 {
		return "", nil
	}
	return FormatID(info.State.LastSeq), nil
}
