// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package pipeline

import "errors"

// Drop sentinels. They classify why a submission was discarded; the
// submitting client is never told, these surface only in logs and metrics.
var (
	// ErrInvalidPayload marks a submission that failed schema validation
	// or normalized to an empty item list.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPayloadTooLarge marks a submission whose rendered item list
	// exceeds the character budget.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrRateLimited marks a submission over the global window ceiling.
	ErrRateLimited = errors.New("rate limited")

	// ErrDuplicate marks a submission whose normalized items were already
	// seen within the dedup TTL.
	ErrDuplicate = errors.New("duplicate submission")
)
