// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package stream

import (
	"fmt"
	"strconv"
)

// idWidth is the fixed digit count of record ids. 20 digits covers the
// full uint64 sequence space, so lexicographic order always equals
// numeric order.
const idWidth = 20

// FormatID renders a JetStream sequence as a record id.
func FormatID(seq uint64) string {
	return fmt.Sprintf("%0*d", idWidth, seq)
}

// ParseID parses a record id back into a sequence number. Ids produced by
// FormatID always parse; anything else is rejected.
func ParseID(id string) (uint64, error) {
	if len(id) != idWidth {
		return 0, fmt.Errorf("record id %q: want %d digits", id, idWidth)
	}
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("record id %q: %w", id, err)
	}
	return seq, nil
}
