// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package pipeline

import "strings"

// normalizeItems canonicalizes a raw item list: every raw entry is split
// on commas, fragments are trimmed, empties dropped, and the result is
// truncated to maxItems. The size check runs on the rendered form
// (items joined with ", ") before truncation, so an oversize list is
// rejected rather than silently shortened into acceptance.
func normalizeItems(raw []string, maxItems, maxTotalChars int) ([]string, error) {
	var list []string
	for _, entry := range raw {
		for _, fragment := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(fragment); trimmed != "" {
				list = append(list, trimmed)
			}
		}
	}

	if len(list) == 0 {
		return nil, ErrInvalidPayload
	}
	if len(strings.Join(list, ", ")) > maxTotalChars {
		return nil, ErrPayloadTooLarge
	}
	if len(list) > maxItems {
		list = list[:maxItems]
	}
	return list, nil
}
