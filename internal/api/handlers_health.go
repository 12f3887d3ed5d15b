// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/askloop/askloop/internal/logging"
)

const readyCheckTimeout = 5 * time.Second

// Health handles liveness requests. It answers 200 whenever the process
// is alive, regardless of dependency state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": time.Since(h.startTime).Seconds(),
			"sessions":       h.hub.GetClientCount(),
		},
	})
}

// HealthReady handles readiness requests. It answers 200 only when every
// registered dependency probe passes, 503 otherwise with the failing
// dependency names.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	failed := make([]string, 0)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logging.Warn().Err(err).Str("dependency", name).Msg("readiness probe failed")
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	if len(failed) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, &APIResponse{
			Success: false,
			Data:    map[string]interface{}{"ready": false, "failed": failed},
			Error:   &APIError{Code: "NOT_READY", Message: "dependencies unavailable"},
		})
		return
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Success: true,
		Data:    map[string]interface{}{"ready": true},
	})
}
