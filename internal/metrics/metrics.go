// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reason label values for SubmissionsDropped.
const (
	DropReasonInvalid    = "invalid"
	DropReasonOversize   = "oversize"
	DropReasonRateLimit  = "rate_limit"
	DropReasonDuplicate  = "duplicate"
	DropReasonGateError  = "gate_error"
	DropReasonAppendFail = "append_failed"
)

var (
	// Submission pipeline metrics
	SubmissionsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askloop_submissions_received_total",
			Help: "Total number of submit envelopes received over WebSocket",
		},
	)

	SubmissionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askloop_submissions_dropped_total",
			Help: "Total number of submissions silently dropped, by reason",
		},
		[]string{"reason"},
	)

	DerivedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askloop_derived_events_total",
			Help: "Total number of derived question events appended and published",
		},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askloop_pipeline_duration_seconds",
			Help:    "End-to-end duration of accepted submissions through the pipeline",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	// Enrichment metrics
	EnrichmentRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askloop_enrichment_requests_total",
			Help: "Total number of enrichment attempts against the provider",
		},
	)

	EnrichmentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askloop_enrichment_fallbacks_total",
			Help: "Total number of enrichments that used the deterministic fallback sentence",
		},
		[]string{"cause"}, // "provider_error", "breaker_open", "throttled", "empty_result"
	)

	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askloop_enrichment_duration_seconds",
			Help:    "Duration of enrichment provider calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	// WebSocket metrics
	WSClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "askloop_websocket_clients",
			Help: "Current number of connected WebSocket sessions",
		},
	)

	WSBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askloop_websocket_broadcasts_total",
			Help: "Total number of events broadcast to the session registry",
		},
	)

	WSSendDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askloop_websocket_send_drops_total",
			Help: "Total number of sessions evicted because their send buffer was full",
		},
	)

	// Replay metrics
	ReplayRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askloop_replay_requests_total",
			Help: "Total number of replaySince requests served",
		},
	)

	ReplayRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askloop_replay_records_total",
			Help: "Total number of derived records delivered through replay",
		},
	)

	// Gate metrics
	GateErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askloop_gate_errors_total",
			Help: "Total number of dedup/rate gate backend errors",
		},
		[]string{"op"}, // "set_if_absent", "incr_window"
	)
)

// ObserveEnrichment records the duration of a single enrichment call.
func ObserveEnrichment(start time.Time) {
	EnrichmentDuration.Observe(time.Since(start).Seconds())
}

// ObservePipeline records the duration of an accepted submission.
func ObservePipeline(start time.Time) {
	PipelineDuration.Observe(time.Since(start).Seconds())
}
