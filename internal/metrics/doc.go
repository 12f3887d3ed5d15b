// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

/*
Package metrics provides Prometheus instrumentation for the relay.

Metrics are exposed at the /metrics endpoint in Prometheus text format.
The package covers:

  - Submission pipeline throughput and silent-drop reasons
  - Enrichment provider latency and fallback counts
  - WebSocket session counts, broadcast volume, and buffer evictions
  - Replay request and record counts
  - Dedup/rate gate backend errors

All metrics are registered via promauto at package load and are safe for
concurrent use. Label cardinality is bounded: drop reasons and fallback
causes come from fixed constant sets, never from user input.

Example PromQL:

	# Submission drop rate by reason
	rate(askloop_submissions_dropped_total[5m])

	# Enrichment p95 latency
	histogram_quantile(0.95, rate(askloop_enrichment_duration_seconds_bucket[5m]))
*/
package metrics
