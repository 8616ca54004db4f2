// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the tutor.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the tutoring
// service. Metrics include:
//   - Request counters (by endpoint, status, error type)
//   - Pipeline stage latency histograms
//   - Stream latency histograms (time to first stage, total duration)
//   - Active stream gauges
//   - Challenge fallback and textbook ingestion counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "vidyasetu"

// Subsystem for tutor metrics
const tutorSubsystem = "tutor"

// TutorMetrics holds all Prometheus metrics for tutoring operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring streaming
// performance and learning activity. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type TutorMetrics struct {
	// RequestsTotal counts requests by endpoint and status.
	// Labels: endpoint (chat_stream, games, ...), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage pipeline latency.
	// Labels: stage (explainer, simplifier, encourager)
	StageDurationSeconds *prometheus.HistogramVec

	// TimeToFirstStageSeconds measures latency from request to the first
	// stage update on the wire.
	// Labels: endpoint
	TimeToFirstStageSeconds *prometheus.HistogramVec

	// StreamDurationSeconds measures total stream duration.
	// Labels: endpoint, status (success, error)
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently active streaming connections.
	// Labels: endpoint
	ActiveStreams *prometheus.GaugeVec

	// ErrorsTotal counts errors by type and endpoint.
	// Labels: endpoint, error_code (safety_violation, llm_error, ...)
	ErrorsTotal *prometheus.CounterVec

	// KeepAlivesTotal counts keepalive pings sent.
	// Labels: endpoint
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts client disconnections during streaming.
	// Labels: endpoint
	ClientDisconnectsTotal *prometheus.CounterVec

	// ChallengesTotal counts generated challenges by source.
	// Labels: subject, source (llm, fallback)
	ChallengesTotal *prometheus.CounterVec

	// TextbookChunksTotal counts chunks ingested into the vector index.
	// Labels: subject
	TextbookChunksTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of TutorMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *TutorMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Outputs
//
//   - *TutorMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *TutorMetrics {
	DefaultMetrics = &TutorMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "requests_total",
				Help:      "Total number of requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage latency in seconds",
				Buckets:   []float64{0.5, 1.0, 2.5, 5.0, 10.0, 20.0, 45.0},
			},
			[]string{"stage"},
		),

		TimeToFirstStageSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "time_to_first_stage_seconds",
				Help:      "Time from request to first stage update in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint"},
		),

		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"endpoint", "status"},
		),

		ActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently active streaming connections",
			},
			[]string{"endpoint"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "errors_total",
				Help:      "Total errors by type and endpoint",
			},
			[]string{"endpoint", "error_code"},
		),

		KeepAlivesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "keepalives_total",
				Help:      "Total keepalive pings sent",
			},
			[]string{"endpoint"},
		),

		ClientDisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total client disconnections during streaming",
			},
			[]string{"endpoint"},
		),

		ChallengesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "challenges_total",
				Help:      "Total generated challenges by subject and source",
			},
			[]string{"subject", "source"},
		),

		TextbookChunksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: tutorSubsystem,
				Name:      "textbook_chunks_total",
				Help:      "Total textbook chunks ingested by subject",
			},
			[]string{"subject"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeSafetyViolation indicates a query blocked by the safety engine.
	ErrorCodeSafetyViolation ErrorCode = "safety_violation"

	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeNotFound indicates an unknown student or resource.
	ErrorCodeNotFound ErrorCode = "not_found"

	// ErrorCodeLLMError indicates LLM API failure.
	ErrorCodeLLMError ErrorCode = "llm_error"

	// ErrorCodeTimeout indicates operation timeout.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeRetrievalError indicates vector index failure.
	ErrorCodeRetrievalError ErrorCode = "retrieval_error"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"

	// ErrorCodeClientDisconnect indicates client disconnected.
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents a request endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointChatStream is the SSE tutoring chat endpoint.
	EndpointChatStream Endpoint = "chat_stream"

	// EndpointGames is the game submission endpoint.
	EndpointGames Endpoint = "games"

	// EndpointChallenges is the challenge generation endpoint.
	EndpointChallenges Endpoint = "challenges"

	// EndpointTextbooks is the textbook upload endpoint.
	EndpointTextbooks Endpoint = "textbooks"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed request.
func (m *TutorMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordError records a categorized error.
func (m *TutorMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// RecordStageDuration records the latency of one pipeline stage.
func (m *TutorMetrics) RecordStageDuration(stage string, seconds float64) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// StreamStarted increments the active streams gauge.
func (m *TutorMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded decrements the active streams gauge.
func (m *TutorMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

// RecordTimeToFirstStage records the latency to the first stage update.
func (m *TutorMetrics) RecordTimeToFirstStage(endpoint Endpoint, seconds float64) {
	m.TimeToFirstStageSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordStreamDuration records the total stream duration.
func (m *TutorMetrics) RecordStreamDuration(endpoint Endpoint, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), status).Observe(seconds)
}

// RecordKeepAlive increments the keepalive counter.
func (m *TutorMetrics) RecordKeepAlive(endpoint Endpoint) {
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordClientDisconnect increments the client disconnect counter.
func (m *TutorMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordChallenge records one generated challenge and where it came from.
func (m *TutorMetrics) RecordChallenge(subject string, fromFallback bool) {
	source := "llm"
	if fromFallback {
		source = "fallback"
	}
	m.ChallengesTotal.WithLabelValues(subject, source).Inc()
}

// RecordTextbookChunks records chunks ingested for a subject.
func (m *TutorMetrics) RecordTextbookChunks(subject string, count int) {
	m.TextbookChunksTotal.WithLabelValues(subject).Add(float64(count))
}
