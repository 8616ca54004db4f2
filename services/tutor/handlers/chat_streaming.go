// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// =============================================================================
// STREAMING CHAT MODULE
// =============================================================================
//
// This module implements the SSE tutoring channel. One HTTP response carries
// one query's full lifecycle: stage progress events from the answer pipeline,
// a single terminal FinalAnswer, and the "data: [DONE]" sentinel.
//
// Validation failures (bad query, unknown student) reject with an HTTP 4xx
// before the channel opens. Once the channel is open, every failure is
// reported in-stream and the response stays 200.
//
// =============================================================================

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/observability"
	"github.com/vidyasetu/vidyasetu/services/tutor/pipeline"
	"github.com/vidyasetu/vidyasetu/services/tutor/safety"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// heartbeatInterval is the interval for sending keepalive pings.
	// Set to 15s to stay well under typical LB timeouts (60s for ALB/Nginx).
	heartbeatInterval = 15 * time.Second

	// transcriptPersistTimeout bounds the post-stream transcript write so a
	// slow disk cannot hold the handler open indefinitely.
	transcriptPersistTimeout = 5 * time.Second
)

// =============================================================================
// Pipeline Contract
// =============================================================================

// AnswerPipeline runs one tutoring query and emits progress to the sink.
//
// # Description
//
// Abstracts the staged answer pipeline so handlers can be tested with a
// scripted implementation. The production implementation is
// pipeline.Council.
type AnswerPipeline interface {
	Run(ctx context.Context, query string, profile *datatypes.StudentProfile, sink pipeline.EventSink) (*datatypes.FinalAnswer, error)
}

var _ AnswerPipeline = (*pipeline.Council)(nil)

// =============================================================================
// Handler Definition
// =============================================================================

// ChatStreamHandler serves the SSE tutoring endpoint.
type ChatStreamHandler interface {
	// HandleChatStream answers one query over SSE.
	HandleChatStream(c *gin.Context)
}

// chatStreamHandler implements ChatStreamHandler.
//
// # Fields
//
//   - answerer: staged pipeline producing the answer
//   - profiles: profile store for student lookup and transcript persistence
//   - safetyEngine: query pre-check; blocked queries never reach the LLM
//   - tracer: package tracer for handler spans
type chatStreamHandler struct {
	answerer     AnswerPipeline
	profiles     *store.ProfileStore
	safetyEngine *safety.Engine
	tracer       trace.Tracer
}

// NewChatStreamHandler creates a ChatStreamHandler with the provided
// dependencies.
//
// # Inputs
//
//   - answerer: staged answer pipeline. Must not be nil.
//   - profiles: profile store. Must not be nil.
//   - safetyEngine: safety engine. Must not be nil.
//
// # Outputs
//
//   - ChatStreamHandler: Ready for use with the Gin router.
//
// # Limitations
//
//   - Panics on nil dependencies (programming errors).
func NewChatStreamHandler(
	answerer AnswerPipeline,
	profiles *store.ProfileStore,
	safetyEngine *safety.Engine,
) ChatStreamHandler {
	if answerer == nil {
		panic("NewChatStreamHandler: answerer must not be nil")
	}
	if profiles == nil {
		panic("NewChatStreamHandler: profiles must not be nil")
	}
	if safetyEngine == nil {
		panic("NewChatStreamHandler: safetyEngine must not be nil")
	}

	return &chatStreamHandler{
		answerer:     answerer,
		profiles:     profiles,
		safetyEngine: safetyEngine,
		tracer:       otel.Tracer("vidyasetu.tutor.handlers"),
	}
}

// =============================================================================
// SSE Sink Adapter
// =============================================================================

// sseSink bridges pipeline events onto an SSEWriter and records the time
// to first stage update.
type sseSink struct {
	writer   SSEWriter
	endpoint observability.Endpoint
	start    time.Time

	firstOnce sync.Once
}

func (s *sseSink) Status(message string) error {
	return s.writer.WriteStatus(message)
}

func (s *sseSink) Stage(update datatypes.StageUpdate) error {
	s.firstOnce.Do(func() {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordTimeToFirstStage(s.endpoint, time.Since(s.start).Seconds())
		}
	})
	return s.writer.WriteStage(update)
}

func (s *sseSink) Final(final datatypes.FinalAnswer) error {
	return s.writer.WriteFinal(final)
}

var _ pipeline.EventSink = (*sseSink)(nil)

// =============================================================================
// Handler
// =============================================================================

// HandleChatStream answers one tutoring query over SSE.
//
// # Description
//
// Accepts GET with query parameters (the EventSource path) or POST with a
// JSON body. Emits, in order: a status event, a thinking/done pair per
// pipeline stage, the FinalAnswer, and the "data: [DONE]" sentinel.
// Queries blocked by the safety engine skip the pipeline and stream a
// redirect message as the final answer.
//
// # Inputs
//
//   - c: Gin context. query and student_id arrive as query params (GET)
//     or JSON body fields (POST).
//
// # Outputs
//
// Wire format:
//
//	data: {"agent":"explainer","status":"thinking"}
//
//	data: {"agent":"explainer","status":"done","text":"..."}
//
//	data: {"final":"...","query_id":"...","safety_verified":true,...}
//
//	data: [DONE]
//
// # Limitations
//
//   - Errors after the channel opens are sent as events, not HTTP errors
//
// # Assumptions
//
//   - Client supports SSE and closes on the sentinel
func (h *chatStreamHandler) HandleChatStream(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointChatStream

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleChatStream")
	defer span.End()

	// Track active stream (for metrics)
	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			duration := time.Since(startTime).Seconds()
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, duration, success)
		}
	}()

	// Step 1: Bind the request from query params (GET) or JSON body (POST)
	var req datatypes.ChatStreamRequest
	var bindErr error
	if c.Request.Method == http.MethodPost {
		bindErr = c.ShouldBindJSON(&req)
	} else {
		bindErr = c.ShouldBindQuery(&req)
	}
	if bindErr != nil {
		span.RecordError(bindErr)
		span.SetStatus(codes.Error, "invalid request")
		slog.Error("Failed to parse chat stream request", "error", bindErr)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// Step 2: Validate request
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Chat stream request validation failed",
			"error", err,
			"studentId", req.StudentID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	span.SetAttributes(
		attribute.String("student.id", req.StudentID),
		attribute.Int("query.bytes", len(req.Query)),
	)

	// Step 3: Load the student profile. Unknown students fail before the
	// channel opens so the client gets a real HTTP status.
	profile, err := h.profiles.Get(req.StudentID)
	if err != nil {
		span.SetStatus(codes.Error, "student not found")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeNotFound)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	span.SetAttributes(
		attribute.Int("student.grade", profile.Grade),
		attribute.String("student.subject", profile.Subject),
	)

	// Step 4: Safety pre-check. Blocked queries never reach the pipeline;
	// the redirect message streams as a normal final answer so the client
	// UI stays on its happy path.
	verdict := h.safetyEngine.CheckQuery(req.Query)
	if verdict.Blocked {
		span.SetAttributes(attribute.String("safety.category", verdict.Category))
		slog.Warn("Blocked unsafe query",
			"category", verdict.Category,
			"studentId", req.StudentID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeSafetyViolation)
		}
		h.streamRedirect(c, verdict)
		return
	}

	// Step 5: Set SSE headers and create writer
	SetSSEHeaders(c.Writer)
	sseWriter, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		slog.Error("Failed to create SSE writer",
			"error", err,
			"studentId", req.StudentID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	// Step 6: Start heartbeat goroutine to prevent connection timeouts
	heartbeatDone := make(chan struct{})
	go h.runHeartbeat(ctx, sseWriter, endpoint, heartbeatDone)

	// Step 7: Run the staged pipeline, streaming progress as it goes.
	// The request context carries client disconnects into the pipeline.
	sink := &sseSink{writer: sseWriter, endpoint: endpoint, start: startTime}
	final, runErr := h.answerer.Run(ctx, req.Query, profile, sink)

	// Stop heartbeat
	close(heartbeatDone)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "pipeline failed")
		slog.Error("Answer pipeline failed",
			"error", runErr,
			"studentId", req.StudentID,
		)
		if errors.Is(runErr, context.Canceled) {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
				m.RecordClientDisconnect(endpoint)
			}
			// Client is gone; nothing left to write.
			return
		}
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		_ = sseWriter.WriteError("Something went wrong. Please try again.")
		_ = sseWriter.WriteDone()
		return
	}

	// Step 8: Persist the transcript turn. Decoupled from the request
	// context so a disconnect during the write does not lose the turn.
	if final != nil {
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transcriptPersistTimeout)
		if err := h.profiles.AppendTranscript(persistCtx, datatypes.TranscriptEntry{
			QueryID:        final.QueryID,
			StudentID:      req.StudentID,
			Query:          req.Query,
			Response:       final.Final,
			AgentSteps:     final.AgentSteps,
			SafetyVerified: final.SafetyVerified,
			Grounded:       final.Grounded,
			Timestamp:      time.Now().UTC(),
		}); err != nil {
			slog.Error("Failed to persist transcript turn",
				"error", err,
				"studentId", req.StudentID,
				"queryId", final.QueryID,
			)
		}
		cancel()
	}

	// Step 9: Emit the end-of-stream sentinel
	if err := sseWriter.WriteDone(); err != nil {
		span.RecordError(err)
		slog.Error("Failed to write done sentinel",
			"error", err,
			"studentId", req.StudentID,
		)
		return
	}

	success = true
	slog.Info("Chat stream completed",
		"studentId", req.StudentID,
		"queryId", final.QueryID,
		"grounded", final.Grounded,
		"durationMs", time.Since(startTime).Milliseconds(),
	)
}

// streamRedirect answers a blocked query with the category's redirect
// message, delivered through the normal SSE final/sentinel shape.
func (h *chatStreamHandler) streamRedirect(c *gin.Context, verdict safety.Verdict) {
	SetSSEHeaders(c.Writer)
	sseWriter, err := NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	_ = sseWriter.WriteFinal(datatypes.FinalAnswer{
		Final:          verdict.Redirect,
		QueryID:        uuid.NewString(),
		SafetyVerified: false,
	})
	_ = sseWriter.WriteDone()
}

// runHeartbeat sends keepalive pings until the stream finishes.
func (h *chatStreamHandler) runHeartbeat(
	ctx context.Context,
	writer SSEWriter,
	endpoint observability.Endpoint,
	done <-chan struct{},
) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		}
	}
}

var _ ChatStreamHandler = (*chatStreamHandler)(nil)
