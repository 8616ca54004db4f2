// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/pipeline"
	"github.com/vidyasetu/vidyasetu/services/tutor/safety"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// ScriptedPipeline implements AnswerPipeline for handler testing.
//
// # Description
//
// Replays a fixed sequence of stage updates and a final answer through
// the sink, or fails with a configured error. Tracks invocations so
// tests can verify the pipeline was (or was not) reached.
type ScriptedPipeline struct {
	// Stages are replayed through the sink before the final answer
	Stages []datatypes.StageUpdate
	// Final is delivered through the sink and returned
	Final *datatypes.FinalAnswer
	// RunError is returned after the stages are replayed
	RunError error
	// RunCallCount tracks how many times Run was called
	RunCallCount int
	// LastQuery stores the last query passed to Run
	LastQuery string
}

// Run implements AnswerPipeline.
func (p *ScriptedPipeline) Run(ctx context.Context, query string, profile *datatypes.StudentProfile, sink pipeline.EventSink) (*datatypes.FinalAnswer, error) {
	p.RunCallCount++
	p.LastQuery = query

	for _, update := range p.Stages {
		if err := sink.Stage(update); err != nil {
			return nil, err
		}
	}
	if p.RunError != nil {
		return nil, p.RunError
	}
	if err := sink.Final(*p.Final); err != nil {
		return nil, err
	}
	return p.Final, nil
}

// newTestProfileStore creates a memory-backed store with one enrolled
// student and returns the store and the student's id.
func newTestProfileStore(t *testing.T) (*store.ProfileStore, string) {
	t.Helper()

	profiles, err := store.NewProfileStore(context.Background(), store.NewMemoryPersister())
	require.NoError(t, err, "profile store should initialize")
	t.Cleanup(func() { _ = profiles.Close() })

	result, err := profiles.CreateOrResume(context.Background(), datatypes.LoginRequest{
		Name:    "Asha",
		Grade:   3,
		Subject: "science",
	})
	require.NoError(t, err, "test student should enroll")

	return profiles, result.Profile.StudentID
}

// createTestChatStreamHandler wires a handler around the scripted
// pipeline and a fresh store.
func createTestChatStreamHandler(t *testing.T, answerer AnswerPipeline) (ChatStreamHandler, string) {
	t.Helper()

	profiles, studentID := newTestProfileStore(t)
	engine, err := safety.NewEngine()
	require.NoError(t, err, "safety engine should initialize")

	return NewChatStreamHandler(answerer, profiles, engine), studentID
}

// scriptedAnswer builds a pipeline that succeeds with a full stage
// sequence and a grounded final answer.
func scriptedAnswer() *ScriptedPipeline {
	return &ScriptedPipeline{
		Stages: []datatypes.StageUpdate{
			{Agent: datatypes.StageExplain, Status: datatypes.StageThinking},
			{Agent: datatypes.StageExplain, Status: datatypes.StageDone, Text: "Photosynthesis is how plants make food."},
			{Agent: datatypes.StageSimplify, Status: datatypes.StageThinking},
			{Agent: datatypes.StageSimplify, Status: datatypes.StageDone, Text: "Plants cook their own lunch with sunlight."},
			{Agent: datatypes.StageEncourage, Status: datatypes.StageThinking},
			{Agent: datatypes.StageEncourage, Status: datatypes.StageDone, Text: "Great question!"},
		},
		Final: &datatypes.FinalAnswer{
			Final:          "Plants cook their own lunch with sunlight. Great question!",
			QueryID:        "q-test-1",
			SafetyVerified: true,
			Grounded:       true,
		},
	}
}

// =============================================================================
// NewChatStreamHandler Tests
// =============================================================================

// TestNewChatStreamHandler_PanicsOnNilAnswerer verifies the nil guard
// for the pipeline dependency.
func TestNewChatStreamHandler_PanicsOnNilAnswerer(t *testing.T) {
	profiles, _ := newTestProfileStore(t)
	engine, err := safety.NewEngine()
	require.NoError(t, err)

	assert.Panics(t, func() {
		NewChatStreamHandler(nil, profiles, engine)
	}, "should panic on nil answerer")
}

// TestNewChatStreamHandler_PanicsOnNilProfiles verifies the nil guard
// for the profile store.
func TestNewChatStreamHandler_PanicsOnNilProfiles(t *testing.T) {
	engine, err := safety.NewEngine()
	require.NoError(t, err)

	assert.Panics(t, func() {
		NewChatStreamHandler(&ScriptedPipeline{}, nil, engine)
	}, "should panic on nil profiles")
}

// TestNewChatStreamHandler_PanicsOnNilSafetyEngine verifies the nil
// guard for the safety engine.
func TestNewChatStreamHandler_PanicsOnNilSafetyEngine(t *testing.T) {
	profiles, _ := newTestProfileStore(t)

	assert.Panics(t, func() {
		NewChatStreamHandler(&ScriptedPipeline{}, profiles, nil)
	}, "should panic on nil safetyEngine")
}

// =============================================================================
// HandleChatStream Tests
// =============================================================================

// TestHandleChatStream_InvalidRequestBody verifies 400 for invalid JSON
// on the POST variant.
func TestHandleChatStream_InvalidRequestBody(t *testing.T) {
	answerer := scriptedAnswer()
	handler, _ := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.POST("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("POST", "/v1/chat/stream", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, "should return 400 for invalid JSON")
	assert.Equal(t, 0, answerer.RunCallCount, "pipeline should not run")
}

// TestHandleChatStream_ValidationFailure verifies 400 when student_id
// is not a UUID.
func TestHandleChatStream_ValidationFailure(t *testing.T) {
	answerer := scriptedAnswer()
	handler, _ := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET", "/v1/chat/stream?query=why+is+the+sky+blue&student_id=not-a-uuid", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, "should return 400 for validation failure")
	assert.Equal(t, 0, answerer.RunCallCount, "pipeline should not run")
}

// TestHandleChatStream_UnknownStudent verifies 404 before the channel
// opens when the student does not exist.
func TestHandleChatStream_UnknownStudent(t *testing.T) {
	answerer := scriptedAnswer()
	handler, _ := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET",
		"/v1/chat/stream?query=why+is+the+sky+blue&student_id=11111111-2222-4333-8444-555555555555", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code, "should return 404 for unknown student")
	assert.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"),
		"channel must not open for unknown students")
	assert.Equal(t, 0, answerer.RunCallCount, "pipeline should not run")
}

// TestHandleChatStream_Success verifies the full event sequence for a
// clean query: stage pairs in order, the final answer, the sentinel.
func TestHandleChatStream_Success(t *testing.T) {
	answerer := scriptedAnswer()
	handler, studentID := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET",
		"/v1/chat/stream?query=how+do+plants+eat&student_id="+studentID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 8, "six stage updates, one final, one sentinel")

	// Stage pairs arrive in pipeline order, thinking before done
	var first datatypes.StageUpdate
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &first))
	assert.Equal(t, datatypes.StageExplain, first.Agent)
	assert.Equal(t, datatypes.StageThinking, first.Status)

	var last datatypes.StageUpdate
	require.NoError(t, json.Unmarshal([]byte(payloads[5]), &last))
	assert.Equal(t, datatypes.StageEncourage, last.Agent)
	assert.Equal(t, datatypes.StageDone, last.Status)

	var final datatypes.FinalAnswer
	require.NoError(t, json.Unmarshal([]byte(payloads[6]), &final))
	assert.Equal(t, "q-test-1", final.QueryID)
	assert.True(t, final.SafetyVerified)
	assert.True(t, final.Grounded)

	assert.Equal(t, "[DONE]", payloads[7], "stream must end with the sentinel")

	assert.Equal(t, 1, answerer.RunCallCount)
	assert.Equal(t, "how do plants eat", answerer.LastQuery)
}

// TestHandleChatStream_PersistsTranscript verifies the turn lands in
// the student's history after a successful stream.
func TestHandleChatStream_PersistsTranscript(t *testing.T) {
	answerer := scriptedAnswer()
	profiles, studentID := newTestProfileStore(t)
	engine, err := safety.NewEngine()
	require.NoError(t, err)
	handler := NewChatStreamHandler(answerer, profiles, engine)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET",
		"/v1/chat/stream?query=how+do+plants+eat&student_id="+studentID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	history, err := profiles.History(context.Background(), studentID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1, "one turn should be persisted")
	assert.Equal(t, "how do plants eat", history[0].Query)
	assert.Equal(t, answerer.Final.Final, history[0].Response)
	assert.Equal(t, "q-test-1", history[0].QueryID)
	assert.True(t, history[0].SafetyVerified)
}

// TestHandleChatStream_BlockedQuery verifies a blocked question never
// reaches the pipeline and streams the redirect as a normal final.
func TestHandleChatStream_BlockedQuery(t *testing.T) {
	answerer := scriptedAnswer()
	handler, studentID := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET",
		"/v1/chat/stream?query=how+to+make+a+bomb&student_id="+studentID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "blocked queries still stream a 200")
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, 0, answerer.RunCallCount, "pipeline must not see blocked queries")

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 2, "redirect final plus sentinel")

	var final datatypes.FinalAnswer
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &final))
	assert.False(t, final.SafetyVerified)
	assert.NotEmpty(t, final.Final, "redirect message should not be empty")
	assert.NotEmpty(t, final.QueryID)

	assert.Equal(t, "[DONE]", payloads[1])
}

// TestHandleChatStream_PipelineError verifies the in-stream error path:
// the response is already 200, so the failure arrives as an error event
// followed by the sentinel.
func TestHandleChatStream_PipelineError(t *testing.T) {
	answerer := &ScriptedPipeline{
		Stages: []datatypes.StageUpdate{
			{Agent: datatypes.StageExplain, Status: datatypes.StageThinking},
		},
		RunError: assert.AnError,
	}
	handler, studentID := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET",
		"/v1/chat/stream?query=how+do+plants+eat&student_id="+studentID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 3, "thinking update, error event, sentinel")

	var event map[string]string
	require.NoError(t, json.Unmarshal([]byte(payloads[1]), &event))
	assert.Equal(t, "error", event["type"])
	assert.Equal(t, "Something went wrong. Please try again.", event["error"])

	assert.Equal(t, "[DONE]", payloads[2])
}

// TestHandleChatStream_ClientDisconnect verifies a cancelled context is
// treated as a disconnect: no error event is written.
func TestHandleChatStream_ClientDisconnect(t *testing.T) {
	answerer := &ScriptedPipeline{RunError: context.Canceled}
	handler, studentID := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET",
		"/v1/chat/stream?query=how+do+plants+eat&student_id="+studentID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	payloads := parseDataLines(t, w.Body.String())
	for _, p := range payloads {
		assert.NotContains(t, p, `"error"`, "disconnects must not produce error events")
	}
}

// TestHandleChatStream_POSTBody verifies the POST variant binds the
// request from the JSON body.
func TestHandleChatStream_POSTBody(t *testing.T) {
	answerer := scriptedAnswer()
	handler, studentID := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.POST("/v1/chat/stream", handler.HandleChatStream)

	body, _ := json.Marshal(datatypes.ChatStreamRequest{
		Query:     "how do plants eat",
		StudentID: studentID,
	})
	req, _ := http.NewRequest("POST", "/v1/chat/stream", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, answerer.RunCallCount)
	assert.Equal(t, "how do plants eat", answerer.LastQuery)
}

// TestHandleChatStream_SSEHeaders verifies the streaming headers.
func TestHandleChatStream_SSEHeaders(t *testing.T) {
	answerer := scriptedAnswer()
	handler, studentID := createTestChatStreamHandler(t, answerer)

	router := gin.New()
	router.GET("/v1/chat/stream", handler.HandleChatStream)

	req, _ := http.NewRequest("GET",
		"/v1/chat/stream?query=how+do+plants+eat&student_id="+studentID, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
}
