// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

// =============================================================================
// Test Helpers
// =============================================================================

// noFlushWriter wraps a ResponseWriter and hides http.Flusher.
type noFlushWriter struct {
	header http.Header
}

func (w *noFlushWriter) Header() http.Header         { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(statusCode int)  {}

// parseDataLines extracts the payloads of every "data:" record in an
// SSE body, in order. Comment lines are skipped.
func parseDataLines(t *testing.T, body string) []string {
	t.Helper()

	var payloads []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			payloads = append(payloads, strings.TrimPrefix(line, "data: "))
		}
	}
	return payloads
}

// =============================================================================
// NewSSEWriter Tests
// =============================================================================

// TestNewSSEWriter_Success verifies construction with a flushable writer.
func TestNewSSEWriter_Success(t *testing.T) {
	w := httptest.NewRecorder()

	writer, err := NewSSEWriter(w)

	require.NoError(t, err)
	assert.NotNil(t, writer)
}

// TestNewSSEWriter_NoFlusher verifies that construction fails when the
// ResponseWriter cannot flush.
func TestNewSSEWriter_NoFlusher(t *testing.T) {
	w := &noFlushWriter{header: make(http.Header)}

	writer, err := NewSSEWriter(w)

	assert.Error(t, err)
	assert.Nil(t, writer)
}

// =============================================================================
// Write Method Tests
// =============================================================================

// TestSSEWriter_WriteStage verifies the wire shape of a stage update.
func TestSSEWriter_WriteStage(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteStage(datatypes.StageUpdate{
		Agent:  datatypes.StageExplain,
		Status: datatypes.StageThinking,
	})
	require.NoError(t, err)

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 1)

	var update datatypes.StageUpdate
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &update))
	assert.Equal(t, datatypes.StageExplain, update.Agent)
	assert.Equal(t, datatypes.StageThinking, update.Status)
	assert.Empty(t, update.Text, "thinking updates carry no text")

	// No event type line; the client dispatches on the JSON shape
	assert.NotContains(t, w.Body.String(), "event:")
}

// TestSSEWriter_WriteStatus verifies the status event shape.
func TestSSEWriter_WriteStatus(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteStatus("Found 3 textbook passages")
	require.NoError(t, err)

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 1)

	var event map[string]string
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &event))
	assert.Equal(t, "status", event["type"])
	assert.Equal(t, "Found 3 textbook passages", event["message"])
}

// TestSSEWriter_WriteFinal verifies the terminal payload shape.
func TestSSEWriter_WriteFinal(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteFinal(datatypes.FinalAnswer{
		Final:          "Plants make food from sunlight.",
		QueryID:        "q-123",
		SafetyVerified: true,
		Grounded:       true,
	})
	require.NoError(t, err)

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 1)

	var final datatypes.FinalAnswer
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &final))
	assert.Equal(t, "Plants make food from sunlight.", final.Final)
	assert.Equal(t, "q-123", final.QueryID)
	assert.True(t, final.SafetyVerified)
	assert.True(t, final.Grounded)
}

// TestSSEWriter_WriteError verifies the error event shape.
func TestSSEWriter_WriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteError("Something went wrong. Please try again.")
	require.NoError(t, err)

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 1)

	var event map[string]string
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &event))
	assert.Equal(t, "error", event["type"])
	assert.Equal(t, "Something went wrong. Please try again.", event["error"])
}

// TestSSEWriter_WriteDone verifies the sentinel is a raw data line,
// not JSON.
func TestSSEWriter_WriteDone(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteDone()
	require.NoError(t, err)

	assert.Equal(t, "data: [DONE]\n\n", w.Body.String())
}

// TestSSEWriter_WriteKeepAlive verifies the comment format.
func TestSSEWriter_WriteKeepAlive(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteKeepAlive()
	require.NoError(t, err)

	assert.Equal(t, ": ping\n\n", w.Body.String())
	assert.Empty(t, parseDataLines(t, w.Body.String()),
		"keepalives must never appear as data records")
}

// TestSSEWriter_EventOrder verifies that records are written in call
// order with blank-line separation.
func TestSSEWriter_EventOrder(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteStatus("working"))
	require.NoError(t, writer.WriteStage(datatypes.StageUpdate{
		Agent:  datatypes.StageExplain,
		Status: datatypes.StageDone,
		Text:   "explanation",
	}))
	require.NoError(t, writer.WriteFinal(datatypes.FinalAnswer{Final: "answer", QueryID: "q"}))
	require.NoError(t, writer.WriteDone())

	payloads := parseDataLines(t, w.Body.String())
	require.Len(t, payloads, 4)
	assert.Contains(t, payloads[0], `"status"`)
	assert.Contains(t, payloads[1], `"explainer"`)
	assert.Contains(t, payloads[2], `"final"`)
	assert.Equal(t, "[DONE]", payloads[3])
}

// =============================================================================
// SetSSEHeaders Tests
// =============================================================================

// TestSetSSEHeaders verifies all required SSE headers are set.
func TestSetSSEHeaders(t *testing.T) {
	w := httptest.NewRecorder()

	SetSSEHeaders(w)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
}
