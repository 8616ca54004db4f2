// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// newHistoryRouter wires the history endpoints around a fresh store
// with one enrolled student.
func newHistoryRouter(t *testing.T) (*gin.Engine, *store.ProfileStore, string) {
	t.Helper()

	profiles, studentID := newTestProfileStore(t)
	router := gin.New()
	router.GET("/v1/chat/history/:studentId", HandleChatHistory(profiles))
	router.DELETE("/v1/chat/history/:studentId", HandleClearHistory(profiles))
	return router, profiles, studentID
}

// seedTurns appends n transcript turns for the student.
func seedTurns(t *testing.T, profiles *store.ProfileStore, studentID string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		err := profiles.AppendTranscript(context.Background(), datatypes.TranscriptEntry{
			QueryID:        fmt.Sprintf("q-%d", i),
			StudentID:      studentID,
			Query:          fmt.Sprintf("question %d", i),
			Response:       fmt.Sprintf("answer %d", i),
			SafetyVerified: true,
			Timestamp:      time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

// TestHandleChatHistory_ReturnsTurns verifies persisted turns come
// back with the count.
func TestHandleChatHistory_ReturnsTurns(t *testing.T) {
	router, profiles, studentID := newHistoryRouter(t)
	seedTurns(t, profiles, studentID, 3)

	w, resp := doJSON(t, router, "GET", "/v1/chat/history/"+studentID, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), resp["count"])
	assert.Equal(t, studentID, resp["student_id"])

	history, ok := resp["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 3)
}

// TestHandleChatHistory_LimitApplies verifies the limit query param.
func TestHandleChatHistory_LimitApplies(t *testing.T) {
	router, profiles, studentID := newHistoryRouter(t)
	seedTurns(t, profiles, studentID, 5)

	w, resp := doJSON(t, router, "GET", "/v1/chat/history/"+studentID+"?limit=2", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["count"])
}

// TestHandleChatHistory_InvalidLimit verifies limit bounds.
func TestHandleChatHistory_InvalidLimit(t *testing.T) {
	router, _, studentID := newHistoryRouter(t)

	for _, limit := range []string{"0", "-1", "9999", "abc"} {
		w, _ := doJSON(t, router, "GET", "/v1/chat/history/"+studentID+"?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit %q should be rejected", limit)
	}
}

// TestHandleChatHistory_UnknownStudent verifies 404 for unknown ids.
func TestHandleChatHistory_UnknownStudent(t *testing.T) {
	router, _, _ := newHistoryRouter(t)

	w, _ := doJSON(t, router, "GET", "/v1/chat/history/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHandleClearHistory verifies deletion empties the transcript.
func TestHandleClearHistory(t *testing.T) {
	router, profiles, studentID := newHistoryRouter(t)
	seedTurns(t, profiles, studentID, 2)

	w, resp := doJSON(t, router, "DELETE", "/v1/chat/history/"+studentID, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])

	remaining, err := profiles.History(context.Background(), studentID, 50)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
