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
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newAuthRouter wires the auth endpoints around a fresh memory store.
func newAuthRouter(t *testing.T) (*gin.Engine, *store.ProfileStore) {
	t.Helper()

	profiles, err := store.NewProfileStore(context.Background(), store.NewMemoryPersister())
	require.NoError(t, err)
	t.Cleanup(func() { _ = profiles.Close() })

	router := gin.New()
	router.POST("/v1/auth/login", HandleLogin(profiles))
	router.GET("/v1/profile/:studentId", HandleGetProfile(profiles))
	router.PUT("/v1/profile/:studentId", HandleUpdateProfile(profiles))
	router.GET("/v1/profile/:studentId/stats", HandleStats(profiles))
	return router, profiles
}

// doJSON performs a JSON request and decodes the response body into a
// generic map.
func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if len(w.Body.Bytes()) > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

// =============================================================================
// HandleLogin Tests
// =============================================================================

// TestHandleLogin_NewStudent verifies first login creates a profile.
func TestHandleLogin_NewStudent(t *testing.T) {
	router, _ := newAuthRouter(t)

	w, resp := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name:    "Asha",
		Grade:   3,
		Subject: "science",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["is_new"])
	assert.Equal(t, false, resp["resumed"])

	profile, ok := resp["profile"].(map[string]any)
	require.True(t, ok, "response should carry the profile")
	assert.NotEmpty(t, profile["student_id"])
	assert.Equal(t, float64(3), profile["grade"])
}

// TestHandleLogin_ResumeSameTriple verifies the same name+grade+subject
// triple resumes the existing profile with its accumulated state.
func TestHandleLogin_ResumeSameTriple(t *testing.T) {
	router, profiles := newAuthRouter(t)

	_, first := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name:    "Asha",
		Grade:   3,
		Subject: "science",
	})
	firstID := first["profile"].(map[string]any)["student_id"].(string)

	// Accumulate some XP between logins
	_, err := profiles.AwardXP(context.Background(), firstID, 30)
	require.NoError(t, err)

	w, second := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name:    "asha ", // dedupe key normalizes case and whitespace
		Grade:   3,
		Subject: "Science",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, second["resumed"])
	profile := second["profile"].(map[string]any)
	assert.Equal(t, firstID, profile["student_id"], "same triple must resume, not re-register")
	assert.Equal(t, float64(30), profile["xp"], "accumulated XP must survive re-login")
}

// TestHandleLogin_DifferentTripleCreatesNew verifies a changed grade
// registers a separate student.
func TestHandleLogin_DifferentTripleCreatesNew(t *testing.T) {
	router, _ := newAuthRouter(t)

	_, first := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name: "Asha", Grade: 3, Subject: "science",
	})
	_, second := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name: "Asha", Grade: 4, Subject: "science",
	})

	firstID := first["profile"].(map[string]any)["student_id"]
	secondID := second["profile"].(map[string]any)["student_id"]
	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, true, second["is_new"])
}

// TestHandleLogin_InvalidGrade verifies grades outside 1-5 are rejected.
func TestHandleLogin_InvalidGrade(t *testing.T) {
	router, _ := newAuthRouter(t)

	w, _ := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name: "Asha", Grade: 9, Subject: "science",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestHandleLogin_InvalidBody verifies malformed JSON is rejected.
func TestHandleLogin_InvalidBody(t *testing.T) {
	router, _ := newAuthRouter(t)

	req, _ := http.NewRequest("POST", "/v1/auth/login", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// HandleGetProfile Tests
// =============================================================================

// TestHandleGetProfile_NotFound verifies 404 for unknown ids.
func TestHandleGetProfile_NotFound(t *testing.T) {
	router, _ := newAuthRouter(t)

	w, _ := doJSON(t, router, "GET", "/v1/profile/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHandleGetProfile_Success verifies the stored profile round-trips.
func TestHandleGetProfile_Success(t *testing.T) {
	router, _ := newAuthRouter(t)

	_, login := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name: "Ravi", Grade: 2, Subject: "math",
	})
	studentID := login["profile"].(map[string]any)["student_id"].(string)

	w, profile := doJSON(t, router, "GET", "/v1/profile/"+studentID, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ravi", profile["name"])
	assert.Equal(t, float64(2), profile["grade"])
	assert.Equal(t, "math", profile["subject"])
}

// =============================================================================
// HandleUpdateProfile Tests
// =============================================================================

// TestHandleUpdateProfile_Success verifies the allow-listed fields
// update and everything else stays.
func TestHandleUpdateProfile_Success(t *testing.T) {
	router, _ := newAuthRouter(t)

	_, login := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name: "Ravi", Grade: 2, Subject: "math",
	})
	studentID := login["profile"].(map[string]any)["student_id"].(string)

	w, updated := doJSON(t, router, "PUT", "/v1/profile/"+studentID, datatypes.ProfileUpdate{
		LearningStyle: "visual",
		Motivation:    "intrinsic",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "visual", updated["learning_style"])
	assert.Equal(t, "intrinsic", updated["motivation"])
	assert.Equal(t, "Ravi", updated["name"], "untouched fields must survive")
}

// TestHandleUpdateProfile_InvalidStyle verifies unknown learning styles
// are rejected.
func TestHandleUpdateProfile_InvalidStyle(t *testing.T) {
	router, _ := newAuthRouter(t)

	_, login := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name: "Ravi", Grade: 2, Subject: "math",
	})
	studentID := login["profile"].(map[string]any)["student_id"].(string)

	w, _ := doJSON(t, router, "PUT", "/v1/profile/"+studentID, map[string]string{
		"learning_style": "telepathic",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestHandleUpdateProfile_NotFound verifies 404 for unknown students.
func TestHandleUpdateProfile_NotFound(t *testing.T) {
	router, _ := newAuthRouter(t)

	w, _ := doJSON(t, router, "PUT", "/v1/profile/missing", datatypes.ProfileUpdate{
		Motivation: "mixed",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// HandleStats Tests
// =============================================================================

// TestHandleStats_DerivedFields verifies the dashboard payload carries
// the derived averages and counters.
func TestHandleStats_DerivedFields(t *testing.T) {
	router, profiles := newAuthRouter(t)

	_, login := doJSON(t, router, "POST", "/v1/auth/login", datatypes.LoginRequest{
		Name: "Meena", Grade: 5, Subject: "science",
	})
	studentID := login["profile"].(map[string]any)["student_id"].(string)

	_, err := profiles.SubmitGameResult(context.Background(), datatypes.GameSubmission{
		StudentID: studentID,
		GameType:  "pattern_recognition",
		Score:     80,
		TimeTaken: 40,
	})
	require.NoError(t, err)

	w, stats := doJSON(t, router, "GET", "/v1/profile/"+studentID+"/stats", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(8), stats["xp"], "80 points earn 8 XP")
	assert.Equal(t, float64(1), stats["games_played"])
	assert.NotNil(t, stats["iq_average"])
	assert.NotNil(t, stats["confidence_band"])
	assert.Equal(t, false, stats["textbook_uploaded"])
}
