// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// HandleLogin creates or resumes a student profile.
//
// # Description
//
// Login is idempotent on the (name, grade, subject) triple: a returning
// student gets their existing profile back with all accumulated XP and
// scores, a new triple creates a fresh profile. No passwords; the
// client is a classroom tablet app.
func HandleLogin(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Error("Login validation failed", "error", err, "name", req.Name)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		result, err := profiles.CreateOrResume(c.Request.Context(), req)
		if err != nil {
			slog.Error("Login failed", "error", err, "name", req.Name)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}

		slog.Info("Student logged in",
			"studentId", result.Profile.StudentID,
			"grade", result.Profile.Grade,
			"resumed", result.Resumed,
		)
		c.JSON(http.StatusOK, gin.H{
			"profile":  result.Profile,
			"message":  result.Message,
			"resumed":  result.Resumed,
			"is_new":   !result.Resumed,
		})
	}
}

// HandleGetProfile returns a student's current profile.
func HandleGetProfile(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := profiles.Get(c.Param("studentId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// HandleUpdateProfile applies the allow-listed mutable profile fields.
//
// Setting learning_style here locks it against recomputation from game
// results.
func HandleUpdateProfile(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd datatypes.ProfileUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := upd.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		profile, err := profiles.Update(c.Request.Context(), c.Param("studentId"), upd)
		if err != nil {
			if errors.Is(err, store.ErrStudentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			slog.Error("Profile update failed", "error", err, "studentId", c.Param("studentId"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// HandleStats returns the derived learning statistics for the profile
// dashboard.
func HandleStats(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := profiles.Get(c.Param("studentId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"student_id":            profile.StudentID,
			"name":                  profile.Name,
			"grade":                 profile.Grade,
			"subject":               profile.Subject,
			"xp":                    profile.XP,
			"level":                 profile.Level,
			"iq_average":            profile.IQAverage(),
			"eq_average":            profile.EQAverage(),
			"iq_scores":             profile.IQScores,
			"eq_scores":             profile.EQScores,
			"confidence_band":       profile.ConfidenceBand,
			"learning_style":        profile.LearningStyle,
			"games_played":          len(profile.GameHistory),
			"total_questions_asked": profile.TotalQuestionsAsked,
			"textbook_uploaded":     profile.TextbookUploaded,
		})
	}
}
