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
	"github.com/vidyasetu/vidyasetu/services/tutor/observability"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// HandleGameSubmit records one finished assessment game.
//
// # Description
//
// Merges the game score into the student's trait profile (a trait keeps
// its best score), awards XP, and returns the updated derived fields.
// Concurrent submissions for the same student are serialized by the
// store; both always land.
func HandleGameSubmit(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := observability.EndpointGames

		var sub datatypes.GameSubmission
		if err := c.ShouldBindJSON(&sub); err != nil {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := sub.Validate(); err != nil {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		reward, err := profiles.SubmitGameResult(c.Request.Context(), sub)
		if err != nil {
			if errors.Is(err, store.ErrStudentNotFound) {
				if m := observability.DefaultMetrics; m != nil {
					m.RecordError(endpoint, observability.ErrorCodeNotFound)
				}
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			slog.Error("Game submission failed",
				"error", err,
				"studentId", sub.StudentID,
				"gameType", sub.GameType,
			)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game submission"})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(endpoint, true)
		}
		slog.Info("Game result recorded",
			"studentId", sub.StudentID,
			"gameType", sub.GameType,
			"score", sub.Score,
			"xpEarned", reward.XPEarned,
		)
		c.JSON(http.StatusOK, reward)
	}
}
