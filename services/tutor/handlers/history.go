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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// defaultHistoryLimit caps a history page when the client doesn't ask
// for a specific size.
const defaultHistoryLimit = 50

// HandleChatHistory returns a student's recent chat turns, oldest first.
func HandleChatHistory(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
		if err != nil || limit < 1 || limit > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}

		entries, err := profiles.History(c.Request.Context(), c.Param("studentId"), limit)
		if err != nil {
			if errors.Is(err, store.ErrStudentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			slog.Error("Failed to load chat history", "error", err, "studentId", c.Param("studentId"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"student_id": c.Param("studentId"),
			"history":    entries,
			"count":      len(entries),
		})
	}
}

// HandleClearHistory deletes a student's chat history. The profile and
// its question counter are untouched.
func HandleClearHistory(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID := c.Param("studentId")
		if err := profiles.ClearHistory(c.Request.Context(), studentID); err != nil {
			if errors.Is(err, store.ErrStudentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			slog.Error("Failed to clear chat history", "error", err, "studentId", studentID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear history"})
			return
		}

		slog.Info("Cleared chat history", "studentId", studentID)
		c.JSON(http.StatusOK, gin.H{"status": "success", "student_id": studentID})
	}
}
