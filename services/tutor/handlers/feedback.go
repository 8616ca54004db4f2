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
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// feedbackXPReward is the small thank-you for telling us how we did.
const feedbackXPReward = 1

// HandleSubmitFeedback stores a rating and awards a token XP reward.
func HandleSubmitFeedback(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		ctx := c.Request.Context()
		entry := datatypes.FeedbackEntry{
			FeedbackID:   uuid.NewString(),
			StudentID:    req.StudentID,
			QueryID:      req.QueryID,
			Rating:       req.Rating,
			FeedbackType: req.FeedbackType,
			Comment:      req.Comment,
			Timestamp:    time.Now().UTC(),
		}
		if err := profiles.SaveFeedback(ctx, entry); err != nil {
			slog.Error("Failed to save feedback", "error", err, "studentId", req.StudentID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save feedback"})
			return
		}

		profile, err := profiles.AwardXP(ctx, req.StudentID, feedbackXPReward)
		if err != nil {
			if errors.Is(err, store.ErrStudentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			slog.Error("Failed to award feedback XP", "error", err, "studentId", req.StudentID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save feedback"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"feedback_id": entry.FeedbackID,
			"xp_earned":   feedbackXPReward,
			"total_xp":    profile.XP,
			"message":     "Thanks for the feedback! ⭐",
		})
	}
}

// HandleListFeedback returns a student's feedback records.
func HandleListFeedback(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID := c.Param("studentId")
		if _, err := profiles.Get(studentID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}

		entries, err := profiles.ListFeedback(c.Request.Context(), studentID)
		if err != nil {
			slog.Error("Failed to list feedback", "error", err, "studentId", studentID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load feedback"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"student_id": studentID,
			"feedback":   entries,
			"count":      len(entries),
		})
	}
}

// dailySatisfaction is one day's average rating scaled to 0-100.
type dailySatisfaction struct {
	Date    string  `json:"date"`
	Score   float64 `json:"score"`
	Ratings int     `json:"ratings"`
}

// HandleSatisfaction returns daily satisfaction averages.
//
// # Description
//
// Averages satisfaction-type ratings per calendar day over the
// requested window (default 7 days, max 90) and scales the 0-5 rating
// to a 0-100 score for the dashboard gauge. Days without ratings are
// omitted.
func HandleSatisfaction(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID := c.Param("studentId")
		if _, err := profiles.Get(studentID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}

		days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
		if err != nil || days < 1 || days > 90 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 90"})
			return
		}

		entries, err := profiles.ListFeedback(c.Request.Context(), studentID)
		if err != nil {
			slog.Error("Failed to list feedback", "error", err, "studentId", studentID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load feedback"})
			return
		}

		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for _, e := range entries {
			if e.FeedbackType != "satisfaction" || e.Timestamp.Before(cutoff) {
				continue
			}
			day := e.Timestamp.Format("2006-01-02")
			sums[day] += float64(e.Rating)
			counts[day]++
		}

		daily := make([]dailySatisfaction, 0, len(sums))
		for day, sum := range sums {
			daily = append(daily, dailySatisfaction{
				Date:    day,
				Score:   sum / float64(counts[day]) * 20, // 0-5 rating onto 0-100
				Ratings: counts[day],
			})
		}
		sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

		c.JSON(http.StatusOK, gin.H{
			"student_id": studentID,
			"days":       days,
			"daily":      daily,
		})
	}
}

// HandleAnalytics returns an aggregate feedback and activity summary.
func HandleAnalytics(profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID := c.Param("studentId")
		profile, err := profiles.Get(studentID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}

		entries, err := profiles.ListFeedback(c.Request.Context(), studentID)
		if err != nil {
			slog.Error("Failed to list feedback", "error", err, "studentId", studentID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analytics"})
			return
		}

		var ratingSum float64
		byType := make(map[string]int)
		for _, e := range entries {
			ratingSum += float64(e.Rating)
			byType[e.FeedbackType]++
		}
		avgRating := 0.0
		if len(entries) > 0 {
			avgRating = ratingSum / float64(len(entries))
		}

		c.JSON(http.StatusOK, gin.H{
			"student_id":            studentID,
			"total_feedback":        len(entries),
			"average_rating":        avgRating,
			"feedback_by_type":      byType,
			"total_questions_asked": profile.TotalQuestionsAsked,
			"games_played":          len(profile.GameHistory),
			"xp":                    profile.XP,
			"level":                 profile.Level,
		})
	}
}
