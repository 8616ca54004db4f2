// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// =============================================================================
// CONTENT GENERATION MODULE
// =============================================================================
//
// Slide outlines and YouTube video search. The outline endpoint returns
// key points for the client's slide renderer; no deck is built in here.
// Video search adapts the query wording to the student's IQ/EQ averages
// and always runs with safeSearch=strict.
//
// =============================================================================

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyasetu/vidyasetu/services/llm"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

const (
	// youtubeSearchURL is the YouTube Data API v3 search endpoint.
	youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

	// maxKeyPoints caps the outline length regardless of model chattiness.
	maxKeyPoints = 6

	videoSearchTimeout = 10 * time.Second
)

// SlideOutlineRequest asks for a key-point outline of one concept.
type SlideOutlineRequest struct {
	Concept string `json:"concept" validate:"required,min=1,max=200"`
	Grade   int    `json:"grade" validate:"required,gte=1,lte=5"`
	Subject string `json:"subject" validate:"omitempty,max=50"`
}

// HandleSlideOutline generates 5-6 teaching key points for a concept.
//
// The client renders the actual slides; this endpoint only supplies the
// content so the renderer stays independent of the LLM.
func HandleSlideOutline(llmClient llm.LLMClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SlideOutlineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Concept == "" || req.Grade < 1 || req.Grade > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "concept and grade 1-5 are required"})
			return
		}
		if req.Subject == "" {
			req.Subject = "Science"
		}

		prompt := fmt.Sprintf(
			"Generate 5 short, simple teaching key points for:\n"+
				"Subject: %s\nConcept: %s\nGrade: %d\n\n"+
				"Keep sentences short. No numbering. One point per line.",
			req.Subject, req.Concept, req.Grade)

		raw, err := llmClient.Generate(c.Request.Context(),
			"You write classroom slide content for primary school teachers in India.",
			prompt, llm.GenerationParams{})
		if err != nil {
			slog.Error("Slide outline generation failed", "error", err, "concept", req.Concept)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outline generation unavailable"})
			return
		}

		points := parseKeyPoints(raw)
		if len(points) == 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outline generation produced no points"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"concept":    req.Concept,
			"grade":      req.Grade,
			"subject":    req.Subject,
			"key_points": points,
		})
	}
}

// parseKeyPoints splits model output into clean outline lines.
func parseKeyPoints(raw string) []string {
	points := make([]string, 0, maxKeyPoints)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*0123456789. "))
		if line == "" {
			continue
		}
		points = append(points, line)
		if len(points) == maxKeyPoints {
			break
		}
	}
	return points
}

// buildVideoQuery words the search around the student's trait averages.
// Weak IQ scores ask for step-by-step material, strong ones for depth;
// EQ shifts the tone between storytelling and interactive content.
func buildVideoQuery(concept string, grade int, subject string, iqScore, eqScore float64) string {
	base := fmt.Sprintf("CBSE Grade %d %s %s", grade, subject, concept)

	var style string
	switch {
	case iqScore < 40:
		style = "simple explanation for kids step by step"
	case iqScore > 75:
		style = "advanced detailed explanation with experiments"
	default:
		style = "clear explanation with examples"
	}

	var tone string
	switch {
	case eqScore < 40:
		tone = "real life examples storytelling"
	case eqScore > 75:
		tone = "interactive discussion animation"
	default:
		tone = "engaging animated explanation"
	}

	return base + " " + style + " " + tone
}

// youtubeSearchResponse is the slice of the API response we consume.
type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Thumbnails  struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// HandleVideoSearch finds one kid-safe educational video for a concept.
//
// # Description
//
// Query parameters: concept (required), grade, subject, and the
// student's iq_score/eq_score averages, which shape the query wording.
// A missing YOUTUBE_API_KEY or any upstream failure degrades to a
// success=false payload rather than an HTTP error; the client simply
// hides its video card.
func HandleVideoSearch(profiles *store.ProfileStore) gin.HandlerFunc {
	httpClient := &http.Client{Timeout: videoSearchTimeout}

	return func(c *gin.Context) {
		concept := c.Query("concept")
		if concept == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "concept is required"})
			return
		}
		grade, _ := strconv.Atoi(c.DefaultQuery("grade", "3"))
		subject := c.DefaultQuery("subject", "Science")

		iqScore, _ := strconv.ParseFloat(c.DefaultQuery("iq_score", "50"), 64)
		eqScore, _ := strconv.ParseFloat(c.DefaultQuery("eq_score", "50"), 64)

		// A student_id param overrides the raw scores with stored averages.
		if studentID := c.Query("student_id"); studentID != "" {
			if profile, err := profiles.Get(studentID); err == nil {
				grade = profile.Grade
				iqScore = profile.IQAverage()
				eqScore = profile.EQAverage()
			}
		}

		apiKey := os.Getenv("YOUTUBE_API_KEY")
		if apiKey == "" {
			c.JSON(http.StatusOK, gin.H{
				"success":  false,
				"video_id": nil,
				"title":    "Video search unavailable",
				"message":  "YouTube API key not configured",
			})
			return
		}

		result, err := searchYouTube(c.Request.Context(), httpClient, apiKey,
			buildVideoQuery(concept, grade, subject, iqScore, eqScore))
		if err != nil {
			slog.Error("Video search failed", "error", err, "concept", concept)
			c.JSON(http.StatusOK, gin.H{
				"success":  false,
				"video_id": nil,
				"title":    "Video search temporarily unavailable",
				"message":  "Try again in a moment",
			})
			return
		}
		if result == nil {
			c.JSON(http.StatusOK, gin.H{
				"success":  false,
				"video_id": nil,
				"title":    fmt.Sprintf("No videos found for %q", concept),
				"message":  "Try a different search term",
			})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// searchYouTube queries the Data API and shapes the first hit for the
// client. A nil result with nil error means no videos matched.
func searchYouTube(ctx context.Context, client *http.Client, apiKey, query string) (gin.H, error) {
	params := url.Values{}
	params.Set("key", apiKey)
	params.Set("q", query)
	params.Set("part", "snippet")
	params.Set("maxResults", "3")
	params.Set("type", "video")
	params.Set("videoDuration", "short")
	params.Set("safeSearch", "strict")
	params.Set("relevanceLanguage", "en")
	params.Set("order", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling YouTube API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("YouTube API returned status %d", resp.StatusCode)
	}

	var parsed youtubeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if len(parsed.Items) == 0 {
		return nil, nil
	}

	video := parsed.Items[0]
	description := video.Snippet.Description
	if len(description) > 200 {
		description = description[:200] + "..."
	}

	return gin.H{
		"success":     true,
		"video_id":    video.ID.VideoID,
		"embed_url":   fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=0&modestbranding=1", video.ID.VideoID),
		"watch_url":   fmt.Sprintf("https://www.youtube.com/watch?v=%s", video.ID.VideoID),
		"title":       video.Snippet.Title,
		"thumbnail":   video.Snippet.Thumbnails.Medium.URL,
		"description": description,
	}, nil
}
