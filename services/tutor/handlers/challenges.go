// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidyasetu/vidyasetu/services/tutor/challenge"
	"github.com/vidyasetu/vidyasetu/services/tutor/observability"
)

// HandleGetChallenge serves one freshly generated learning challenge.
//
// # Description
//
// Query parameters:
//   - subject: math, science, english (default math)
//   - grade: 1-5 (default 3)
//   - type: "iq", "eq", or a specific trait name (default iq)
//
// Generation never fails from the client's point of view; a broken or
// unavailable LLM backend silently serves from the curated bank. Each
// call produces a new challenge, so repeating a request repeats nothing.
func HandleGetChallenge(generator *challenge.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := observability.EndpointChallenges

		subject := c.DefaultQuery("subject", "math")
		category := c.DefaultQuery("type", "iq")

		grade, err := strconv.Atoi(c.DefaultQuery("grade", "3"))
		if err != nil || grade < 1 || grade > 5 {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "grade must be between 1 and 5"})
			return
		}

		ch := generator.Generate(c.Request.Context(), subject, grade, category)

		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(endpoint, true)
		}
		c.JSON(http.StatusOK, gin.H{
			"challenge": ch,
			"subject":   subject,
			"grade":     grade,
			"type":      category,
		})
	}
}
