// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxQueryBytes is the maximum size of a single chat query. Checked as
// byte length, not rune count, to bound memory on hostile payloads.
const MaxQueryBytes = 8 * 1024

// tutorValidate is the shared validator instance for tutor datatypes.
var tutorValidate *validator.Validate

func init() {
	tutorValidate = validator.New()
	_ = tutorValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxQueryBytes on string fields tagged maxbytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQueryBytes
}

// ChatStreamRequest opens one streaming channel for one query.
//
// # Fields
//
//   - Query: the student's question. Required, non-empty, max 8KB.
//   - StudentID: identifies the profile used to personalize the answer.
//     Required; an unknown id rejects the request before the channel
//     opens.
//
// Arrives as query parameters (EventSource cannot set a body) or as a
// JSON body on the POST variant.
type ChatStreamRequest struct {
	Query     string `form:"query" json:"query" validate:"required,min=1,maxbytes"`
	StudentID string `form:"student_id" json:"student_id" validate:"required,uuid4"`
}

// Validate checks the stream request against its constraints.
func (r *ChatStreamRequest) Validate() error {
	return tutorValidate.Struct(r)
}

// TranscriptEntry is one persisted chat turn. Append-only; the store
// never rewrites an entry once saved.
type TranscriptEntry struct {
	QueryID        string        `json:"query_id"`
	StudentID      string        `json:"student_id"`
	Query          string        `json:"query"`
	Response       string        `json:"response"`
	AgentSteps     []StageUpdate `json:"agent_steps,omitempty"`
	SafetyVerified bool          `json:"safety_verified"`
	Grounded       bool          `json:"grounded"`
	Timestamp      time.Time     `json:"timestamp"`
}

// FeedbackRequest logs a rating for a previous response.
type FeedbackRequest struct {
	StudentID    string `json:"student_id" validate:"required,uuid4"`
	QueryID      string `json:"query_id" validate:"omitempty,max=100"`
	Rating       int    `json:"rating" validate:"gte=0,lte=5"`
	FeedbackType string `json:"feedback_type" validate:"required,oneof=satisfaction response_quality bug_report"`
	Comment      string `json:"comment" validate:"omitempty,max=2000"`
}

// Validate checks the feedback payload against its constraints.
func (r *FeedbackRequest) Validate() error {
	return tutorValidate.Struct(r)
}

// FeedbackEntry is a stored feedback record.
type FeedbackEntry struct {
	FeedbackID   string    `json:"feedback_id"`
	StudentID    string    `json:"student_id"`
	QueryID      string    `json:"query_id,omitempty"`
	Rating       int       `json:"rating"`
	FeedbackType string    `json:"feedback_type"`
	Comment      string    `json:"comment,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
