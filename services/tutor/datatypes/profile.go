// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the tutor service.
//
// This file contains the student profile and the requests that mutate it.
// For chat stream types see chat.go, for pipeline events see events.go.
package datatypes

import (
	"strconv"
	"strings"
	"time"
)

// Confidence bands derived from IQ/EQ averages.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Learning styles assigned from game performance.
const (
	StyleVisual      = "visual"
	StyleAuditory    = "auditory"
	StyleKinesthetic = "kinesthetic"
	StyleSocial      = "social"
)

// IQTraits and EQTraits are the closed sets of score categories a game
// result may target. Anything else is rejected at submission time.
var (
	IQTraits = []string{"math", "logical_reasoning", "pattern_recognition"}
	EQTraits = []string{"empathy", "self_awareness", "social_skills"}
)

// GameRecord is one completed assessment game, kept for the stats view.
type GameRecord struct {
	GameType  string    `json:"game_type"`
	Score     float64   `json:"score"`
	TimeTaken int       `json:"time_taken"`
	Timestamp time.Time `json:"timestamp"`
}

// StudentProfile is the cumulative learner state owned by the profile
// store. Created on first login, mutated only through the store's
// serialized per-student write path, never deleted within a session.
//
// # Fields
//
//   - StudentID: opaque UUID assigned at registration.
//   - Grade: 1-5 (primary school).
//   - IQScores/EQScores: per-trait accumulators, 0-100; a trait keeps its
//     best observed score (max-wins merge).
//   - XP: cumulative experience points (commutative sum).
//   - Level: derived, XP/50 + 1.
//   - LearningStyle: derived label used by the pipeline's prompts.
//   - ConfidenceBand: derived from IQ/EQ averages, drives encouragement
//     tone.
type StudentProfile struct {
	StudentID           string             `json:"student_id"`
	Name                string             `json:"name"`
	Grade               int                `json:"grade"`
	Subject             string             `json:"subject"`
	LearningStyle       string             `json:"learning_style"`
	StyleLocked         bool               `json:"style_locked,omitempty"`
	Motivation          string             `json:"motivation"`
	ConfidenceBand      string             `json:"confidence_band"`
	XP                  int                `json:"xp"`
	Level               int                `json:"level"`
	IQScores            map[string]float64 `json:"iq_scores"`
	EQScores            map[string]float64 `json:"eq_scores"`
	TextbookUploaded    bool               `json:"textbook_uploaded"`
	TotalQuestionsAsked int                `json:"total_questions_asked"`
	GameHistory         []GameRecord       `json:"game_history,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	LastLogin           time.Time          `json:"last_login"`
}

// LookupKey identifies a student across logins by name+grade+subject.
func (p *StudentProfile) LookupKey() string {
	return LookupKey(p.Name, p.Grade, p.Subject)
}

// LookupKey builds the registration dedupe key for a login triple.
func LookupKey(name string, grade int, subject string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "_" +
		strconv.Itoa(grade) + "_" + strings.ToLower(strings.TrimSpace(subject))
}

// Clone returns a deep copy safe to hand to readers while the original
// keeps being mutated under the store's lock.
func (p *StudentProfile) Clone() *StudentProfile {
	cp := *p
	cp.IQScores = make(map[string]float64, len(p.IQScores))
	for k, v := range p.IQScores {
		cp.IQScores[k] = v
	}
	cp.EQScores = make(map[string]float64, len(p.EQScores))
	for k, v := range p.EQScores {
		cp.EQScores[k] = v
	}
	cp.GameHistory = append([]GameRecord(nil), p.GameHistory...)
	return &cp
}

// IQAverage returns the mean of all recorded IQ trait scores, 0 if none.
func (p *StudentProfile) IQAverage() float64 {
	return average(p.IQScores)
}

// EQAverage returns the mean of all recorded EQ trait scores, 0 if none.
func (p *StudentProfile) EQAverage() float64 {
	return average(p.EQScores)
}

func average(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// LoginRequest creates or resumes a student profile.
type LoginRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=100"`
	Grade         int    `json:"grade" validate:"required,gte=1,lte=5"`
	Subject       string `json:"subject" validate:"required,min=1,max=50"`
	LearningStyle string `json:"learning_style" validate:"omitempty,oneof=visual auditory kinesthetic social"`
	Motivation    string `json:"motivation" validate:"omitempty,oneof=intrinsic extrinsic mixed"`
}

// Validate checks the login payload against its constraints.
func (r *LoginRequest) Validate() error {
	return tutorValidate.Struct(r)
}

// GameSubmission reports one finished assessment game.
type GameSubmission struct {
	StudentID string  `json:"student_id" validate:"required,uuid4"`
	GameType  string  `json:"game_type" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0,lte=100"`
	TimeTaken int     `json:"time_taken" validate:"gte=0"`
}

// Validate checks the game submission against its constraints.
func (r *GameSubmission) Validate() error {
	return tutorValidate.Struct(r)
}

// ProfileUpdate carries the allow-listed mutable fields of a profile.
type ProfileUpdate struct {
	LearningStyle  string `json:"learning_style" validate:"omitempty,oneof=visual auditory kinesthetic social"`
	Motivation     string `json:"motivation" validate:"omitempty,oneof=intrinsic extrinsic mixed"`
	ConfidenceBand string `json:"confidence_band" validate:"omitempty,oneof=low medium high"`
	Subject        string `json:"subject" validate:"omitempty,min=1,max=50"`
}

// Validate checks the update payload against its constraints.
func (r *ProfileUpdate) Validate() error {
	return tutorValidate.Struct(r)
}
