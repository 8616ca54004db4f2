// =============================================================================
// Copyright (C) 2026 VidyaSetu AI
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
// =============================================================================

// Package store owns all student state. Reads are served from an
// in-memory map; every write goes through a per-student mutex and is
// written through to the durable backend, so two concurrent writes for
// the same student are serialized while writes for different students
// proceed in parallel.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

var storeTracer = otel.Tracer("vidyasetu.tutor.store")

// xpPerLevel is the XP needed to advance one level.
const xpPerLevel = 50

// ProfileStore is the concurrency boundary for student state.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. Mutations of one
// student never run concurrently with each other; mutations of
// different students never block each other.
type ProfileStore struct {
	persister Persister

	mu       sync.RWMutex
	profiles map[string]*datatypes.StudentProfile
	byLookup map[string]string

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewProfileStore creates a store backed by the given persister and
// warms the in-memory map from it.
func NewProfileStore(ctx context.Context, persister Persister) (*ProfileStore, error) {
	if persister == nil {
		panic("store: NewProfileStore requires a non-nil persister")
	}
	profiles, err := persister.LoadStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading students: %w", err)
	}
	s := &ProfileStore{
		persister: persister,
		profiles:  profiles,
		byLookup:  make(map[string]string, len(profiles)),
		locks:     make(map[string]*sync.Mutex),
	}
	for id, p := range profiles {
		s.byLookup[p.LookupKey()] = id
	}
	slog.Info("Profile store initialized", "students", len(profiles))
	return s, nil
}

// studentLock returns the mutex serializing writes for one student,
// creating it on first use. Lock entries are never removed; the set of
// students in one deployment is small.
func (s *ProfileStore) studentLock(studentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[studentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[studentID] = l
	}
	return l
}

// LoginResult reports the outcome of CreateOrResume.
type LoginResult struct {
	Profile *datatypes.StudentProfile
	Resumed bool
	Message string
}

// CreateOrResume registers a student or resumes an existing profile.
//
// # Description
//
// Students are deduplicated by the normalized name+grade+subject
// triple. A returning student gets their existing profile with the
// last-login timestamp refreshed; a new student gets a fresh profile
// with zeroed trait scores. The dedupe check and the insert happen
// under one lock, so two concurrent first logins for the same triple
// produce exactly one profile.
func (s *ProfileStore) CreateOrResume(ctx context.Context, req datatypes.LoginRequest) (*LoginResult, error) {
	ctx, span := storeTracer.Start(ctx, "store.CreateOrResume")
	defer span.End()

	key := datatypes.LookupKey(req.Name, req.Grade, req.Subject)

	s.mu.Lock()
	if id, ok := s.byLookup[key]; ok {
		profile := s.profiles[id]
		profile.LastLogin = time.Now().UTC()
		snapshot := profile.Clone()
		s.mu.Unlock()

		if err := s.persister.SaveStudent(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("persisting login: %w", err)
		}
		return &LoginResult{
			Profile: snapshot,
			Resumed: true,
			Message: fmt.Sprintf("Welcome back, %s! 🎉", req.Name),
		}, nil
	}

	now := time.Now().UTC()
	profile := &datatypes.StudentProfile{
		StudentID:      uuid.NewString(),
		Name:           req.Name,
		Grade:          req.Grade,
		Subject:        req.Subject,
		LearningStyle:  req.LearningStyle,
		Motivation:     req.Motivation,
		ConfidenceBand: datatypes.ConfidenceMedium,
		Level:          1,
		IQScores:       zeroScores(datatypes.IQTraits),
		EQScores:       zeroScores(datatypes.EQTraits),
		CreatedAt:      now,
		LastLogin:      now,
	}
	if profile.LearningStyle == "" {
		profile.LearningStyle = datatypes.StyleVisual
	} else {
		// An explicitly chosen style is not overwritten by game-derived
		// style detection.
		profile.StyleLocked = true
	}
	if profile.Motivation == "" {
		profile.Motivation = "extrinsic"
	}
	s.profiles[profile.StudentID] = profile
	s.byLookup[key] = profile.StudentID
	snapshot := profile.Clone()
	s.mu.Unlock()

	if err := s.persister.SaveStudent(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("persisting registration: %w", err)
	}
	slog.Info("Registered new student",
		"student_id", snapshot.StudentID,
		"grade", snapshot.Grade,
		"subject", snapshot.Subject)
	return &LoginResult{
		Profile: snapshot,
		Message: fmt.Sprintf("Welcome to VidyaSetu AI, %s! Let's start learning! 🚀", req.Name),
	}, nil
}

func zeroScores(traits []string) map[string]float64 {
	m := make(map[string]float64, len(traits))
	for _, t := range traits {
		m[t] = 0
	}
	return m
}

// Get returns a snapshot of one profile.
func (s *ProfileStore) Get(studentID string) (*datatypes.StudentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[studentID]
	if !ok {
		return nil, ErrStudentNotFound
	}
	return profile.Clone(), nil
}

// mutate applies fn to a private clone of the profile under the
// student's write lock, then swaps the clone into the map. Concurrent
// readers see either the old state or the new one, never a profile
// mid-mutation.
func (s *ProfileStore) mutate(ctx context.Context, studentID string, fn func(*datatypes.StudentProfile) error) (*datatypes.StudentProfile, error) {
	lock := s.studentLock(studentID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	profile, ok := s.profiles[studentID]
	var working *datatypes.StudentProfile
	if ok {
		working = profile.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStudentNotFound
	}

	if err := fn(working); err != nil {
		return nil, err
	}
	snapshot := working.Clone()

	s.mu.Lock()
	s.profiles[studentID] = working
	s.mu.Unlock()

	if err := s.persister.SaveStudent(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("persisting profile: %w", err)
	}
	return snapshot, nil
}

// Update applies the allow-listed profile fields.
func (s *ProfileStore) Update(ctx context.Context, studentID string, upd datatypes.ProfileUpdate) (*datatypes.StudentProfile, error) {
	return s.mutate(ctx, studentID, func(p *datatypes.StudentProfile) error {
		if upd.LearningStyle != "" {
			p.LearningStyle = upd.LearningStyle
			p.StyleLocked = true
		}
		if upd.Motivation != "" {
			p.Motivation = upd.Motivation
		}
		if upd.ConfidenceBand != "" {
			p.ConfidenceBand = upd.ConfidenceBand
		}
		if upd.Subject != "" {
			s.rekey(p, upd.Subject)
		}
		return nil
	})
}

// rekey moves the lookup entry when the subject changes. Caller holds
// the student's write lock.
func (s *ProfileStore) rekey(p *datatypes.StudentProfile, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byLookup, p.LookupKey())
	p.Subject = subject
	s.byLookup[p.LookupKey()] = p.StudentID
}

// SetTextbookUploaded flips the textbook flag after a successful ingest.
func (s *ProfileStore) SetTextbookUploaded(ctx context.Context, studentID string, uploaded bool) error {
	_, err := s.mutate(ctx, studentID, func(p *datatypes.StudentProfile) error {
		p.TextbookUploaded = uploaded
		return nil
	})
	return err
}

// RecordQuestion bumps the question counter after a completed chat turn.
func (s *ProfileStore) RecordQuestion(ctx context.Context, studentID string) error {
	_, err := s.mutate(ctx, studentID, func(p *datatypes.StudentProfile) error {
		p.TotalQuestionsAsked++
		return nil
	})
	return err
}

// GameReward summarizes one game submission's effect on the profile.
type GameReward struct {
	XPEarned       int                       `json:"xp_earned"`
	TotalXP        int                       `json:"total_xp"`
	Level          int                       `json:"level"`
	ConfidenceBand string                    `json:"confidence_band"`
	IQAvg          float64                   `json:"iq_avg"`
	EQAvg          float64                   `json:"eq_avg"`
	Profile        *datatypes.StudentProfile `json:"profile"`
}

// SubmitGameResult merges one finished assessment game into the profile.
//
// # Description
//
// Trait scores merge max-wins: a trait keeps its best observed score,
// so replaying a game can never lower it. XP is a plain sum. Both
// operations are commutative, which makes the outcome of two
// concurrent submissions independent of their arrival order. Derived
// fields (level, confidence band, learning style) are recomputed from
// the merged state.
func (s *ProfileStore) SubmitGameResult(ctx context.Context, sub datatypes.GameSubmission) (*GameReward, error) {
	ctx, span := storeTracer.Start(ctx, "store.SubmitGameResult")
	defer span.End()

	var reward GameReward
	snapshot, err := s.mutate(ctx, sub.StudentID, func(p *datatypes.StudentProfile) error {
		var scores map[string]float64
		switch {
		case contains(datatypes.IQTraits, sub.GameType):
			scores = p.IQScores
		case contains(datatypes.EQTraits, sub.GameType):
			scores = p.EQScores
		default:
			return fmt.Errorf("unknown game type: %s", sub.GameType)
		}

		if sub.Score > scores[sub.GameType] {
			scores[sub.GameType] = sub.Score
		}

		reward.XPEarned = int(sub.Score / 10)
		p.XP += reward.XPEarned
		p.Level = p.XP/xpPerLevel + 1

		iqAvg, eqAvg := p.IQAverage(), p.EQAverage()
		switch {
		case iqAvg < 50 || eqAvg < 50:
			p.ConfidenceBand = datatypes.ConfidenceLow
		case iqAvg > 75 && eqAvg > 75:
			p.ConfidenceBand = datatypes.ConfidenceHigh
		default:
			p.ConfidenceBand = datatypes.ConfidenceMedium
		}

		if !p.StyleLocked {
			switch {
			case iqAvg > eqAvg+20:
				p.LearningStyle = datatypes.StyleVisual
			case eqAvg > iqAvg+20:
				p.LearningStyle = datatypes.StyleSocial
			default:
				p.LearningStyle = datatypes.StyleKinesthetic
			}
		}

		p.GameHistory = append(p.GameHistory, datatypes.GameRecord{
			GameType:  sub.GameType,
			Score:     sub.Score,
			TimeTaken: sub.TimeTaken,
			Timestamp: time.Now().UTC(),
		})

		reward.TotalXP = p.XP
		reward.Level = p.Level
		reward.ConfidenceBand = p.ConfidenceBand
		reward.IQAvg = round1(iqAvg)
		reward.EQAvg = round1(eqAvg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	reward.Profile = snapshot
	return &reward, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// AwardXP adds bonus experience points outside the game path, like the
// small reward for submitting feedback. Level is recomputed.
func (s *ProfileStore) AwardXP(ctx context.Context, studentID string, amount int) (*datatypes.StudentProfile, error) {
	if amount < 0 {
		return nil, fmt.Errorf("xp award must be non-negative, got %d", amount)
	}
	return s.mutate(ctx, studentID, func(p *datatypes.StudentProfile) error {
		p.XP += amount
		p.Level = p.XP/xpPerLevel + 1
		return nil
	})
}

// AppendTranscript persists one completed chat turn and bumps the
// question counter.
func (s *ProfileStore) AppendTranscript(ctx context.Context, entry datatypes.TranscriptEntry) error {
	if err := s.persister.AppendChat(ctx, entry); err != nil {
		return fmt.Errorf("persisting transcript: %w", err)
	}
	return s.RecordQuestion(ctx, entry.StudentID)
}

// History returns the most recent chat turns, oldest first.
func (s *ProfileStore) History(ctx context.Context, studentID string, limit int) ([]datatypes.TranscriptEntry, error) {
	if _, err := s.Get(studentID); err != nil {
		return nil, err
	}
	return s.persister.ListChat(ctx, studentID, limit)
}

// ClearHistory deletes a student's chat history. The profile itself is
// untouched.
func (s *ProfileStore) ClearHistory(ctx context.Context, studentID string) error {
	if _, err := s.Get(studentID); err != nil {
		return err
	}
	return s.persister.ClearChat(ctx, studentID)
}

// SaveFeedback stores a rating record.
func (s *ProfileStore) SaveFeedback(ctx context.Context, entry datatypes.FeedbackEntry) error {
	return s.persister.SaveFeedback(ctx, entry)
}

// ListFeedback returns a student's feedback records.
func (s *ProfileStore) ListFeedback(ctx context.Context, studentID string) ([]datatypes.FeedbackEntry, error) {
	return s.persister.ListFeedback(ctx, studentID)
}

// SaveTextbook upserts textbook ingestion metadata.
func (s *ProfileStore) SaveTextbook(ctx context.Context, meta datatypes.TextbookMetadata) error {
	return s.persister.SaveTextbook(ctx, meta)
}

// GetTextbook returns one textbook's ingestion metadata.
func (s *ProfileStore) GetTextbook(ctx context.Context, textbookID string) (*datatypes.TextbookMetadata, error) {
	return s.persister.GetTextbook(ctx, textbookID)
}

// ListTextbooks returns a student's uploaded textbooks.
func (s *ProfileStore) ListTextbooks(ctx context.Context, studentID string) ([]datatypes.TextbookMetadata, error) {
	return s.persister.ListTextbooks(ctx, studentID)
}

// DeleteTextbook removes a textbook's metadata.
func (s *ProfileStore) DeleteTextbook(ctx context.Context, textbookID string) error {
	return s.persister.DeleteTextbook(ctx, textbookID)
}

// Close releases the durable backend.
func (s *ProfileStore) Close() error {
	return s.persister.Close()
}
