// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

var (
	// ErrStudentNotFound is returned for lookups of unknown student ids.
	ErrStudentNotFound = errors.New("student not found")
	// ErrTextbookNotFound is returned for lookups of unknown textbook ids.
	ErrTextbookNotFound = errors.New("textbook not found")
)

// Persister is the durable backend behind the in-memory profile store.
// Implementations must be safe for concurrent use.
type Persister interface {
	SaveStudent(ctx context.Context, profile *datatypes.StudentProfile) error
	LoadStudents(ctx context.Context) (map[string]*datatypes.StudentProfile, error)

	AppendChat(ctx context.Context, entry datatypes.TranscriptEntry) error
	ListChat(ctx context.Context, studentID string, limit int) ([]datatypes.TranscriptEntry, error)
	ClearChat(ctx context.Context, studentID string) error

	SaveTextbook(ctx context.Context, meta datatypes.TextbookMetadata) error
	GetTextbook(ctx context.Context, textbookID string) (*datatypes.TextbookMetadata, error)
	ListTextbooks(ctx context.Context, studentID string) ([]datatypes.TextbookMetadata, error)
	DeleteTextbook(ctx context.Context, textbookID string) error

	SaveFeedback(ctx context.Context, entry datatypes.FeedbackEntry) error
	ListFeedback(ctx context.Context, studentID string) ([]datatypes.FeedbackEntry, error)

	Close() error
}

// MemoryPersister keeps everything in process memory. Used by tests and
// by lightweight deployments that do not mount a database volume.
type MemoryPersister struct {
	mu        sync.Mutex
	students  map[string]*datatypes.StudentProfile
	chats     map[string][]datatypes.TranscriptEntry
	textbooks map[string]datatypes.TextbookMetadata
	feedback  map[string][]datatypes.FeedbackEntry
}

// NewMemoryPersister creates an empty in-memory backend.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		students:  make(map[string]*datatypes.StudentProfile),
		chats:     make(map[string][]datatypes.TranscriptEntry),
		textbooks: make(map[string]datatypes.TextbookMetadata),
		feedback:  make(map[string][]datatypes.FeedbackEntry),
	}
}

func (m *MemoryPersister) SaveStudent(_ context.Context, profile *datatypes.StudentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[profile.StudentID] = profile.Clone()
	return nil
}

func (m *MemoryPersister) LoadStudents(_ context.Context) (map[string]*datatypes.StudentProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*datatypes.StudentProfile, len(m.students))
	for id, p := range m.students {
		out[id] = p.Clone()
	}
	return out, nil
}

func (m *MemoryPersister) AppendChat(_ context.Context, entry datatypes.TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[entry.StudentID] = append(m.chats[entry.StudentID], entry)
	return nil
}

func (m *MemoryPersister) ListChat(_ context.Context, studentID string, limit int) ([]datatypes.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.chats[studentID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]datatypes.TranscriptEntry(nil), entries...), nil
}

func (m *MemoryPersister) ClearChat(_ context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, studentID)
	return nil
}

func (m *MemoryPersister) SaveTextbook(_ context.Context, meta datatypes.TextbookMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textbooks[meta.TextbookID] = meta
	return nil
}

func (m *MemoryPersister) GetTextbook(_ context.Context, textbookID string) (*datatypes.TextbookMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.textbooks[textbookID]
	if !ok {
		return nil, ErrTextbookNotFound
	}
	return &meta, nil
}

func (m *MemoryPersister) ListTextbooks(_ context.Context, studentID string) ([]datatypes.TextbookMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []datatypes.TextbookMetadata
	for _, meta := range m.textbooks {
		if meta.StudentID == studentID {
			out = append(out, meta)
		}
	}
	return out, nil
}

func (m *MemoryPersister) DeleteTextbook(_ context.Context, textbookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.textbooks, textbookID)
	return nil
}

func (m *MemoryPersister) SaveFeedback(_ context.Context, entry datatypes.FeedbackEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[entry.StudentID] = append(m.feedback[entry.StudentID], entry)
	return nil
}

func (m *MemoryPersister) ListFeedback(_ context.Context, studentID string) ([]datatypes.FeedbackEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]datatypes.FeedbackEntry(nil), m.feedback[studentID]...), nil
}

func (m *MemoryPersister) Close() error { return nil }

// Compile-time interface check.
var _ Persister = (*MemoryPersister)(nil)
