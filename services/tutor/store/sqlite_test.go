// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

func newTestSQLite(t *testing.T) *SQLitePersister {
	t.Helper()
	p, err := NewSQLitePersister(filepath.Join(t.TempDir(), "tutor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSQLitePersister_StudentRoundTrip(t *testing.T) {
	p := newTestSQLite(t)
	ctx := context.Background()

	profile := &datatypes.StudentProfile{
		StudentID:      "11111111-1111-4111-8111-111111111111",
		Name:           "Priya",
		Grade:          3,
		Subject:        "science",
		LearningStyle:  datatypes.StyleVisual,
		ConfidenceBand: datatypes.ConfidenceMedium,
		XP:             17,
		Level:          1,
		IQScores:       map[string]float64{"math": 80},
		EQScores:       map[string]float64{"empathy": 60},
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
		LastLogin:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, p.SaveStudent(ctx, profile))

	// Upsert keeps one row per student.
	profile.XP = 25
	require.NoError(t, p.SaveStudent(ctx, profile))

	loaded, err := p.LoadStudents(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[profile.StudentID]
	require.NotNil(t, got)
	assert.Equal(t, 25, got.XP)
	assert.Equal(t, 80.0, got.IQScores["math"])
	assert.Equal(t, datatypes.StyleVisual, got.LearningStyle)
}

func TestSQLitePersister_ChatHistoryOrderAndLimit(t *testing.T) {
	p := newTestSQLite(t)
	ctx := context.Background()
	const studentID = "22222222-2222-4222-8222-222222222222"

	for i := 0; i < 5; i++ {
		require.NoError(t, p.AppendChat(ctx, datatypes.TranscriptEntry{
			QueryID:   string(rune('a' + i)),
			StudentID: studentID,
			Query:     "question",
			Response:  "answer",
			Grounded:  true,
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := p.ListChat(ctx, studentID, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Most recent three, oldest first.
	assert.Equal(t, "c", entries[0].QueryID)
	assert.Equal(t, "e", entries[2].QueryID)
	assert.True(t, entries[0].Grounded)

	require.NoError(t, p.ClearChat(ctx, studentID))
	entries, err = p.ListChat(ctx, studentID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLitePersister_TextbookLifecycle(t *testing.T) {
	p := newTestSQLite(t)
	ctx := context.Background()

	meta := datatypes.TextbookMetadata{
		TextbookID: "tb-1",
		StudentID:  "33333333-3333-4333-8333-333333333333",
		Filename:   "science_grade3.pdf",
		Subject:    "science",
		Status:     datatypes.TextbookProcessing,
		UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, p.SaveTextbook(ctx, meta))

	meta.Status = datatypes.TextbookReady
	meta.ChunkCount = 42
	require.NoError(t, p.SaveTextbook(ctx, meta))

	got, err := p.GetTextbook(ctx, "tb-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.TextbookReady, got.Status)
	assert.Equal(t, 42, got.ChunkCount)

	list, err := p.ListTextbooks(ctx, meta.StudentID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, p.DeleteTextbook(ctx, "tb-1"))
	_, err = p.GetTextbook(ctx, "tb-1")
	assert.ErrorIs(t, err, ErrTextbookNotFound)
}

func TestSQLitePersister_Feedback(t *testing.T) {
	p := newTestSQLite(t)
	ctx := context.Background()
	const studentID = "44444444-4444-4444-8444-444444444444"

	require.NoError(t, p.SaveFeedback(ctx, datatypes.FeedbackEntry{
		FeedbackID:   "f-1",
		StudentID:    studentID,
		Rating:       4,
		FeedbackType: "satisfaction",
		Timestamp:    time.Now().UTC(),
	}))

	entries, err := p.ListFeedback(ctx, studentID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].Rating)
}
