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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

// SQLitePersister stores student state in a single SQLite file. The
// pure-Go driver keeps the service free of cgo, so the same binary runs
// in scratch containers.
type SQLitePersister struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS students (
    student_id TEXT PRIMARY KEY,
    name       TEXT,
    grade      INTEGER,
    subject    TEXT,
    xp         INTEGER DEFAULT 0,
    level      INTEGER DEFAULT 1,
    data       TEXT
);
CREATE TABLE IF NOT EXISTS chat_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    student_id TEXT,
    query      TEXT,
    response   TEXT,
    timestamp  TEXT,
    metadata   TEXT,
    FOREIGN KEY (student_id) REFERENCES students (student_id)
);
CREATE TABLE IF NOT EXISTS textbooks (
    textbook_id TEXT PRIMARY KEY,
    student_id  TEXT,
    filename    TEXT,
    subject     TEXT,
    metadata    TEXT,
    FOREIGN KEY (student_id) REFERENCES students (student_id)
);
CREATE TABLE IF NOT EXISTS feedback (
    feedback_id TEXT PRIMARY KEY,
    student_id  TEXT,
    metadata    TEXT,
    FOREIGN KEY (student_id) REFERENCES students (student_id)
);
`

// NewSQLitePersister opens (creating if needed) the database at dbPath
// and applies the schema.
func NewSQLitePersister(dbPath string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", dbPath, err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent handler writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	slog.Info("SQLite persister ready", "path", dbPath)
	return &SQLitePersister{db: db}, nil
}

func (s *SQLitePersister) SaveStudent(ctx context.Context, profile *datatypes.StudentProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO students (student_id, name, grade, subject, xp, level, data)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.StudentID, profile.Name, profile.Grade, profile.Subject,
		profile.XP, profile.Level, string(data))
	return err
}

func (s *SQLitePersister) LoadStudents(ctx context.Context) (map[string]*datatypes.StudentProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT student_id, data FROM students`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*datatypes.StudentProfile)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var profile datatypes.StudentProfile
		if err := json.Unmarshal([]byte(data), &profile); err != nil {
			slog.Warn("Skipping undecodable student row", "student_id", id, "error", err)
			continue
		}
		out[id] = &profile
	}
	return out, rows.Err()
}

// chatMetadata carries the transcript fields that have no dedicated
// column.
type chatMetadata struct {
	QueryID        string                  `json:"query_id"`
	AgentSteps     []datatypes.StageUpdate `json:"agent_steps,omitempty"`
	SafetyVerified bool                    `json:"safety_verified"`
	Grounded       bool                    `json:"grounded"`
}

func (s *SQLitePersister) AppendChat(ctx context.Context, entry datatypes.TranscriptEntry) error {
	meta, err := json.Marshal(chatMetadata{
		QueryID:        entry.QueryID,
		AgentSteps:     entry.AgentSteps,
		SafetyVerified: entry.SafetyVerified,
		Grounded:       entry.Grounded,
	})
	if err != nil {
		return fmt.Errorf("encoding chat metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO chat_history (student_id, query, response, timestamp, metadata)
        VALUES (?, ?, ?, ?, ?)`,
		entry.StudentID, entry.Query, entry.Response,
		entry.Timestamp.UTC().Format(time.RFC3339Nano), string(meta))
	return err
}

func (s *SQLitePersister) ListChat(ctx context.Context, studentID string, limit int) ([]datatypes.TranscriptEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT query, response, timestamp, metadata
        FROM chat_history
        WHERE student_id = ?
        ORDER BY id DESC LIMIT ?`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var newestFirst []datatypes.TranscriptEntry
	for rows.Next() {
		var query, response, ts, metaJSON string
		if err := rows.Scan(&query, &response, &ts, &metaJSON); err != nil {
			return nil, err
		}
		entry := datatypes.TranscriptEntry{
			StudentID: studentID,
			Query:     query,
			Response:  response,
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = t
		}
		var meta chatMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err == nil {
			entry.QueryID = meta.QueryID
			entry.AgentSteps = meta.AgentSteps
			entry.SafetyVerified = meta.SafetyVerified
			entry.Grounded = meta.Grounded
		}
		newestFirst = append(newestFirst, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first for the client.
	out := make([]datatypes.TranscriptEntry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}

func (s *SQLitePersister) ClearChat(ctx context.Context, studentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_history WHERE student_id = ?`, studentID)
	return err
}

func (s *SQLitePersister) SaveTextbook(ctx context.Context, meta datatypes.TextbookMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding textbook metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO textbooks (textbook_id, student_id, filename, subject, metadata)
        VALUES (?, ?, ?, ?, ?)`,
		meta.TextbookID, meta.StudentID, meta.Filename, meta.Subject, string(data))
	return err
}

func (s *SQLitePersister) GetTextbook(ctx context.Context, textbookID string) (*datatypes.TextbookMetadata, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM textbooks WHERE textbook_id = ?`, textbookID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrTextbookNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta datatypes.TextbookMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("decoding textbook metadata: %w", err)
	}
	return &meta, nil
}

func (s *SQLitePersister) ListTextbooks(ctx context.Context, studentID string) ([]datatypes.TextbookMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metadata FROM textbooks WHERE student_id = ?`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []datatypes.TextbookMetadata
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var meta datatypes.TextbookMetadata
		if err := json.Unmarshal([]byte(data), &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (s *SQLitePersister) DeleteTextbook(ctx context.Context, textbookID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM textbooks WHERE textbook_id = ?`, textbookID)
	return err
}

func (s *SQLitePersister) SaveFeedback(ctx context.Context, entry datatypes.FeedbackEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding feedback: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO feedback (feedback_id, student_id, metadata)
        VALUES (?, ?, ?)`,
		entry.FeedbackID, entry.StudentID, string(data))
	return err
}

func (s *SQLitePersister) ListFeedback(ctx context.Context, studentID string) ([]datatypes.FeedbackEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metadata FROM feedback WHERE student_id = ?`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []datatypes.FeedbackEntry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var entry datatypes.FeedbackEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLitePersister) Close() error {
	return s.db.Close()
}

var _ Persister = (*SQLitePersister)(nil)
