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

package datatypes

import "time"

// Textbook processing states reported by the status endpoint.
const (
	TextbookProcessing = "processing"
	TextbookReady      = "ready"
	TextbookFailed     = "failed"
)

// TextbookMetadata tracks one uploaded textbook through ingestion.
type TextbookMetadata struct {
	TextbookID string    `json:"textbook_id"`
	StudentID  string    `json:"student_id"`
	Filename   string    `json:"filename"`
	Subject    string    `json:"subject"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Error      string    `json:"error,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}
