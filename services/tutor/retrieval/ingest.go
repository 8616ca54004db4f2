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

package retrieval

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate/entities/models"
)

// chunkOverlap keeps neighboring chunks stitched together.
const chunkOverlap = 50

// embedBatchSize bounds one embeddings API call.
const embedBatchSize = 50

// textbookSeparators split on paragraph, line, and sentence boundaries
// before falling back to words.
var textbookSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// chunkSizeForGrade returns the chunk size for a grade level. Lower
// grades get smaller chunks for more focused retrieval.
func chunkSizeForGrade(grade int) int {
	sizes := map[int]int{1: 200, 2: 250, 3: 300, 4: 350, 5: 400}
	if size, ok := sizes[grade]; ok {
		return size
	}
	return 300
}

// splitterForGrade builds the text splitter for one textbook.
func splitterForGrade(grade int) textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSizeForGrade(grade)),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(textbookSeparators),
	)
}

// GetTextbookChunkSchema defines the Weaviate class for textbook
// chunks. Vectorizer is "none"; vectors are supplied at import time.
func GetTextbookChunkSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       chunkClassName,
		Description: "One chunk of an uploaded textbook, scoped to a student and subject.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text.",
				Tokenization: "word",
			},
			{
				Name:            "chunk_id",
				DataType:        []string{"text"},
				Description:     "Stable chunk identifier, textbook id plus position.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "textbook_id",
				DataType:        []string{"text"},
				Description:     "The textbook this chunk came from.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "data_space",
				DataType:        []string{"text"},
				Description:     "Student and subject isolation key.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "grade",
				DataType:        []string{"int"},
				Description:     "Grade level the textbook was uploaded for.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the chunk was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the textbook chunk class if it does not exist.
// Failure to create the class is fatal; the service cannot answer
// grounded questions without it.
func EnsureSchema(client *weaviate.Client) {
	class := GetTextbookChunkSchema()
	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
	if err != nil {
		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(context.Background()); err != nil {
			log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
		}
		slog.Info("Successfully created schema", "class", class.Class)
		return
	}
	slog.Info("Schema already exists", "class", class.Class)
}

// Ingestor chunks extracted textbook text and imports it into Weaviate.
type Ingestor struct {
	client   *weaviate.Client
	embedder Embedder
}

// NewIngestor creates an ingestor. Panics on nil dependencies.
func NewIngestor(client *weaviate.Client, embedder Embedder) *Ingestor {
	if client == nil {
		panic("retrieval: NewIngestor requires a non-nil weaviate client")
	}
	if embedder == nil {
		panic("retrieval: NewIngestor requires a non-nil embedder")
	}
	return &Ingestor{client: client, embedder: embedder}
}

// IngestRequest carries one textbook through chunking and import.
type IngestRequest struct {
	TextbookID string
	StudentID  string
	Subject    string
	Grade      int
	Text       string
}

// Ingest replaces the student's textbook content for the subject.
//
// # Description
//
// Splits the text with a grade-appropriate chunk size, embeds the
// chunks in batches, deletes any previously ingested chunks for the
// same data space, and batch-imports the new objects. Chunk object ids
// are derived from the chunk content hash, so re-ingesting identical
// content is idempotent.
//
// # Outputs
//
//   - int: Number of chunks successfully imported.
//   - error: Non-nil if splitting, embedding, or the import failed.
func (ing *Ingestor) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	ctx, span := retrievalTracer.Start(ctx, "retrieval.Ingest")
	defer span.End()

	splitter := splitterForGrade(req.Grade)
	chunks, err := splitter.SplitText(req.Text)
	if err != nil {
		return 0, fmt.Errorf("splitting textbook: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "textbook_id", req.TextbookID)
		return 0, nil
	}
	slog.Info("Split textbook into chunks",
		"textbook_id", req.TextbookID,
		"grade", req.Grade,
		"chunk_count", len(chunks))

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := ing.embedder.EmbedBatch(ctx, chunks[start:end])
		if err != nil {
			return 0, fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	// A new upload replaces the old textbook for this space.
	if err := ing.DeleteSpace(ctx, req.StudentID, req.Subject); err != nil {
		return 0, err
	}

	space := dataSpace(req.StudentID, req.Subject)
	now := time.Now().UnixMilli()
	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		hash := sha256.Sum256([]byte(space + chunk))
		objUUID, _ := uuid.FromBytes(hash[:16])

		objects[i] = &models.Object{
			Class:  chunkClassName,
			ID:     strfmt.UUID(objUUID.String()),
			Vector: vectors[i],
			Properties: map[string]interface{}{
				"content":     chunk,
				"chunk_id":    fmt.Sprintf("%s_chunk_%d", req.TextbookID, i),
				"textbook_id": req.TextbookID,
				"data_space":  space,
				"grade":       req.Grade,
				"ingested_at": now,
			},
		}
	}

	resp, err := ing.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: batch import: %v", ErrRetrievalUnavailable, err)
	}

	imported := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			imported++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Weaviate batch item failed",
					"textbook_id", req.TextbookID,
					"error", errItem.Message)
			}
		}
	}

	slog.Info("Ingested textbook",
		"textbook_id", req.TextbookID,
		"chunks_imported", imported)
	return imported, nil
}

// DeleteSpace removes all chunks for a student+subject pair.
func (ing *Ingestor) DeleteSpace(ctx context.Context, studentID, subject string) error {
	where := filters.Where().
		WithPath([]string{"data_space"}).
		WithOperator(filters.Equal).
		WithValueString(dataSpace(studentID, subject))

	_, err := ing.client.Batch().ObjectsBatchDeleter().
		WithClassName(chunkClassName).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: deleting chunks: %v", ErrRetrievalUnavailable, err)
	}
	return nil
}

// DeleteTextbook removes the chunks of one specific textbook.
func (ing *Ingestor) DeleteTextbook(ctx context.Context, textbookID string) error {
	where := filters.Where().
		WithPath([]string{"textbook_id"}).
		WithOperator(filters.Equal).
		WithValueString(textbookID)

	_, err := ing.client.Batch().ObjectsBatchDeleter().
		WithClassName(chunkClassName).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: deleting textbook chunks: %v", ErrRetrievalUnavailable, err)
	}
	return nil
}
