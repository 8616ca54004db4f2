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

// Package retrieval provides textbook context for the answer pipeline.
// Chunks live in Weaviate, one logical space per student and subject,
// so one student's textbook never leaks into another's answers.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var retrievalTracer = otel.Tracer("vidyasetu.tutor.retrieval")

// ErrRetrievalUnavailable marks infrastructure failures, as opposed to
// an empty result set. The pipeline degrades to an ungrounded answer on
// empty results but surfaces this error to the caller.
var ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")

// DefaultTopK is the chunk count per query.
const DefaultTopK = 5

// chunkClassName is the Weaviate class holding textbook chunks.
const chunkClassName = "TextbookChunk"

// Retriever finds textbook passages relevant to a query.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Retriever interface {
	// Retrieve returns up to limit chunks for the student's data space,
	// ordered by descending relevance. An empty slice with a nil error
	// means the student has no matching textbook content.
	Retrieve(ctx context.Context, studentID, subject, query string, limit int) ([]ContextChunk, error)
}

// ContextChunk is one retrieved passage with its relevance score.
type ContextChunk struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// FormatContext joins chunks into the prompt context block.
func FormatContext(chunks []ContextChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// dataSpace isolates one student+subject pair.
func dataSpace(studentID, subject string) string {
	return studentID + "_" + strings.ToLower(strings.ReplaceAll(subject, " ", "_"))
}

// WeaviateRetriever implements Retriever on a Weaviate nearVector
// search with query vectors from the configured embedder.
type WeaviateRetriever struct {
	client   *weaviate.Client
	embedder Embedder
}

// NewWeaviateRetriever creates a retriever. Panics on nil dependencies;
// wiring bugs should fail at startup, not on the first query.
func NewWeaviateRetriever(client *weaviate.Client, embedder Embedder) *WeaviateRetriever {
	if client == nil {
		panic("retrieval: NewWeaviateRetriever requires a non-nil weaviate client")
	}
	if embedder == nil {
		panic("retrieval: NewWeaviateRetriever requires a non-nil embedder")
	}
	return &WeaviateRetriever{client: client, embedder: embedder}
}

func (r *WeaviateRetriever) Retrieve(ctx context.Context, studentID, subject, query string, limit int) ([]ContextChunk, error) {
	ctx, span := retrievalTracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.data_space", dataSpace(studentID, subject)))

	if limit <= 0 {
		limit = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrievalUnavailable, err)
	}

	whereFilter := filters.Where().
		WithPath([]string{"data_space"}).
		WithOperator(filters.Equal).
		WithValueString(dataSpace(studentID, subject))

	nearVector := r.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// Certainty is always in [0,1] regardless of distance metric.
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "chunk_id"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(chunkClassName).
		WithFields(fields...).
		WithWhere(whereFilter).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Error("Weaviate chunk search failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRetrievalUnavailable, result.Errors[0].Message)
	}

	chunks := parseChunkResults(result)
	slog.Debug("Retrieved textbook chunks",
		"student_id", studentID,
		"subject", subject,
		"count", len(chunks))
	return chunks, nil
}

// parseChunkResults walks the GraphQL response shape. Missing or
// malformed entries are skipped rather than failing the whole query.
func parseChunkResults(result *models.GraphQLResponse) []ContextChunk {
	var chunks []ContextChunk

	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return chunks
	}
	items, ok := get[chunkClassName].([]interface{})
	if !ok {
		return chunks
	}

	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		chunk := ContextChunk{}
		if content, ok := obj["content"].(string); ok {
			chunk.Text = content
		}
		if id, ok := obj["chunk_id"].(string); ok {
			chunk.ChunkID = id
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				chunk.Score = certainty
			}
		}
		if chunk.Text == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

var _ Retriever = (*WeaviateRetriever)(nil)

// NoRetriever is the lightweight-mode stand-in when no vector index is
// configured. Every call reports the backend as unavailable, which the
// pipeline treats as "answer from general knowledge".
type NoRetriever struct{}

func (NoRetriever) Retrieve(ctx context.Context, studentID, subject, query string, limit int) ([]ContextChunk, error) {
	return nil, ErrRetrievalUnavailable
}

var _ Retriever = NoRetriever{}
