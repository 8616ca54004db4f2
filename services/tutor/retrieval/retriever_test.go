// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate/entities/models"
)

func TestChunkSizeForGrade(t *testing.T) {
	assert.Equal(t, 200, chunkSizeForGrade(1))
	assert.Equal(t, 300, chunkSizeForGrade(3))
	assert.Equal(t, 400, chunkSizeForGrade(5))
	// Unknown grades fall back to the middle size.
	assert.Equal(t, 300, chunkSizeForGrade(9))
}

func TestDataSpace(t *testing.T) {
	assert.Equal(t, "sid_science", dataSpace("sid", "Science"))
	assert.Equal(t, "sid_social_studies", dataSpace("sid", "Social Studies"))
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext(nil))

	got := FormatContext([]ContextChunk{
		{Text: "Plants need sunlight."},
		{Text: "Roots absorb water."},
	})
	assert.Equal(t, "Plants need sunlight.\n\n---\n\nRoots absorb water.", got)
}

func TestParseChunkResults(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				chunkClassName: []interface{}{
					map[string]interface{}{
						"content":  "Plants make food using sunlight.",
						"chunk_id": "tb1_chunk_0",
						"_additional": map[string]interface{}{
							"certainty": 0.91,
						},
					},
					map[string]interface{}{
						// No content: skipped.
						"chunk_id": "tb1_chunk_1",
					},
					map[string]interface{}{
						"content": "Roots absorb water from soil.",
					},
				},
			},
		},
	}

	chunks := parseChunkResults(resp)
	if assert.Len(t, chunks, 2) {
		assert.Equal(t, "tb1_chunk_0", chunks[0].ChunkID)
		assert.InDelta(t, 0.91, chunks[0].Score, 0.001)
		assert.Equal(t, "Roots absorb water from soil.", chunks[1].Text)
		assert.Zero(t, chunks[1].Score)
	}
}

func TestParseChunkResults_EmptyResponse(t *testing.T) {
	assert.Empty(t, parseChunkResults(&models.GraphQLResponse{
		Data: map[string]models.JSONObject{},
	}))
}

func TestSplitterForGrade_ProducesBoundedChunks(t *testing.T) {
	splitter := splitterForGrade(1)
	text := ""
	for i := 0; i < 40; i++ {
		text += "The sun gives light and heat to the earth. "
	}
	chunks, err := splitter.SplitText(text)
	assert.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200+chunkOverlap)
	}
}
