// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package challenge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyasetu/vidyasetu/services/llm"
	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

// stubLLM returns a fixed response or error for every Generate call.
type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(ctx context.Context, system, prompt string, params llm.GenerationParams) (string, error) {
	return s.response, s.err
}

func (s *stubLLM) ChatStream(ctx context.Context, messages []llm.Message, params llm.GenerationParams, callback llm.StreamCallback) error {
	return errors.New("not implemented")
}

const validChallengeJSON = `{
	"question": "What is 7 + 5?",
	"options": ["10", "11", "12", "13"],
	"correct": "12",
	"explanation": "7 plus 5 makes 12. Super adding!",
	"trait": "math"
}`

func TestGenerate_ValidModelOutput(t *testing.T) {
	g := NewGenerator(&stubLLM{response: validChallengeJSON})

	ch := g.Generate(context.Background(), "math", 3, "iq")
	assert.Equal(t, "What is 7 + 5?", ch.Question)
	assert.Equal(t, "12", ch.Correct)
	assert.Equal(t, "math", ch.Trait)
	assert.NoError(t, ch.Validate())
}

func TestGenerate_DeduplicatesOptions(t *testing.T) {
	g := NewGenerator(&stubLLM{response: `{
		"question": "What is 2 + 2?",
		"options": ["4", "4", "5", "6"],
		"correct": "4",
		"explanation": "Two and two make four!",
		"trait": "math"
	}`})

	ch := g.Generate(context.Background(), "math", 2, "math")
	assert.Equal(t, []string{"4", "5", "6"}, ch.Options)
	assert.NoError(t, ch.Validate())
}

func TestGenerate_FallsBackOnLLMError(t *testing.T) {
	g := NewGenerator(&stubLLM{err: errors.New("backend down")})

	ch := g.Generate(context.Background(), "science", 3, "iq")
	assert.NoError(t, ch.Validate(), "fallback challenge must be well formed")
}

func TestGenerate_FallsBackOnContractViolations(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"not json", "here is your challenge!"},
		{"correct not in options", `{"question":"q","options":["a","b"],"correct":"c","explanation":"e","trait":"math"}`},
		{"empty options", `{"question":"q","options":[],"correct":"a","explanation":"e","trait":"math"}`},
		{"unknown trait", `{"question":"q","options":["a","b"],"correct":"a","explanation":"e","trait":"charisma"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator(&stubLLM{response: tc.response})
			ch := g.Generate(context.Background(), "math", 3, "iq")
			assert.NoError(t, ch.Validate())
		})
	}
}

// Every generated challenge must satisfy the contract, whatever mix of
// model output and fallbacks produced it.
func TestGenerate_ContractHoldsAtVolume(t *testing.T) {
	good := NewGenerator(&stubLLM{response: validChallengeJSON})
	broken := NewGenerator(&stubLLM{err: errors.New("flaky")})

	for i := 0; i < 500; i++ {
		for _, g := range []*Generator{good, broken} {
			ch := g.Generate(context.Background(), "science", 1+i%5, "eq")
			require.NoError(t, ch.Validate())
			require.Contains(t, ch.Options, ch.Correct)
		}
	}
}

func TestFallbackChallenge_AlwaysValid(t *testing.T) {
	for i := 0; i < 200; i++ {
		ch := fallbackChallenge("History", "iq")
		require.NoError(t, ch.Validate())
	}
	for subject := range fallbackBank {
		for _, ch := range fallbackBank[subject] {
			require.NoError(t, ch.Validate(), "bank entry for %s", subject)
		}
	}
}

func TestTraitsForCategory(t *testing.T) {
	assert.Equal(t, datatypes.IQTraits, traitsForCategory("iq"))
	assert.Equal(t, datatypes.EQTraits, traitsForCategory("EQ"))
	assert.Equal(t, []string{"empathy"}, traitsForCategory("empathy"))
	assert.Equal(t, datatypes.ChallengeTraits, traitsForCategory("anything"))
}
