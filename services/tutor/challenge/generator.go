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

// Package challenge produces quiz items for the assessment games. The
// generator asks the LLM for a fresh challenge in JSON mode and falls
// back to a curated bank whenever the model output does not meet the
// contract, so callers always get a well-formed challenge.
package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/vidyasetu/vidyasetu/services/llm"
	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/observability"
)

var challengeTracer = otel.Tracer("vidyasetu.tutor.challenge")

const generatorSystemPrompt = `You generate one multiple-choice challenge for a primary school student in India.
Respond with a single JSON object and nothing else, using exactly these keys:
{"question": string, "options": [string, string, string, string], "correct": string, "explanation": string, "trait": string}
The "correct" value must be one of the options. The "explanation" is one cheerful sentence for the student.`

// Generator builds challenges from the LLM with a deterministic
// contract: the returned challenge always validates.
type Generator struct {
	llm llm.LLMClient
}

// NewGenerator creates a generator. Panics on a nil client.
func NewGenerator(llmClient llm.LLMClient) *Generator {
	if llmClient == nil {
		panic("challenge: NewGenerator requires a non-nil LLM client")
	}
	return &Generator{llm: llmClient}
}

// Generate returns one challenge for the subject, grade, and category.
//
// # Description
//
// Category selects the trait family: "iq", "eq", or a specific trait
// name such as "math". Generation is not idempotent; asking twice for
// the same inputs may return different challenges. Any LLM failure or
// contract violation in the model output is logged and answered from
// the fallback bank instead of surfacing an error.
func (g *Generator) Generate(ctx context.Context, subject string, grade int, category string) datatypes.Challenge {
	ctx, span := challengeTracer.Start(ctx, "challenge.Generate")
	defer span.End()

	prompt := buildPrompt(subject, grade, category)

	raw, err := g.llm.Generate(ctx, generatorSystemPrompt, prompt, llm.GenerationParams{
		JSONMode: true,
	})
	if err != nil {
		slog.Warn("Challenge generation failed, using fallback",
			"subject", subject, "category", category, "error", err)
		return g.fromFallback(subject, category)
	}

	ch, err := parseChallenge(raw)
	if err != nil {
		slog.Warn("Challenge output rejected, using fallback",
			"subject", subject, "category", category, "error", err)
		return g.fromFallback(subject, category)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordChallenge(subject, false)
	}
	return *ch
}

func (g *Generator) fromFallback(subject, category string) datatypes.Challenge {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordChallenge(subject, true)
	}
	return fallbackChallenge(subject, category)
}

func buildPrompt(subject string, grade int, category string) string {
	traits := traitsForCategory(category)
	return fmt.Sprintf(
		"Create one %s challenge for a Grade %d student studying %s. "+
			"Pick the trait from this list: %s. "+
			"Keep the question playful and age-appropriate.",
		category, grade, subject, strings.Join(traits, ", "))
}

// traitsForCategory maps the requested category onto the closed trait
// set. A specific trait name narrows the list to itself.
func traitsForCategory(category string) []string {
	switch strings.ToLower(category) {
	case "iq":
		return datatypes.IQTraits
	case "eq":
		return datatypes.EQTraits
	default:
		for _, t := range datatypes.ChallengeTraits {
			if t == strings.ToLower(category) {
				return []string{t}
			}
		}
		return datatypes.ChallengeTraits
	}
}

// parseChallenge decodes and validates model output. Options are
// de-duplicated (first occurrence wins) before validation, since models
// occasionally repeat an option.
func parseChallenge(raw string) (*datatypes.Challenge, error) {
	var ch datatypes.Challenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return nil, fmt.Errorf("decoding challenge JSON: %w", err)
	}

	seen := make(map[string]struct{}, len(ch.Options))
	deduped := ch.Options[:0]
	for _, opt := range ch.Options {
		if _, dup := seen[opt]; dup {
			continue
		}
		seen[opt] = struct{}{}
		deduped = append(deduped, opt)
	}
	ch.Options = deduped
	ch.Trait = strings.ToLower(ch.Trait)

	if err := ch.Validate(); err != nil {
		return nil, err
	}
	return &ch, nil
}
