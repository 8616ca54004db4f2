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

// Package pipeline runs the staged answer transform. Every query walks
// the same fixed sequence: Explain builds a factual answer from
// textbook context, Simplify rewrites it for the student's grade, and
// Encourage wraps it in motivation. Each stage reports a thinking and
// a done event before the single final answer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vidyasetu/vidyasetu/services/llm"
	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/observability"
	"github.com/vidyasetu/vidyasetu/services/tutor/retrieval"
	"github.com/vidyasetu/vidyasetu/services/tutor/safety"
)

var councilTracer = otel.Tracer("vidyasetu.tutor.pipeline")

// defaultStageTimeout bounds one LLM call. Overridable via
// STAGE_TIMEOUT_SECONDS.
const defaultStageTimeout = 45 * time.Second

// apologyMessage is the fallback final answer when a stage fails.
const apologyMessage = "I'm having trouble right now. Can you try asking again? 🙂"

// safetyReplacement is the final answer when the generated text fails
// the content check.
const safetyReplacement = "Let's focus on learning topics instead! Ask me something from your textbook 📚."

// EventSink receives pipeline progress. The transport layer implements
// this on top of its SSE writer. A non-nil error from any method aborts
// the run; the pipeline emits nothing further afterwards.
type EventSink interface {
	// Status carries free-form progress text, like retrieval results.
	Status(message string) error
	// Stage carries one thinking or done update.
	Stage(update datatypes.StageUpdate) error
	// Final carries the unique terminal answer.
	Final(final datatypes.FinalAnswer) error
}

// Council orchestrates the three answer stages over one LLM client.
//
// # Thread Safety
//
// Safe for concurrent use; each Run carries its own state.
type Council struct {
	llm          llm.LLMClient
	retriever    retrieval.Retriever
	safetyEngine *safety.Engine
	stageTimeout time.Duration
	temperature  float32
}

// NewCouncil creates the pipeline. Panics on nil dependencies so wiring
// bugs surface at startup.
func NewCouncil(llmClient llm.LLMClient, retriever retrieval.Retriever, safetyEngine *safety.Engine) *Council {
	if llmClient == nil {
		panic("pipeline: NewCouncil requires a non-nil LLM client")
	}
	if retriever == nil {
		panic("pipeline: NewCouncil requires a non-nil retriever")
	}
	if safetyEngine == nil {
		panic("pipeline: NewCouncil requires a non-nil safety engine")
	}

	timeout := defaultStageTimeout
	if v := os.Getenv("STAGE_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		} else {
			slog.Warn("Invalid STAGE_TIMEOUT_SECONDS, using default",
				"value", v, "default", defaultStageTimeout)
		}
	}

	temperature := float32(0.7)
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			temperature = float32(f)
		}
	}

	return &Council{
		llm:          llmClient,
		retriever:    retriever,
		safetyEngine: safetyEngine,
		stageTimeout: timeout,
		temperature:  temperature,
	}
}

// Run executes the full pipeline for one query.
//
// # Description
//
// Retrieves textbook context, reports it as a status event, then runs
// the three stages in order, each bounded by the stage timeout. The
// returned FinalAnswer is also delivered through the sink, exactly
// once per run. A failed stage short-circuits into an apology final
// with SafetyVerified false; no stage events follow it. Context
// cancellation (a gone client) aborts at the next stage boundary with
// no final at all.
//
// # Outputs
//
//   - *datatypes.FinalAnswer: The answer delivered to the sink. Nil
//     only when the run aborted.
//   - error: Non-nil on cancellation or sink failure.
func (c *Council) Run(ctx context.Context, query string, profile *datatypes.StudentProfile, sink EventSink) (*datatypes.FinalAnswer, error) {
	ctx, span := councilTracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("pipeline.grade", profile.Grade),
		attribute.String("pipeline.subject", profile.Subject),
	)

	queryID := uuid.NewString()
	steps := make([]datatypes.StageUpdate, 0, len(datatypes.Stages)*2)

	// 1. Retrieve textbook context. Retrieval problems degrade to an
	// ungrounded answer instead of failing the query.
	contextText, grounded, statusMsg := c.retrieveContext(ctx, query, profile)
	if err := sink.Status(statusMsg); err != nil {
		return nil, fmt.Errorf("writing status: %w", err)
	}

	// 2. Run the stages in order.
	previous := ""
	for _, stage := range datatypes.Stages {
		// A stage that already started runs to completion, but nothing
		// more is delivered once the client is gone.
		if err := ctx.Err(); err != nil {
			slog.Info("Pipeline aborted", "query_id", queryID, "stage", stage)
			return nil, err
		}

		if err := c.emitStage(sink, &steps, stage, datatypes.StageThinking, ""); err != nil {
			return nil, err
		}

		text, err := c.runStage(ctx, stage, query, contextText, previous, profile)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Error("Stage failed, returning fallback answer",
				"query_id", queryID, "stage", stage, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "stage failed")
			return c.deliverFinal(sink, datatypes.FinalAnswer{
				Final:          apologyMessage,
				QueryID:        queryID,
				SafetyVerified: false,
				Grounded:       grounded,
				AgentSteps:     steps,
			})
		}

		// A cancellation that landed mid-stage discards the stage's
		// output instead of delivering it to a gone client.
		if err := ctx.Err(); err != nil {
			slog.Info("Pipeline aborted mid-stage, discarding output",
				"query_id", queryID, "stage", stage)
			return nil, err
		}

		if err := c.emitStage(sink, &steps, stage, datatypes.StageDone, text); err != nil {
			return nil, err
		}
		previous = text
	}

	// 3. Verify the finished answer before it reaches the student.
	finalText := previous
	safetyVerified := c.safetyEngine.VerifyAnswer(finalText)
	if !safetyVerified {
		slog.Warn("Final answer failed safety verification", "query_id", queryID)
		finalText = safetyReplacement
	}

	return c.deliverFinal(sink, datatypes.FinalAnswer{
		Final:          finalText,
		QueryID:        queryID,
		SafetyVerified: safetyVerified,
		Grounded:       grounded,
		AgentSteps:     steps,
	})
}

// retrieveContext fetches and formats textbook chunks. Returns the
// context block, whether the answer will be grounded, and the status
// message for the client.
func (c *Council) retrieveContext(ctx context.Context, query string, profile *datatypes.StudentProfile) (string, bool, string) {
	retrieveCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	chunks, err := c.retriever.Retrieve(retrieveCtx, profile.StudentID, profile.Subject, query, retrieval.DefaultTopK)
	if err != nil {
		slog.Warn("Context retrieval unavailable, answering ungrounded", "error", err)
		return "", false, "Using general knowledge (textbook retrieval unavailable)."
	}
	contextText := retrieval.FormatContext(chunks)
	if strings.TrimSpace(contextText) == "" {
		return "", false, "No textbook uploaded yet. Answering from general CBSE knowledge."
	}
	words := len(strings.Fields(contextText))
	return contextText, true, fmt.Sprintf("Found %d words of context from your %s textbook.", words, profile.Subject)
}

// runStage executes one LLM call under the stage timeout.
func (c *Council) runStage(ctx context.Context, stage datatypes.Stage, query, contextText, previous string, profile *datatypes.StudentProfile) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	ctx, span := councilTracer.Start(stageCtx, "pipeline.stage."+string(stage))
	defer span.End()

	started := time.Now()
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordStageDuration(string(stage), time.Since(started).Seconds())
		}
	}()

	system := stageSystemPrompt(stage, profile.Grade, profile.Subject)
	input := stageInput(stage, query, contextText, previous, profile.Grade)

	temperature := c.temperature
	text, err := c.llm.Generate(ctx, system, input, llm.GenerationParams{
		Temperature: &temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return "", fmt.Errorf("stage %s: %w", stage, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("stage %s: empty output", stage)
	}
	return text, nil
}

func (c *Council) emitStage(sink EventSink, steps *[]datatypes.StageUpdate, stage datatypes.Stage, status datatypes.StageStatus, text string) error {
	update := datatypes.StageUpdate{Agent: stage, Status: status, Text: text}
	*steps = append(*steps, update)
	if err := sink.Stage(update); err != nil {
		return fmt.Errorf("writing stage event: %w", err)
	}
	return nil
}

func (c *Council) deliverFinal(sink EventSink, final datatypes.FinalAnswer) (*datatypes.FinalAnswer, error) {
	if err := sink.Final(final); err != nil {
		return nil, fmt.Errorf("writing final event: %w", err)
	}
	return &final, nil
}
