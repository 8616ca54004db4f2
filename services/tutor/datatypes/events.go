// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Stage names the steps of the fixed answer transform sequence.
type Stage string

// The pipeline runs these stages in declaration order. The order is a
// contract with the client UI, which renders one card per stage.
const (
	StageExplain   Stage = "explainer"
	StageSimplify  Stage = "simplifier"
	StageEncourage Stage = "encourager"
)

// Stages is the fixed execution order.
var Stages = []Stage{StageExplain, StageSimplify, StageEncourage}

// StageStatus is the lifecycle state of one stage.
type StageStatus string

const (
	// StageThinking is emitted immediately before a stage is invoked.
	StageThinking StageStatus = "thinking"
	// StageDone is emitted immediately after a stage returns, with its
	// output text attached.
	StageDone StageStatus = "done"
)

// StageUpdate reports progress of a single pipeline stage.
//
// Within one channel all updates for stage k precede any update for
// stage k+1, and a thinking update always precedes its done update.
type StageUpdate struct {
	Agent  Stage       `json:"agent"`
	Status StageStatus `json:"status"`
	Text   string      `json:"text,omitempty"`
}

// FinalAnswer is the unique terminal payload of a pipeline run.
//
// # Fields
//
//   - Final: the complete answer text shown to the student.
//   - QueryID: correlation id, unique per query within a session.
//   - SafetyVerified: result of the content check on the final text;
//     false on the fallback/apology path.
//   - Grounded: true when at least one context chunk backed the answer.
//   - AgentSteps: the full StageUpdate history, for the expandable
//     "how I thought about this" view.
type FinalAnswer struct {
	Final          string        `json:"final"`
	QueryID        string        `json:"query_id"`
	SafetyVerified bool          `json:"safety_verified"`
	Grounded       bool          `json:"grounded"`
	AgentSteps     []StageUpdate `json:"agent_steps,omitempty"`
}
