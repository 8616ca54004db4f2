// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides a backend-agnostic client for large language models.
//
// Two backends are implemented: OpenAI (hosted) and Ollama (local). Both
// satisfy LLMClient so the tutor pipeline never depends on a concrete
// provider. Select a backend with LLM_BACKEND_TYPE ("openai" or "ollama").
package llm

import "context"

// Message is a single turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams carries optional sampling parameters. Nil fields mean
// "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
	// JSONMode asks the backend for a syntactically valid JSON object
	// response. Only honored by backends that support it.
	JSONMode bool `json:"json_mode"`
}

// StreamEventType identifies the kind of a StreamEvent.
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one increment of a streaming generation.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content"`
	Err     error           `json:"-"`
}

// StreamCallback receives stream events in generation order. Returning a
// non-nil error aborts the stream.
type StreamCallback func(event StreamEvent) error

// LLMClient is the standard interface for any LLM backend.
//
// Generate produces a complete response for a system+user prompt pair.
// ChatStream produces a response token by token via the callback.
// Implementations must honor ctx cancellation at their next network
// boundary.
type LLMClient interface {
	Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error)
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error
}
