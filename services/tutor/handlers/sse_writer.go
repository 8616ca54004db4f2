// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to HTTP
// responses.
//
// # Description
//
// SSEWriter abstracts SSE serialization and writing, enabling testability
// and separation from HTTP response mechanics. Every event goes out as a
// bare "data: {json}\n\n" record; the client dispatches on the JSON shape
// (stage updates carry "agent", the terminal payload carries "final"), so
// no "event:" type line is written. The stream ends with the literal
// sentinel "data: [DONE]".
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The keepalive goroutine
// writes comments while the pipeline writes events.
//
// # Limitations
//
//   - Must be used with an http.Flusher-compatible ResponseWriter
//   - Response headers must be set before the first write
type SSEWriter interface {
	// WriteStage writes one stage progress update.
	//
	// # Inputs
	//
	//   - update: stage update to serialize. Thinking updates have empty
	//     text; done updates carry the stage output.
	//
	// # Outputs
	//
	//   - error: Non-nil if serialization or the write failed.
	WriteStage(update datatypes.StageUpdate) error

	// WriteStatus writes a free-form progress message, like retrieval
	// results, without opening a stage card on the client.
	WriteStatus(message string) error

	// WriteFinal writes the unique terminal answer payload.
	//
	// # Limitations
	//
	//   - Should only be called once per stream, before WriteDone.
	WriteFinal(final datatypes.FinalAnswer) error

	// WriteError writes an error event and signals stream failure.
	//
	// # Inputs
	//
	//   - errMsg: Error message for the client. Sanitized; no internal
	//     details.
	WriteError(errMsg string) error

	// WriteDone writes the "data: [DONE]" sentinel that tells the client
	// to close its EventSource.
	//
	// # Limitations
	//
	//   - No events may be written after the sentinel.
	WriteDone() error

	// WriteKeepAlive sends a comment line to prevent connection timeouts.
	//
	// # Description
	//
	// Sends an SSE comment (": ping\n\n") to keep the TCP connection
	// active during long stages. Comments are ignored by SSE clients but
	// reset load balancer timeout counters (AWS ALB, Nginx default 60s).
	//
	// # Examples
	//
	//	ticker := time.NewTicker(15 * time.Second)
	//	defer ticker.Stop()
	//	for {
	//	    select {
	//	    case <-ticker.C:
	//	        writer.WriteKeepAlive()
	//	    case <-done:
	//	        return
	//	    }
	//	}
	WriteKeepAlive() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// sseWriter implements SSEWriter for HTTP SSE responses.
//
// # Fields
//
//   - writer: Underlying http.ResponseWriter
//   - flusher: http.Flusher interface for immediate send
//   - mu: Mutex for thread-safe writes
//
// # Limitations
//
//   - Cannot be reused across requests
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// statusEvent is the wire shape of a progress message.
type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// errorEvent is the wire shape of an in-stream failure notice.
type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// =============================================================================
// Constructor
// =============================================================================

// NewSSEWriter creates a new SSEWriter for the given ResponseWriter.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - SSEWriter: Ready to write SSE events.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
//
// # Examples
//
//	SetSSEHeaders(w)
//	writer, err := NewSSEWriter(w)
//	if err != nil {
//	    http.Error(w, "Streaming not supported", http.StatusInternalServerError)
//	    return
//	}
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders()
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &sseWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// writeData serializes payload and writes it as one SSE data record,
// flushing immediately.
func (w *sseWriter) writeData(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// WriteStage writes one stage progress update.
func (w *sseWriter) WriteStage(update datatypes.StageUpdate) error {
	return w.writeData(update)
}

// WriteStatus writes a free-form progress message.
func (w *sseWriter) WriteStatus(message string) error {
	return w.writeData(statusEvent{
		Type:    "status",
		Message: message,
	})
}

// WriteFinal writes the terminal answer payload.
func (w *sseWriter) WriteFinal(final datatypes.FinalAnswer) error {
	return w.writeData(final)
}

// WriteError writes an error event.
//
// # Assumptions
//
//   - Stream will be closed (after the sentinel) following this event.
func (w *sseWriter) WriteError(errMsg string) error {
	return w.writeData(errorEvent{
		Type:  "error",
		Error: errMsg,
	})
}

// WriteDone writes the end-of-stream sentinel.
func (w *sseWriter) WriteDone() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// The sentinel is a raw data line, not JSON.
	if _, err := fmt.Fprintf(w.writer, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("write done: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// WriteKeepAlive sends a comment line to keep the connection alive.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// SSE comment format: colon followed by text, then double newline
	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// # Description
//
// Sets the required headers for Server-Sent Events:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
