// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// =============================================================================
// TEXTBOOK UPLOAD MODULE
// =============================================================================
//
// Accepts a student's textbook as extracted text, validates it for grade
// and subject fit, and ingests it into the vector index in the background.
// Upload returns immediately with a textbook id; the client polls the
// status endpoint until "ready" or "failed".
//
// PDF extraction happens client-side (or in a separate extraction service);
// this endpoint takes .txt/.md only.
//
// =============================================================================

package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vidyasetu/vidyasetu/services/tutor/datatypes"
	"github.com/vidyasetu/vidyasetu/services/tutor/observability"
	"github.com/vidyasetu/vidyasetu/services/tutor/retrieval"
	"github.com/vidyasetu/vidyasetu/services/tutor/safety"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

const (
	// defaultMaxUploadMB caps the upload size when MAX_UPLOAD_SIZE_MB is
	// unset.
	defaultMaxUploadMB = 10

	// ingestTimeout bounds the background chunk/embed/import run.
	ingestTimeout = 5 * time.Minute
)

// allowedTextbookExtensions are the upload types we accept.
var allowedTextbookExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// TextbookHandler serves textbook upload, status, and deletion.
type TextbookHandler struct {
	profiles  *store.ProfileStore
	ingestor  *retrieval.Ingestor
	maxUpload int64
	tracer    trace.Tracer
}

// NewTextbookHandler creates a TextbookHandler.
//
// # Inputs
//
//   - profiles: profile store for metadata and the textbook flag. Must
//     not be nil.
//   - ingestor: vector index ingestor. May be nil in lightweight mode;
//     uploads then fail with 503 while status/delete still work.
func NewTextbookHandler(profiles *store.ProfileStore, ingestor *retrieval.Ingestor) *TextbookHandler {
	if profiles == nil {
		panic("NewTextbookHandler: profiles must not be nil")
	}

	maxMB := int64(defaultMaxUploadMB)
	if v := os.Getenv("MAX_UPLOAD_SIZE_MB"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			maxMB = parsed
		} else {
			slog.Warn("Ignoring invalid MAX_UPLOAD_SIZE_MB", "value", v)
		}
	}

	return &TextbookHandler{
		profiles:  profiles,
		ingestor:  ingestor,
		maxUpload: maxMB << 20,
		tracer:    otel.Tracer("vidyasetu.tutor.handlers"),
	}
}

// HandleUpload ingests one textbook for a student.
//
// # Description
//
// Multipart form with fields:
//   - file: the textbook as extracted text (.txt or .md)
//   - student_id: owner of the textbook
//   - subject: optional; defaults to the student's enrolled subject
//
// The content is screened for grade and subject fit before anything is
// indexed. Chunking and embedding run in the background; the response
// carries the textbook id to poll.
func (h *TextbookHandler) HandleUpload(c *gin.Context) {
	endpoint := observability.EndpointTextbooks

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleTextbookUpload")
	defer span.End()

	// Step 1: Bound the request body before parsing the form
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required and must fit the size limit"})
		return
	}

	// Step 2: Extension check
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedTextbookExtensions[ext] {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .txt and .md uploads are supported"})
		return
	}

	// Step 3: Resolve the owning student
	studentID := c.PostForm("student_id")
	profile, err := h.profiles.Get(studentID)
	if err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeNotFound)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	subject := c.PostForm("subject")
	if subject == "" {
		subject = profile.Subject
	}

	// Step 4: Read the content
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return
	}
	content, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return
	}
	text := string(content)

	// Step 5: Screen the content before indexing anything
	if ok, reason := safety.ValidateTextbook(text, subject, profile.Grade); !ok {
		slog.Warn("Rejected textbook upload",
			"studentId", studentID,
			"subject", subject,
			"reason", reason,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeSafetyViolation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	// Step 6: Ingestion needs the vector index
	if h.ingestor == nil {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeRetrievalError)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "textbook ingestion is not available"})
		return
	}

	// Step 7: Record metadata and kick off the background ingest
	textbookID := uuid.NewString()
	meta := datatypes.TextbookMetadata{
		TextbookID: textbookID,
		StudentID:  studentID,
		Filename:   fileHeader.Filename,
		Subject:    subject,
		Status:     datatypes.TextbookProcessing,
		UploadedAt: time.Now().UTC(),
	}
	if err := h.profiles.SaveTextbook(ctx, meta); err != nil {
		slog.Error("Failed to save textbook metadata", "error", err, "textbookId", textbookID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	go h.runIngest(meta, profile.Grade, text)

	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(endpoint, true)
	}
	slog.Info("Accepted textbook upload",
		"textbookId", textbookID,
		"studentId", studentID,
		"subject", subject,
		"bytes", len(content),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"textbook_id": textbookID,
		"status":      datatypes.TextbookProcessing,
	})
}

// runIngest chunks, embeds, and imports the textbook, then flips the
// metadata to ready or failed. Detached from the request context so a
// client disconnect cannot orphan a half-imported textbook.
func (h *TextbookHandler) runIngest(meta datatypes.TextbookMetadata, grade int, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	count, err := h.ingestor.Ingest(ctx, retrieval.IngestRequest{
		TextbookID: meta.TextbookID,
		StudentID:  meta.StudentID,
		Subject:    meta.Subject,
		Grade:      grade,
		Text:       text,
	})
	if err != nil {
		slog.Error("Textbook ingestion failed",
			"error", err,
			"textbookId", meta.TextbookID,
			"studentId", meta.StudentID,
		)
		meta.Status = datatypes.TextbookFailed
		meta.Error = "ingestion failed"
		if saveErr := h.profiles.SaveTextbook(ctx, meta); saveErr != nil {
			slog.Error("Failed to record ingestion failure", "error", saveErr, "textbookId", meta.TextbookID)
		}
		return
	}

	meta.Status = datatypes.TextbookReady
	meta.ChunkCount = count
	if err := h.profiles.SaveTextbook(ctx, meta); err != nil {
		slog.Error("Failed to record ingestion result", "error", err, "textbookId", meta.TextbookID)
		return
	}
	if err := h.profiles.SetTextbookUploaded(ctx, meta.StudentID, true); err != nil {
		slog.Error("Failed to flag textbook upload", "error", err, "studentId", meta.StudentID)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordTextbookChunks(meta.Subject, count)
	}
	slog.Info("Textbook ingested",
		"textbookId", meta.TextbookID,
		"studentId", meta.StudentID,
		"chunks", count,
	)
}

// HandleStatus reports where a textbook is in the ingestion lifecycle.
func (h *TextbookHandler) HandleStatus(c *gin.Context) {
	meta, err := h.profiles.GetTextbook(c.Request.Context(), c.Param("textbookId"))
	if err != nil {
		if errors.Is(err, store.ErrTextbookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "textbook not found"})
			return
		}
		slog.Error("Failed to load textbook metadata", "error", err, "textbookId", c.Param("textbookId"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load textbook"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// HandleList returns a student's uploaded textbooks with their
// ingestion state.
func (h *TextbookHandler) HandleList(c *gin.Context) {
	studentID := c.Param("studentId")
	if _, err := h.profiles.Get(studentID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	textbooks, err := h.profiles.ListTextbooks(c.Request.Context(), studentID)
	if err != nil {
		slog.Error("Failed to list textbooks", "error", err, "studentId", studentID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load textbooks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id": studentID,
		"textbooks":  textbooks,
		"count":      len(textbooks),
	})
}

// HandleDelete removes a textbook's chunks and metadata.
func (h *TextbookHandler) HandleDelete(c *gin.Context) {
	ctx := c.Request.Context()
	textbookID := c.Param("textbookId")

	meta, err := h.profiles.GetTextbook(ctx, textbookID)
	if err != nil {
		if errors.Is(err, store.ErrTextbookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "textbook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load textbook"})
		return
	}

	if h.ingestor != nil {
		if err := h.ingestor.DeleteTextbook(ctx, textbookID); err != nil {
			slog.Error("Failed to delete textbook chunks", "error", err, "textbookId", textbookID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete textbook"})
			return
		}
	}
	if err := h.profiles.DeleteTextbook(ctx, textbookID); err != nil {
		slog.Error("Failed to delete textbook metadata", "error", err, "textbookId", textbookID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete textbook"})
		return
	}

	slog.Info("Deleted textbook", "textbookId", textbookID, "studentId", meta.StudentID)
	c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_textbook_id": textbookID})
}
