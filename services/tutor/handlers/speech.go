// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
)

// maxAudioUploadBytes caps transcription uploads (25MB, the upstream
// API limit).
const maxAudioUploadBytes = 25 << 20

// SpeechHandler proxies speech-to-text and text-to-speech to the OpenAI
// audio API so client devices never hold the API key.
type SpeechHandler struct {
	api *openai.Client
}

// NewSpeechHandler creates a SpeechHandler. Panics on a nil client.
func NewSpeechHandler(api *openai.Client) *SpeechHandler {
	if api == nil {
		panic("NewSpeechHandler: api must not be nil")
	}
	return &SpeechHandler{api: api}
}

// HandleTranscription transcribes an uploaded audio clip.
//
// Multipart form with an "audio" file field (webm, wav, mp3, m4a, ogg).
// Returns {"transcript": "..."}.
func (h *SpeechHandler) HandleTranscription(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioUploadBytes)

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio field is required and must be under 25MB"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read audio"})
		return
	}
	defer file.Close()

	resp, err := h.api.CreateTranscription(c.Request.Context(), openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: fileHeader.Filename,
		Reader:   file,
		Language: "en",
	})
	if err != nil {
		slog.Error("Transcription failed", "error", err, "filename", fileHeader.Filename)
		c.JSON(http.StatusBadGateway, gin.H{"error": "transcription failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript": strings.TrimSpace(resp.Text)})
}

// speechRequest asks for spoken audio of one text.
type speechRequest struct {
	Text string `json:"text"`
}

// HandleSpeech converts text to spoken audio.
//
// Returns the WAV bytes directly; the client plays them as-is.
func (h *SpeechHandler) HandleSpeech(c *gin.Context) {
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	resp, err := h.api.CreateSpeech(c.Request.Context(), openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          req.Text,
		Voice:          openai.VoiceNova,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		slog.Error("Speech synthesis failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "speech synthesis failed"})
		return
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		slog.Error("Failed to read synthesized audio", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "speech synthesis failed"})
		return
	}

	c.Data(http.StatusOK, "audio/wav", audio)
}
