// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"github.com/vidyasetu/vidyasetu/services/llm"
	"github.com/vidyasetu/vidyasetu/services/tutor/challenge"
	"github.com/vidyasetu/vidyasetu/services/tutor/handlers"
	"github.com/vidyasetu/vidyasetu/services/tutor/retrieval"
	"github.com/vidyasetu/vidyasetu/services/tutor/safety"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"
)

// Deps carries the wired services the route table hands to handlers.
//
// Ingestor and SpeechAPI may be nil (lightweight mode / no OpenAI key);
// the affected endpoints then degrade or are not registered.
type Deps struct {
	Profiles     *store.ProfileStore
	Answerer     handlers.AnswerPipeline
	SafetyEngine *safety.Engine
	Generator    *challenge.Generator
	LLMClient    llm.LLMClient
	Ingestor     *retrieval.Ingestor
	SpeechAPI    *openai.Client
}

// SetupRoutes registers the tutor API on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)

	chatHandler := handlers.NewChatStreamHandler(deps.Answerer, deps.Profiles, deps.SafetyEngine)
	textbookHandler := handlers.NewTextbookHandler(deps.Profiles, deps.Ingestor)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/auth/login", handlers.HandleLogin(deps.Profiles))

		// EventSource clients use GET; the POST variant exists for
		// clients that can send a body.
		v1.GET("/chat/stream", chatHandler.HandleChatStream)
		v1.POST("/chat/stream", chatHandler.HandleChatStream)
		v1.GET("/chat/history/:studentId", handlers.HandleChatHistory(deps.Profiles))
		v1.DELETE("/chat/history/:studentId", handlers.HandleClearHistory(deps.Profiles))

		profile := v1.Group("/profile")
		{
			profile.GET("/:studentId", handlers.HandleGetProfile(deps.Profiles))
			profile.PUT("/:studentId", handlers.HandleUpdateProfile(deps.Profiles))
			profile.GET("/:studentId/stats", handlers.HandleStats(deps.Profiles))
			profile.GET("/:studentId/textbooks", textbookHandler.HandleList)
			profile.POST("/games/submit", handlers.HandleGameSubmit(deps.Profiles))
		}

		v1.GET("/challenges", handlers.HandleGetChallenge(deps.Generator))

		textbooks := v1.Group("/textbooks")
		{
			textbooks.POST("", textbookHandler.HandleUpload)
			textbooks.GET("/:textbookId/status", textbookHandler.HandleStatus)
			textbooks.DELETE("/:textbookId", textbookHandler.HandleDelete)
		}

		v1.POST("/feedback", handlers.HandleSubmitFeedback(deps.Profiles))
		v1.GET("/feedback/:studentId", handlers.HandleListFeedback(deps.Profiles))
		v1.GET("/satisfaction/:studentId", handlers.HandleSatisfaction(deps.Profiles))
		v1.GET("/analytics/:studentId", handlers.HandleAnalytics(deps.Profiles))

		v1.POST("/generate/slides", handlers.HandleSlideOutline(deps.LLMClient))
		v1.GET("/video/search", handlers.HandleVideoSearch(deps.Profiles))

		if deps.SpeechAPI != nil {
			speechHandler := handlers.NewSpeechHandler(deps.SpeechAPI)
			speech := v1.Group("/speech")
			{
				speech.POST("/transcriptions", speechHandler.HandleTranscription)
				speech.POST("/speech", speechHandler.HandleSpeech)
			}
		}
	}
}
