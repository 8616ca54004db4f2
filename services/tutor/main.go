// Copyright (C) 2026 VidyaSetu AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vidyasetu/vidyasetu/services/llm"
	"github.com/vidyasetu/vidyasetu/services/tutor/challenge"
	"github.com/vidyasetu/vidyasetu/services/tutor/observability"
	"github.com/vidyasetu/vidyasetu/services/tutor/pipeline"
	"github.com/vidyasetu/vidyasetu/services/tutor/retrieval"
	"github.com/vidyasetu/vidyasetu/services/tutor/routes"
	"github.com/vidyasetu/vidyasetu/services/tutor/safety"
	"github.com/vidyasetu/vidyasetu/services/tutor/store"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "vidyasetu-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("tutor-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient connects to the vector index, or returns nil for
// lightweight mode when WEAVIATE_SERVICE_URL is absent or unusable.
func newWeaviateClient() *weaviate.Client {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Trim quotes and whitespace in case the container runtime passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running in lightweight mode (general knowledge answers only).")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running in lightweight mode.",
			"url", weaviateURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	retrieval.EnsureSchema(client)
	return client
}

func main() {
	port := os.Getenv("TUTOR_PORT")
	if port == "" {
		port = "8000"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	safetyEngine, err := safety.NewEngine()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the safety engine: %v", err)
	}

	log.Println("Configuring the LLM client")
	var llmClient llm.LLMClient
	var openaiAPI *openai.Client

	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai":
		client, clientErr := llm.NewOpenAIClient()
		if clientErr != nil {
			log.Fatalf("Failed to initialize LLM client: %v", clientErr)
		}
		llmClient = client
		openaiAPI = client.API()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		client, clientErr := llm.NewOllamaClient()
		if clientErr != nil {
			log.Fatalf("Failed to initialize LLM client: %v", clientErr)
		}
		llmClient = client
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to openai")
		client, clientErr := llm.NewOpenAIClient()
		if clientErr != nil {
			log.Fatalf("Failed to initialize LLM client: %v", clientErr)
		}
		llmClient = client
		openaiAPI = client.API()
	}

	// Embeddings and speech ride the OpenAI API even when generation
	// runs on Ollama, as long as a key is configured.
	if openaiAPI == nil {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			openaiAPI = openai.NewClient(apiKey)
			slog.Info("OpenAI API configured for embeddings and speech")
		} else {
			slog.Warn("No OpenAI API key. Textbook retrieval and speech endpoints are disabled.")
		}
	}

	// --- Profile persistence ---
	var persister store.Persister
	if dbPath := os.Getenv("SQLITE_DB_PATH"); dbPath != "" {
		persister, err = store.NewSQLitePersister(dbPath)
		if err != nil {
			log.Fatalf("FATAL: Could not open the profile database: %v", err)
		}
		slog.Info("Using SQLite persistence", "path", dbPath)
	} else {
		slog.Warn("SQLITE_DB_PATH not set, profiles will not survive restarts")
		persister = store.NewMemoryPersister()
	}

	profiles, err := store.NewProfileStore(context.Background(), persister)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the profile store: %v", err)
	}
	defer profiles.Close()

	// --- Retrieval (lightweight mode when Weaviate or embeddings are absent) ---
	var retriever retrieval.Retriever = retrieval.NoRetriever{}
	var ingestor *retrieval.Ingestor
	if weaviateClient := newWeaviateClient(); weaviateClient != nil && openaiAPI != nil {
		embedder := retrieval.NewOpenAIEmbedder(openaiAPI)
		retriever = retrieval.NewWeaviateRetriever(weaviateClient, embedder)
		ingestor = retrieval.NewIngestor(weaviateClient, embedder)
	}

	council := pipeline.NewCouncil(llmClient, retriever, safetyEngine)
	generator := challenge.NewGenerator(llmClient)

	router := gin.Default()
	router.Use(otelgin.Middleware("tutor-service"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.SetupRoutes(router, routes.Deps{
		Profiles:     profiles,
		Answerer:     council,
		SafetyEngine: safetyEngine,
		Generator:    generator,
		LLMClient:    llmClient,
		Ingestor:     ingestor,
		SpeechAPI:    openaiAPI,
	})

	log.Println("Starting the tutor server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
