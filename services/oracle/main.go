// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
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
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/keibalabs/oracle/services/engine"
	"github.com/keibalabs/oracle/services/engine/checkpoint"
	"github.com/keibalabs/oracle/services/llm"
	"github.com/keibalabs/oracle/services/oracle/datatypes"
	"github.com/keibalabs/oracle/services/oracle/routes"
	"github.com/keibalabs/oracle/services/search"

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
		otelEndpoint = "oracle-otel-collector:4317"
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
		resource.WithAttributes(semconv.ServiceNameKey.String("oracle-service")))
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

func main() {
	port := os.Getenv("ORACLE_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Run policy ---
	policy := engine.DefaultPolicy()
	if path := os.Getenv("ORACLE_POLICY_PATH"); path != "" {
		policy, err = engine.LoadPolicy(path)
		if err != nil {
			log.Fatalf("failed to load run policy from %s: %v", path, err)
		}
		slog.Info("loaded run policy", "path", path)
	}

	// --- LLM backend ---
	log.Println("Configuring the LLM Client")
	var llmClient llm.Client
	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai":
		llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		llmClient, err = llm.NewOllamaClient()
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	// --- Search backend (optional) ---
	var searchClient search.Client
	tavily, err := search.NewTavilyClient()
	if err != nil {
		slog.Warn("search collaborator unavailable, runs will use fallback scouting data",
			"error", err)
	} else {
		searchClient = tavily
	}

	// --- Risk policy skill ---
	skill := engine.NewSkillSource(os.Getenv("ORACLE_SKILL_PATH"), logger)
	skillCtx, skillCancel := context.WithCancel(context.Background())
	defer skillCancel()
	go func() {
		if err := skill.Watch(skillCtx); err != nil {
			slog.Warn("skill watcher stopped", "error", err)
		}
	}()

	// --- Checkpoint store ---
	var store engine.Store
	if dir := os.Getenv("ORACLE_CHECKPOINT_DIR"); dir != "" {
		store, err = checkpoint.NewBadgerStore(checkpoint.DefaultBadgerConfig(dir))
		if err != nil {
			log.Fatalf("Failed to open checkpoint store at %s: %v", dir, err)
		}
		slog.Info("using durable checkpoint store", "dir", dir)
	} else {
		store = checkpoint.NewMemoryStore()
		slog.Info("ORACLE_CHECKPOINT_DIR not set, using in-memory checkpoint store")
	}
	defer store.Close()

	// --- Engine ---
	eng, err := engine.NewEngine(store, policy, logger,
		engine.NewGatherer(llmClient, searchClient, policy, logger),
		engine.NewPlanner(llmClient, nil, logger),
		engine.NewReviewer(llmClient, skill, nil, policy, logger),
	)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	status := func() datatypes.HealthResponse {
		return datatypes.HealthResponse{
			Status:           "ok",
			LLMConfigured:    llmClient != nil,
			SearchConfigured: searchClient != nil,
			SkillLoaded:      skill.Text() != "",
		}
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("oracle-service"))

	routes.SetupRoutes(router, eng, store, status)
	log.Println("Starting the oracle server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
