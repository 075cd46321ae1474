// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// OllamaClient is a Client backed by a local Ollama server.
//
// Ollama has no native function calling on every model, so
// GenerateWithTools folds the conversation into a single prompt and
// returns a text-only Response. The gatherer tolerates that per the
// collaborator contract.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// NewOllamaClient builds a client from OLLAMA_BASE_URL and OLLAMA_MODEL.
func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if model == "" {
		slog.Warn("OLLAMA_MODEL not set, defaulting to gpt-oss")
		model = "gpt-oss"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

// Generate implements the Client interface.
func (o *OllamaClient) Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))
	slog.Debug("Generating text via Ollama", "model", o.model)

	options := make(map[string]any)
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}

	payload := ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		System:  system,
		Stream:  false,
		Options: options,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded ollamaGenerateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("unmarshal ollama response: %w", err)
	}
	return decoded.Response, nil
}

// GenerateWithTools implements the Client interface. The conversation
// is concatenated into a single prompt; no tool requests are returned.
func (o *OllamaClient) GenerateWithTools(ctx context.Context, messages []Message, _ []ToolSpec, params GenerationParams) (Response, error) {
	var system string
	var sb strings.Builder
	for _, m := range messages {
		if m.Role == "system" && system == "" {
			system = m.Content
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	text, err := o.Generate(ctx, system, sb.String(), params)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: text}, nil
}
