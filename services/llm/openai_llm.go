// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("oracle.llm")

// OpenAIClient is a Client backed by the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client from OPENAI_API_KEY and OPENAI_MODEL.
//
// Outputs:
//
//	*OpenAIClient - The configured client.
//	error - Non-nil if no API key is available.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err != nil {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		apiKey = strings.TrimSpace(string(apiKeyBytes))
		slog.Info("Read the OpenAI API key from container secrets")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Generate implements the Client interface.
func (o *OpenAIClient) Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	if system == "" {
		system = "You are a helpful assistant."
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	applyParams(&req, params)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithTools implements the Client interface.
//
// Description:
//
//	Sends the conversation with function definitions attached and maps
//	any tool calls in the response back to ToolRequests. An empty or
//	partial response is returned as-is, never as an error: the caller's
//	contract requires tolerating it.
func (o *OpenAIClient) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSpec, params GenerationParams) (Response, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.GenerateWithTools")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.tool_count", len(tools)),
	)

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
		Tools:    make([]openai.Tool, 0, len(tools)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolParamsSchema(t),
			},
		})
	}
	applyParams(&req, params)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return Response{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		// Empty responses are legal per the collaborator contract.
		return Response{}, nil
	}

	msg := resp.Choices[0].Message
	out := Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		out.ToolRequests = append(out.ToolRequests, ToolRequest{
			Name: tc.Function.Name,
			Args: decodeToolArgs(tc.Function.Arguments),
		})
	}
	return out, nil
}

// applyParams copies generation parameters onto a request.
func applyParams(req *openai.ChatCompletionRequest, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
}

// toolParamsSchema builds the JSON-schema parameter object the API
// expects from a ToolSpec.
func toolParamsSchema(t ToolSpec) map[string]any {
	props := make(map[string]any, len(t.Params))
	required := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		props[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// decodeToolArgs parses a JSON argument payload into string values.
// Malformed payloads yield an empty map rather than an error; the
// stage treats missing arguments with its own defaults.
func decodeToolArgs(raw string) map[string]string {
	args := make(map[string]string)
	if raw == "" {
		return args
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		slog.Warn("Could not decode tool call arguments", "error", err)
		return args
	}
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			args[k] = val
		default:
			args[k] = fmt.Sprint(val)
		}
	}
	return args
}
