// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm defines the reasoning collaborator contract and its
// backends. The engine depends only on the Client interface; backends
// are selected at startup via LLM_BACKEND_TYPE.
package llm

import "context"

// GenerationParams tunes a single generation request.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Message is one role/content turn of a prompt.
type Message struct {
	// Role is "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the turn's text.
	Content string `json:"content"`
}

// ToolParam describes one argument of a callable tool.
type ToolParam struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolSpec describes a tool the model may request.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
}

// ToolRequest is the model's request to invoke a named tool.
type ToolRequest struct {
	// Name is the requested tool.
	Name string `json:"name"`

	// Args maps argument names to string values. Non-string argument
	// values are stringified by the backend.
	Args map[string]string `json:"args"`
}

// Response is a structured generation result. Either or both fields may
// be empty; callers must tolerate an empty or partial response.
type Response struct {
	// Text is the model's free-form output.
	Text string `json:"text"`

	// ToolRequests are function invocations the model asked for, in
	// order. Empty when the model answered in plain text.
	ToolRequests []ToolRequest `json:"tool_requests"`
}

// Client is the standard interface for any reasoning backend.
type Client interface {
	// Generate produces free-form text for a system+user prompt pair.
	Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error)

	// GenerateWithTools produces text and/or tool invocation requests.
	// Backends without native tool calling return a text-only Response.
	GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSpec, params GenerationParams) (Response, error)
}
