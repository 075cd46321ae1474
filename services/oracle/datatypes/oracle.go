// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request and response shapes for the
// oracle HTTP API.
package datatypes

import "github.com/keibalabs/oracle/services/engine"

// RunRequest starts (or resumes) an oracle run.
type RunRequest struct {
	// Query is the user's racing question. Required for new runs;
	// resumes of an existing checkpoint may omit it, the stored query
	// wins either way.
	Query string `json:"query"`

	// RunID resumes an existing run when it names a checkpoint.
	// Optional; a fresh ID is generated when empty.
	RunID string `json:"run_id,omitempty"`
}

// RunResponse is the terminal snapshot of a completed run.
type RunResponse struct {
	RunID         string       `json:"run_id"`
	FinalOutput   string       `json:"final_output"`
	QualityScore  float64      `json:"quality_score"`
	RevisionCount int          `json:"revision_count"`
	ActiveStage   engine.Stage `json:"active_stage"`

	// Trace is the full reasoning audit trail.
	Trace []engine.TraceEntry `json:"trace"`

	// ToolInvocations records every external tool call made.
	ToolInvocations []engine.ToolInvocation `json:"tool_invocations"`
}

// RunListResponse lists checkpointed run IDs.
type RunListResponse struct {
	Runs []string `json:"runs"`
}

// HealthResponse reports readiness of the server's collaborators.
type HealthResponse struct {
	Status           string `json:"status"`
	LLMConfigured    bool   `json:"llm_configured"`
	SearchConfigured bool   `json:"search_configured"`
	SkillLoaded      bool   `json:"skill_loaded"`
}

// ErrorResponse is the uniform error envelope for all API failures.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorResponse wraps a message in the standard envelope.
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}

// FromRunState projects a run snapshot into the API response shape.
func FromRunState(state engine.RunState) RunResponse {
	return RunResponse{
		RunID:           state.RunID,
		FinalOutput:     state.FinalOutput,
		QualityScore:    state.QualityScore,
		RevisionCount:   state.RevisionCount,
		ActiveStage:     state.ActiveStage,
		Trace:           state.Trace,
		ToolInvocations: state.ToolInvocations,
	}
}
