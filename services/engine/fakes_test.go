// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"

	"github.com/keibalabs/oracle/services/llm"
)

// fakeLLM scripts collaborator responses for stage tests.
type fakeLLM struct {
	generateText string
	generateErr  error
	// generateTexts, when non-empty, is consumed one entry per
	// Generate call before falling back to generateText.
	generateTexts []string

	toolsResp llm.Response
	toolsErr  error

	generateCalls []string // prompts seen by Generate
	toolsCalls    int      // number of GenerateWithTools calls
}

func (f *fakeLLM) Generate(ctx context.Context, system, prompt string, params llm.GenerationParams) (string, error) {
	f.generateCalls = append(f.generateCalls, prompt)
	if f.generateErr != nil {
		return "", f.generateErr
	}
	if len(f.generateTexts) > 0 {
		text := f.generateTexts[0]
		f.generateTexts = f.generateTexts[1:]
		return text, nil
	}
	return f.generateText, nil
}

func (f *fakeLLM) GenerateWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec, params llm.GenerationParams) (llm.Response, error) {
	f.toolsCalls++
	if f.toolsErr != nil {
		return llm.Response{}, f.toolsErr
	}
	return f.toolsResp, nil
}

// fakeSearch scripts the search collaborator.
type fakeSearch struct {
	conditionsResult string
	conditionsErr    error
	horseResult      string
	horseErr         error

	conditionQueries []string
	horseNames       []string
}

func (f *fakeSearch) SearchConditions(ctx context.Context, query string) (string, error) {
	f.conditionQueries = append(f.conditionQueries, query)
	if f.conditionsErr != nil {
		return "", f.conditionsErr
	}
	return f.conditionsResult, nil
}

func (f *fakeSearch) SearchHorse(ctx context.Context, horseName string) (string, error) {
	f.horseNames = append(f.horseNames, horseName)
	if f.horseErr != nil {
		return "", f.horseErr
	}
	return f.horseResult, nil
}

var errCollaboratorDown = errors.New("collaborator unavailable")
