// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/keibalabs/oracle/pkg/validation"
	"github.com/keibalabs/oracle/services/llm"
	"github.com/keibalabs/oracle/services/search"
)

// Tool names the gatherer exposes to the reasoning collaborator.
const (
	ToolSearchConditions = "search_racecourse_conditions"
	ToolSearchHorse      = "search_horse_info"
)

// sentinel values for fields the gatherer could not determine.
const (
	unknownVenue     = "Unknown Racecourse"
	unknownCondition = "Unknown"
)

// venueVocabulary is the known set of JRA racecourses. Matching is
// exact set membership against query and result text; first match wins.
var venueVocabulary = []string{
	"Tokyo", "Nakayama", "Kyoto", "Hanshin", "Chukyo",
	"Kokura", "Niigata", "Fukushima", "Sapporo", "Hakodate",
}

const gathererSystemPrompt = `You are a scout for Japanese horse racing analysis.
Your role is to gather information about racecourse conditions, weather, and horse data.

Use the available tools to search for information. Think step-by-step:
1. Analyze what information is needed based on the query
2. Use search tools to gather relevant data
3. Summarize your findings

Be thorough but efficient. Focus on:
- Current track conditions (turf/dirt, firmness)
- Weather conditions
- Recent race results at the venue
- Key horses mentioned in the query`

// Gatherer is the first pipeline stage.
//
// Description:
//
//	Obtains raw facts through the search collaborator, driven by tool
//	requests from the reasoning collaborator, and normalizes them into a
//	GatherResult. It never fails the run: on total collaborator outage
//	it emits an all-Unknown result and advances. Always transitions to
//	the planner.
type Gatherer struct {
	llm    llm.Client
	search search.Client
	policy Policy
	logger *slog.Logger
}

// NewGatherer creates the gatherer stage.
func NewGatherer(llmClient llm.Client, searchClient search.Client, policy Policy, logger *slog.Logger) *Gatherer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatherer{llm: llmClient, search: searchClient, policy: policy, logger: logger}
}

// Name implements StageRunner.
func (g *Gatherer) Name() Stage { return StageGatherer }

// Execute implements StageRunner.
func (g *Gatherer) Execute(ctx context.Context, state RunState) Outcome {
	u := Update{}
	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StageGatherer,
		Thought:   fmt.Sprintf("Starting information gathering for query: %s", state.Query),
		Action:    "Initializing gatherer stage",
	})

	tools := []llm.ToolSpec{
		{
			Name:        ToolSearchConditions,
			Description: "Search for Japanese racecourse conditions, weather, and track info",
			Params: []llm.ToolParam{
				{Name: "query", Description: "Search query about racecourse conditions", Required: true},
			},
		},
		{
			Name:        ToolSearchHorse,
			Description: "Search for specific horse information and racing history",
			Params: []llm.ToolParam{
				{Name: "horse_name", Description: "Name of the horse to search for", Required: true},
			},
		},
	}

	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StageGatherer,
		Thought:   "Analyzing query to determine what searches are needed",
		Action:    "Calling reasoning collaborator for search planning",
	})

	resp, err := g.llm.GenerateWithTools(ctx, []llm.Message{
		{Role: "system", Content: gathererSystemPrompt},
		{Role: "user", Content: "Query: " + state.Query},
	}, tools, llm.GenerationParams{})
	if err != nil {
		g.logger.Warn("gatherer collaborator call failed, using fallback result",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()),
		)
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageGatherer,
			Thought:   fmt.Sprintf("Error during scouting: %v", err),
			Action:    "Error recovery - using default data",
		})
		u.GatherResult = &GatherResult{
			Venue:            unknownVenue,
			SurfaceCondition: unknownCondition,
			Weather:          unknownCondition,
			RawFacts:         []RawFact{},
			Sources:          []string{},
		}
		return Outcome{Kind: OutcomeAdvance, Next: StagePlanner, Update: u}
	}

	if resp.Text != "" {
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageGatherer,
			Thought:   truncate(resp.Text, 500),
		})
	}

	var searchResults []string
	var sources []string
	var rawFacts []RawFact

	for _, req := range resp.ToolRequests {
		u.ToolInvocations = append(u.ToolInvocations, ToolInvocation{
			Timestamp: now(),
			Tool:      req.Name,
			Args:      req.Args,
			Stage:     StageGatherer,
		})
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageGatherer,
			Thought:   fmt.Sprintf("Executing tool: %s", req.Name),
			Action:    fmt.Sprintf("Tool call: %s(%s)", req.Name, formatArgs(req.Args)),
		})

		result, err := g.runTool(ctx, req, state.Query)
		if err != nil {
			u.Trace = append(u.Trace, TraceEntry{
				Timestamp:   now(),
				Stage:       StageGatherer,
				Thought:     fmt.Sprintf("Tool %s failed: %v", req.Name, err),
				Action:      "Continuing with remaining searches",
				Observation: "No results",
			})
			continue
		}

		searchResults = append(searchResults, result)
		sources = append(sources, extractSources(result)...)
		rawFacts = append(rawFacts, RawFact{
			"tool":    req.Name,
			"excerpt": truncate(result, 300),
		})

		u.Trace = append(u.Trace, TraceEntry{
			Timestamp:   now(),
			Stage:       StageGatherer,
			Thought:     "Received search results",
			Action:      fmt.Sprintf("Processed %s", req.Name),
			Observation: truncate(result, 300),
		})
	}

	combined := strings.Join(searchResults, "\n")
	result := normalizeGather(state.Query, combined)
	if rawFacts == nil {
		rawFacts = []RawFact{}
	}
	result.RawFacts = rawFacts
	result.Sources = capSources(sources, g.policy.SourceCap)

	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StageGatherer,
		Thought: fmt.Sprintf("Completed scouting. Found: %s, %s track, %s weather. %d sources collected.",
			result.Venue, result.SurfaceCondition, result.Weather, len(result.Sources)),
		Action: "Gathering complete - handing off to planner",
	})
	u.GatherResult = result

	return Outcome{Kind: OutcomeAdvance, Next: StagePlanner, Update: u}
}

// runTool dispatches one collaborator tool request.
func (g *Gatherer) runTool(ctx context.Context, req llm.ToolRequest, query string) (string, error) {
	if g.search == nil {
		return "", fmt.Errorf("search collaborator not configured")
	}
	switch req.Name {
	case ToolSearchConditions:
		q := req.Args["query"]
		if q == "" {
			q = query
		}
		return g.search.SearchConditions(ctx, q)
	case ToolSearchHorse:
		name := req.Args["horse_name"]
		if err := validation.ValidateHorseName(name); err != nil {
			return "", err
		}
		return g.search.SearchHorse(ctx, name)
	default:
		return "", fmt.Errorf("unknown tool %q", req.Name)
	}
}

// normalizeGather infers venue, surface condition, and weather from
// free text by exact vocabulary membership. First match wins; the
// default is the Unknown sentinel.
func normalizeGather(query, combined string) *GatherResult {
	queryLower := strings.ToLower(query)
	combinedLower := strings.ToLower(combined)

	venue := unknownVenue
	for _, v := range venueVocabulary {
		lower := strings.ToLower(v)
		if strings.Contains(queryLower, lower) || strings.Contains(combinedLower, lower) {
			venue = v + " Racecourse"
			break
		}
	}

	condition := unknownCondition
	switch {
	case strings.Contains(combinedLower, "good") || strings.Contains(combinedLower, "firm"):
		condition = "Good"
	case strings.Contains(combinedLower, "soft") || strings.Contains(combinedLower, "yielding"):
		condition = "Soft"
	case strings.Contains(combinedLower, "heavy"):
		condition = "Heavy"
	}

	weather := unknownCondition
	switch {
	case strings.Contains(combinedLower, "clear") || strings.Contains(combinedLower, "sunny"):
		weather = "Clear"
	case strings.Contains(combinedLower, "rain"):
		weather = "Rainy"
	case strings.Contains(combinedLower, "cloudy"):
		weather = "Cloudy"
	}

	return &GatherResult{
		Venue:            venue,
		SurfaceCondition: condition,
		Weather:          weather,
	}
}

// extractSources pulls provenance URIs out of "Source: <URI>" lines.
func extractSources(text string) []string {
	var sources []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "Source:") {
			uri := strings.TrimSpace(strings.TrimPrefix(line, "Source:"))
			if uri != "" {
				sources = append(sources, uri)
			}
		}
	}
	return sources
}

// capSources keeps the first n sources in encounter order.
func capSources(sources []string, n int) []string {
	if sources == nil {
		return []string{}
	}
	if len(sources) > n {
		sources = sources[:n]
	}
	return sources
}

func formatArgs(args map[string]string) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, args[k]))
	}
	return strings.Join(parts, ", ")
}

// truncate bounds a string to n bytes for trace entries.
// truncate cuts s to at most n bytes without splitting a rune, so
// truncated trace text stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
