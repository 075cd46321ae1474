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
	"strings"

	"github.com/keibalabs/oracle/services/llm"
)

const plannerSystemPrompt = `You are a strategist for Japanese horse racing analysis.
Your role is to analyze the scouting data and formulate a betting strategy.

Think deeply and systematically about:
1. How track conditions affect different running styles
2. Weather impact on race dynamics
3. Historical patterns at this racecourse
4. Risk factors to consider

Provide your analysis in a structured format:
- Recommended approach (e.g., favor front-runners, closers, etc.)
- Key factors influencing the recommendation
- Confidence level (0.0 to 1.0)
- Suggested position size fraction for bet sizing (0.0 to 0.25 max)

Be explicit about your reasoning. Every assumption should be stated.`

// Planner is the second pipeline stage.
//
// Description:
//
//	Derives a PlanDraft from the gather result through the reasoning
//	collaborator, extracting confidence and position size with a
//	deterministic PlanScorer. If the gather result is absent (an engine
//	contract violation, since the gatherer always runs first) it records
//	the violation and advances with a null draft rather than raising, so
//	the pipeline never deadlocks. Always transitions to the reviewer.
type Planner struct {
	llm    llm.Client
	score  PlanScorer
	logger *slog.Logger
}

// NewPlanner creates the planner stage. A nil scorer uses
// DefaultPlanScorer.
func NewPlanner(llmClient llm.Client, scorer PlanScorer, logger *slog.Logger) *Planner {
	if scorer == nil {
		scorer = DefaultPlanScorer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{llm: llmClient, score: scorer, logger: logger}
}

// Name implements StageRunner.
func (p *Planner) Name() Stage { return StagePlanner }

// Execute implements StageRunner.
func (p *Planner) Execute(ctx context.Context, state RunState) Outcome {
	u := Update{}
	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StagePlanner,
		Thought:   "Received scouting data. Beginning strategic analysis.",
		Action:    "Initializing planner stage",
	})

	if state.GatherResult == nil {
		p.logger.Warn("planner invoked without gather result", slog.String("run_id", state.RunID))
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StagePlanner,
			Thought:   "No scouting data available. Cannot proceed with analysis.",
			Action:    "Missing gather result - advancing with null draft",
		})
		u.SetPlanDraft = true
		return Outcome{Kind: OutcomeAdvance, Next: StageReviewer, Update: u}
	}

	gr := state.GatherResult
	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StagePlanner,
		Thought:   fmt.Sprintf("Analyzing scouting report for %s", gr.Venue),
		Action:    "Processing track and weather conditions",
	})

	prompt := buildPlannerPrompt(state.Query, gr, state.RevisionReason)

	analysis, err := p.llm.Generate(ctx, plannerSystemPrompt, prompt, llm.GenerationParams{})
	if err != nil {
		p.logger.Warn("planner collaborator call failed, using fallback draft",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()),
		)
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StagePlanner,
			Thought:   fmt.Sprintf("Error during strategic analysis: %v", err),
			Action:    "Using fallback strategy",
		})
		u.SetPlanDraft = true
		u.PlanDraft = fallbackPlanDraft()
		return Outcome{Kind: OutcomeAdvance, Next: StageReviewer, Update: u}
	}

	if analysis != "" {
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StagePlanner,
			Thought:   truncate(analysis, 600),
			Action:    "Strategy formulation complete",
		})
	}

	confidence, size, recommendation := p.score(analysis)
	draft := &PlanDraft{
		Recommendation:       recommendation,
		Confidence:           confidence,
		Rationale:            planRationale(analysis),
		PositionSizeFraction: floatPtr(size),
	}
	u.SetPlanDraft = true
	u.PlanDraft = draft

	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StagePlanner,
		Thought: fmt.Sprintf("Strategy formulated: %s with %.0f%% confidence. Position size fraction: %.2f",
			recommendation, confidence*100, size),
		Action: "Passing to reviewer for risk assessment",
	})

	return Outcome{Kind: OutcomeAdvance, Next: StageReviewer, Update: u}
}

// buildPlannerPrompt renders the scouting report for the collaborator.
// When the reviewer redirected here, the revision reason is included so
// the new draft addresses it.
func buildPlannerPrompt(query string, gr *GatherResult, revisionReason string) string {
	var sb strings.Builder
	sb.WriteString("## Original Query\n")
	sb.WriteString(query)
	sb.WriteString("\n\n## Scouting Report\n")
	fmt.Fprintf(&sb, "- **Racecourse**: %s\n", gr.Venue)
	fmt.Fprintf(&sb, "- **Track Condition**: %s\n", gr.SurfaceCondition)
	fmt.Fprintf(&sb, "- **Weather**: %s\n", gr.Weather)
	if len(gr.Sources) > 0 {
		fmt.Fprintf(&sb, "- **Sources**: %s\n", strings.Join(gr.Sources, ", "))
	} else {
		sb.WriteString("- **Sources**: None\n")
	}
	if revisionReason != "" {
		sb.WriteString("\n## Revision Requested\n")
		sb.WriteString("A previous draft was rejected by the risk reviewer: ")
		sb.WriteString(revisionReason)
		sb.WriteString("\nPropose a more conservative strategy.\n")
	}
	sb.WriteString("\nPlease analyze this situation and provide your strategic recommendation.")
	return sb.String()
}

// fallbackPlanDraft is the deterministic conservative draft returned on
// collaborator failure.
func fallbackPlanDraft() *PlanDraft {
	return &PlanDraft{
		Recommendation:       "Conservative approach - insufficient data",
		Confidence:           0.40,
		Rationale:            "Unable to complete full analysis. Recommending conservative approach.",
		PositionSizeFraction: floatPtr(0.02),
	}
}

// planRationale extracts the draft's rationale from the analysis text.
func planRationale(analysis string) string {
	if analysis == "" {
		return "Analysis complete"
	}
	return truncate(analysis, 300)
}
