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

// fallbackReviewScore is the fixed conservative score used when the
// review collaborator is unavailable. Below the default threshold, so
// an outage accepts the draft rather than looping on redirects.
const fallbackReviewScore = 0.6

const reviewerSystemPrompt = `You are an auditor responsible for risk assessment.
Your role is to evaluate betting strategies using the Kelly Criterion and risk management principles.

Evaluate the strategy and return:
1. A risk score from 0.0 (very safe) to 1.0 (very risky)
2. Whether to APPROVE or BACKTRACK (request revision)
3. Specific concerns if any

BACKTRACK if:
- The position size fraction exceeds 25%
- Confidence is below 50% but the position size is high
- Risk score exceeds the threshold
- Critical information is missing

Be conservative - it's better to revise a risky strategy than to approve a bad one.`

// Reviewer is the third pipeline stage and the conditional router.
//
// Description:
//
//	Scores the plan draft with the composite RiskScorer, informed by the
//	collaborator's qualitative verdict and the externally supplied risk
//	policy document. A score strictly above the policy threshold
//	redirects to the planner; otherwise the run terminates with a
//	synthesized final output. At the revision ceiling the draft is
//	force-accepted regardless of score.
type Reviewer struct {
	llm    llm.Client
	skill  *SkillSource
	score  RiskScorer
	policy Policy
	logger *slog.Logger
}

// NewReviewer creates the reviewer stage. A nil scorer uses
// DefaultRiskScorer; a nil skill source uses the built-in policy text.
func NewReviewer(llmClient llm.Client, skill *SkillSource, scorer RiskScorer, policy Policy, logger *slog.Logger) *Reviewer {
	if skill == nil {
		skill = NewSkillSource("", logger)
	}
	if scorer == nil {
		scorer = DefaultRiskScorer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{llm: llmClient, skill: skill, score: scorer, policy: policy, logger: logger}
}

// Name implements StageRunner.
func (r *Reviewer) Name() Stage { return StageReviewer }

// Execute implements StageRunner.
func (r *Reviewer) Execute(ctx context.Context, state RunState) Outcome {
	u := Update{}
	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StageReviewer,
		Thought:   "Beginning risk assessment of proposed strategy",
		Action:    "Initializing reviewer stage",
	})

	// Ceiling check comes first: at the limit the draft is accepted no
	// matter what it scores.
	if state.RevisionCount >= r.policy.RevisionCeiling {
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageReviewer,
			Thought: fmt.Sprintf("Maximum revision attempts reached (%d). Accepting current strategy despite risk.",
				r.policy.RevisionCeiling),
			Action: "Revision ceiling enforced",
		})
		u.NeedsRevision = boolPtr(false)
		u.FinalOutput = strPtr(fmt.Sprintf(
			"Strategy accepted after %d revisions. Exercise caution.", state.RevisionCount))
		return Outcome{Kind: OutcomeAdvance, Next: StageIdle, Update: u}
	}

	if state.PlanDraft == nil {
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageReviewer,
			Thought:   "No strategy to review. Cannot proceed.",
			Action:    "Missing plan draft - terminating with maximal risk",
		})
		u.QualityScore = floatPtr(1.0)
		u.NeedsRevision = boolPtr(false)
		u.FinalOutput = strPtr("No strategy available for recommendation.")
		return Outcome{Kind: OutcomeAdvance, Next: StageIdle, Update: u}
	}

	skillText := r.skill.Text()
	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StageReviewer,
		Thought:   "Loaded risk policy for evaluation",
		Action:    "Applying risk assessment framework",
	})

	draft := state.PlanDraft
	verdict, err := r.llm.Generate(ctx, reviewerSystemPrompt,
		buildReviewPrompt(draft, state.GatherResult, skillText), llm.GenerationParams{})

	var score float64
	if err != nil {
		r.logger.Warn("reviewer collaborator call failed, using conservative estimate",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()),
		)
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageReviewer,
			Thought:   fmt.Sprintf("Error during audit: %v", err),
			Action:    "Using conservative risk estimate",
		})
		score = fallbackReviewScore
	} else {
		if verdict != "" {
			u.Trace = append(u.Trace, TraceEntry{
				Timestamp: now(),
				Stage:     StageReviewer,
				Thought:   truncate(verdict, 500),
				Action:    "Risk evaluation performed",
			})
		}
		score = r.score(draft.Confidence, draft.PositionSizeFraction, verdict)

		threshold := "WITHIN"
		if score > r.policy.RiskThreshold {
			threshold = "EXCEEDS"
		}
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageReviewer,
			Thought:   fmt.Sprintf("Calculated risk score: %.0f%%", score*100),
			Action:    fmt.Sprintf("Risk threshold check: %s limits", threshold),
		})
	}

	u.QualityScore = floatPtr(score)

	// Strict comparison: a score exactly at the threshold is accepted.
	if score > r.policy.RiskThreshold {
		reason := fmt.Sprintf("Risk score %.0f%% exceeds acceptable threshold", score*100)
		u.Trace = append(u.Trace, TraceEntry{
			Timestamp: now(),
			Stage:     StageReviewer,
			Thought: fmt.Sprintf("Risk score %.0f%% exceeds threshold (%.0f%%). Requesting strategy revision.",
				score*100, r.policy.RiskThreshold*100),
			Action: "Redirecting to planner",
		})
		u.NeedsRevision = boolPtr(true)
		u.RevisionReason = strPtr(reason)
		u.RevisionCount = intPtr(state.RevisionCount + 1)
		return Outcome{Kind: OutcomeRedirect, Next: StagePlanner, Update: u}
	}

	u.Trace = append(u.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StageReviewer,
		Thought:   fmt.Sprintf("Strategy approved with risk score %.0f%%. Within acceptable limits.", score*100),
		Action:    "Audit complete - strategy approved",
	})
	u.NeedsRevision = boolPtr(false)
	u.RevisionReason = strPtr("")
	u.FinalOutput = strPtr(synthesizeFinalOutput(draft, state.GatherResult, score))

	return Outcome{Kind: OutcomeAdvance, Next: StageIdle, Update: u}
}

// buildReviewPrompt renders the strategy under review with the risk
// policy document appended.
func buildReviewPrompt(draft *PlanDraft, gr *GatherResult, skillText string) string {
	var sb strings.Builder
	sb.WriteString("## Strategy Under Review\n")
	fmt.Fprintf(&sb, "- **Recommendation**: %s\n", draft.Recommendation)
	fmt.Fprintf(&sb, "- **Confidence**: %.0f%%\n", draft.Confidence*100)
	if draft.PositionSizeFraction != nil {
		fmt.Fprintf(&sb, "- **Position Size Fraction**: %.2f\n", *draft.PositionSizeFraction)
	} else {
		sb.WriteString("- **Position Size Fraction**: Not specified\n")
	}
	fmt.Fprintf(&sb, "- **Rationale**: %s\n", draft.Rationale)

	sb.WriteString("\n## Scouting Context\n")
	fmt.Fprintf(&sb, "- **Racecourse**: %s\n", venueOrUnknown(gr))
	fmt.Fprintf(&sb, "- **Track Condition**: %s\n", conditionOrUnknown(gr))
	fmt.Fprintf(&sb, "- **Weather**: %s\n", weatherOrUnknown(gr))

	sb.WriteString("\n## Risk Policy Guidelines\n")
	sb.WriteString(skillText)
	sb.WriteString("\n\nPlease evaluate this strategy and provide your risk assessment.")
	return sb.String()
}

// synthesizeFinalOutput builds the terminal recommendation text.
func synthesizeFinalOutput(draft *PlanDraft, gr *GatherResult, score float64) string {
	size := 0.05
	if draft.PositionSizeFraction != nil {
		size = *draft.PositionSizeFraction
	}
	// The Kelly policy's bankroll ceiling binds the published stake even
	// when an oversized plan scored under the risk threshold.
	capped := size > maxPositionSize
	if capped {
		size = maxPositionSize
	}
	var sb strings.Builder
	sb.WriteString("## Keiba Oracle Recommendation\n\n")
	fmt.Fprintf(&sb, "**Strategy**: %s\n", draft.Recommendation)
	fmt.Fprintf(&sb, "**Confidence**: %.0f%%\n", draft.Confidence*100)
	fmt.Fprintf(&sb, "**Risk Score**: %.0f%%\n", score*100)
	if capped {
		fmt.Fprintf(&sb, "**Suggested Position Size**: %.1f%% of bankroll (capped from %.1f%%)\n\n",
			size*100, *draft.PositionSizeFraction*100)
	} else {
		fmt.Fprintf(&sb, "**Suggested Position Size**: %.1f%% of bankroll\n\n", size*100)
	}
	fmt.Fprintf(&sb, "**Summary**: %s\n\n", draft.Rationale)
	fmt.Fprintf(&sb, "**Racecourse**: %s\n", venueOrUnknown(gr))
	fmt.Fprintf(&sb, "**Conditions**: %s / %s\n\n", conditionOrUnknown(gr), weatherOrUnknown(gr))
	sb.WriteString("---\n*This recommendation is for educational purposes. Always gamble responsibly.*")
	return sb.String()
}

func venueOrUnknown(gr *GatherResult) string {
	if gr == nil {
		return unknownCondition
	}
	return gr.Venue
}

func conditionOrUnknown(gr *GatherResult) string {
	if gr == nil {
		return unknownCondition
	}
	return gr.SurfaceCondition
}

func weatherOrUnknown(gr *GatherResult) string {
	if gr == nil {
		return unknownCondition
	}
	return gr.Weather
}
