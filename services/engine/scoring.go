// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "strings"

// RiskScorer computes the reviewer's composite risk score.
//
// Inputs are the plan's confidence, its position size fraction (nil when
// absent), and the collaborator's free-text verdict. The output is a
// bounded float in [0, 1]. The keyword heuristics in the default
// implementation are a replaceable policy, not a contract; installations
// may swap in their own scorer.
type RiskScorer func(confidence float64, positionSize *float64, verdict string) float64

// PlanScorer extracts confidence, position size, and a recommendation
// from the planner collaborator's free-text analysis. Deterministic: the
// same text always yields the same values.
type PlanScorer func(analysis string) (confidence float64, positionSize float64, recommendation string)

const (
	// baseRisk is the composite score's starting point.
	baseRisk = 0.3

	// maxPositionSize is the domain ceiling on bankroll fraction,
	// enforced by the reviewer rather than the PlanDraft type.
	maxPositionSize = 0.25
)

// DefaultRiskScorer is the reference composite scoring policy.
//
// Description:
//
//	Starts from a fixed base risk, adds a penalty inversely proportional
//	to confidence across two threshold tiers, adds a penalty
//	proportional to position size across three tiers, adjusts by a
//	bounded delta from the verdict's sentiment, and clamps to [0, 1].
func DefaultRiskScorer(confidence float64, positionSize *float64, verdict string) float64 {
	score := baseRisk

	// Lower confidence raises risk.
	switch {
	case confidence < 0.5:
		score += 0.30
	case confidence < 0.7:
		score += 0.15
	}

	// Larger stakes raise risk.
	if positionSize != nil {
		switch {
		case *positionSize > 0.20:
			score += 0.30
		case *positionSize > 0.15:
			score += 0.20
		case *positionSize > 0.10:
			score += 0.10
		}
	}

	// Bounded adjustment from the qualitative verdict.
	v := strings.ToLower(verdict)
	if strings.Contains(v, "backtrack") || strings.Contains(v, "reject") || strings.Contains(v, "high risk") {
		score += 0.20
	}
	if strings.Contains(v, "approve") || strings.Contains(v, "acceptable") {
		score -= 0.10
	}

	return clamp01(score)
}

// DefaultPlanScorer is the reference plan-extraction policy.
//
// Description:
//
//	Maps sentiment keywords in the analysis to confidence and sizing
//	tiers, and picks a running-style recommendation. The word lists
//	mirror the pipeline's original reference heuristic. "moderate" feeds
//	both the confidence and the sizing tier.
func DefaultPlanScorer(analysis string) (float64, float64, string) {
	a := strings.ToLower(analysis)

	confidence := 0.65
	switch {
	case strings.Contains(a, "high confidence") || strings.Contains(a, "strongly"):
		confidence = 0.80
	case strings.Contains(a, "low confidence") || strings.Contains(a, "uncertain"):
		confidence = 0.45
	case strings.Contains(a, "moderate") || strings.Contains(a, "reasonable"):
		confidence = 0.65
	}

	size := 0.10
	switch {
	case strings.Contains(a, "conservative"):
		size = 0.05
	case strings.Contains(a, "aggressive"):
		size = 0.15
	case strings.Contains(a, "moderate"):
		size = 0.10
	}

	recommendation := "Front-runner strategy recommended"
	if strings.Contains(a, "closer") || strings.Contains(a, "come from behind") {
		recommendation = "Closer/stalker strategy recommended"
	}

	return confidence, size, recommendation
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
