// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"strings"
	"testing"
)

func reviewedState(confidence float64, size float64) RunState {
	state := NewRunState("run-1", "Nakayama feature?")
	state.ActiveStage = StageReviewer
	state.GatherResult = &GatherResult{
		Venue:            "Nakayama Racecourse",
		SurfaceCondition: "Good",
		Weather:          "Clear",
		RawFacts:         []RawFact{},
		Sources:          []string{},
	}
	state.PlanDraft = &PlanDraft{
		Recommendation:       "Front-runner strategy recommended",
		Confidence:           confidence,
		Rationale:            "firm going favors speed",
		PositionSizeFraction: floatPtr(size),
	}
	return state
}

func TestReviewer_ApprovesLowRisk(t *testing.T) {
	client := &fakeLLM{generateText: "APPROVE. The plan is sound and the risk is acceptable."}
	r := NewReviewer(client, nil, nil, DefaultPolicy(), nil)

	out := r.Execute(context.Background(), reviewedState(0.80, 0.05))

	if out.Kind != OutcomeAdvance || out.Next != StageIdle {
		t.Fatalf("outcome = %s -> %s, want advance -> idle", out.Kind, out.Next)
	}
	if out.Update.FinalOutput == nil || *out.Update.FinalOutput == "" {
		t.Fatal("approval must synthesize a final output")
	}
	if out.Update.NeedsRevision == nil || *out.Update.NeedsRevision {
		t.Error("approval must clear NeedsRevision")
	}
	// base 0.3, no penalties, approve verdict -0.1 = 0.2
	if out.Update.QualityScore == nil || !almostEqual(*out.Update.QualityScore, 0.2) {
		t.Errorf("QualityScore = %v, want 0.2", out.Update.QualityScore)
	}
	final := *out.Update.FinalOutput
	if !strings.Contains(final, "Front-runner strategy recommended") {
		t.Error("final output must carry the recommendation")
	}
	if !strings.Contains(final, "Nakayama Racecourse") {
		t.Error("final output must carry the venue")
	}
	if !strings.Contains(final, "gamble responsibly") {
		t.Error("final output must carry the responsible gambling footer")
	}
}

func TestReviewer_RedirectsHighRisk(t *testing.T) {
	client := &fakeLLM{generateText: "BACKTRACK. This is a high risk position."}
	r := NewReviewer(client, nil, nil, DefaultPolicy(), nil)

	// confidence 0.45 (+0.30), size 0.22 (+0.30), backtrack verdict
	// (+0.20): total 1.0, above the 0.7 threshold.
	out := r.Execute(context.Background(), reviewedState(0.45, 0.22))

	if out.Kind != OutcomeRedirect || out.Next != StagePlanner {
		t.Fatalf("outcome = %s -> %s, want redirect -> planner", out.Kind, out.Next)
	}
	if out.Update.NeedsRevision == nil || !*out.Update.NeedsRevision {
		t.Error("redirect must set NeedsRevision")
	}
	if out.Update.RevisionReason == nil || *out.Update.RevisionReason == "" {
		t.Error("redirect must carry a revision reason")
	}
	if out.Update.RevisionCount == nil || *out.Update.RevisionCount != 1 {
		t.Errorf("RevisionCount = %v, want 1", out.Update.RevisionCount)
	}
	if out.Update.FinalOutput != nil {
		t.Error("redirect must not set a final output")
	}
}

// A score exactly at the threshold is accepted; the comparison is
// strictly greater-than.
func TestReviewer_ThresholdBoundaryAccepts(t *testing.T) {
	r := NewReviewer(&fakeLLM{}, nil,
		func(confidence float64, positionSize *float64, verdict string) float64 { return 0.7 },
		DefaultPolicy(), nil)

	out := r.Execute(context.Background(), reviewedState(0.80, 0.05))

	if out.Kind != OutcomeAdvance || out.Next != StageIdle {
		t.Fatalf("score 0.7 must be accepted, got %s -> %s", out.Kind, out.Next)
	}

	r = NewReviewer(&fakeLLM{}, nil,
		func(confidence float64, positionSize *float64, verdict string) float64 { return 0.7000001 },
		DefaultPolicy(), nil)

	out = r.Execute(context.Background(), reviewedState(0.80, 0.05))
	if out.Kind != OutcomeRedirect {
		t.Fatal("score just above 0.7 must redirect")
	}
}

func TestReviewer_CeilingForcesAcceptance(t *testing.T) {
	// The scorer would redirect forever; the ceiling overrides it.
	r := NewReviewer(&fakeLLM{}, nil,
		func(confidence float64, positionSize *float64, verdict string) float64 { return 0.99 },
		DefaultPolicy(), nil)

	state := reviewedState(0.45, 0.22)
	state.RevisionCount = 3
	state.NeedsRevision = true

	out := r.Execute(context.Background(), state)

	if out.Kind != OutcomeAdvance || out.Next != StageIdle {
		t.Fatalf("outcome = %s -> %s, want forced acceptance", out.Kind, out.Next)
	}
	if out.Update.FinalOutput == nil ||
		!strings.Contains(*out.Update.FinalOutput, "accepted after 3 revisions") {
		t.Errorf("FinalOutput = %v, want ceiling acceptance message", out.Update.FinalOutput)
	}
	// The collaborator must not even be consulted at the ceiling.
	if out.Update.QualityScore != nil {
		t.Error("forced acceptance must not rescore the draft")
	}
}

func TestReviewer_MissingPlanTerminatesMaximalRisk(t *testing.T) {
	client := &fakeLLM{}
	r := NewReviewer(client, nil, nil, DefaultPolicy(), nil)

	state := NewRunState("run-1", "q")
	state.ActiveStage = StageReviewer

	out := r.Execute(context.Background(), state)

	if out.Kind != OutcomeAdvance || out.Next != StageIdle {
		t.Fatalf("outcome = %s -> %s, want advance -> idle", out.Kind, out.Next)
	}
	if out.Update.QualityScore == nil || *out.Update.QualityScore != 1.0 {
		t.Errorf("QualityScore = %v, want maximal 1.0", out.Update.QualityScore)
	}
	if out.Update.FinalOutput == nil ||
		!strings.Contains(*out.Update.FinalOutput, "No strategy available") {
		t.Errorf("FinalOutput = %v", out.Update.FinalOutput)
	}
	if len(client.generateCalls) != 0 {
		t.Error("collaborator must not be called without a draft")
	}
}

func TestReviewer_LLMFailureUsesConservativeScore(t *testing.T) {
	r := NewReviewer(&fakeLLM{generateErr: errCollaboratorDown}, nil, nil, DefaultPolicy(), nil)

	out := r.Execute(context.Background(), reviewedState(0.80, 0.05))

	// 0.6 is below the 0.7 threshold, so the outage accepts the draft.
	if out.Update.QualityScore == nil || *out.Update.QualityScore != 0.6 {
		t.Errorf("QualityScore = %v, want the fixed 0.6 estimate", out.Update.QualityScore)
	}
	if out.Kind != OutcomeAdvance || out.Next != StageIdle {
		t.Fatalf("outcome = %s -> %s, want acceptance", out.Kind, out.Next)
	}
}

func TestReviewer_SkillTextReachesPrompt(t *testing.T) {
	client := &fakeLLM{generateText: "approve"}
	r := NewReviewer(client, nil, nil, DefaultPolicy(), nil)

	r.Execute(context.Background(), reviewedState(0.80, 0.05))

	if len(client.generateCalls) != 1 {
		t.Fatalf("Generate calls = %d, want 1", len(client.generateCalls))
	}
	// With no skill file the built-in Kelly fallback is used.
	if !strings.Contains(client.generateCalls[0], "Kelly") {
		t.Error("audit prompt must include the risk policy document")
	}
}

func TestReviewer_CapsPublishedPositionSize(t *testing.T) {
	client := &fakeLLM{generateText: "APPROVE. The plan is acceptable."}
	r := NewReviewer(client, nil, nil, DefaultPolicy(), nil)

	// High confidence keeps the composite under the threshold
	// (0.3 + 0.30 size - 0.1 approve = 0.5) even at a 30% stake, but
	// the published recommendation must not exceed the bankroll ceiling.
	out := r.Execute(context.Background(), reviewedState(0.90, 0.30))

	if out.Kind != OutcomeAdvance || out.Next != StageIdle {
		t.Fatalf("outcome = %s -> %s, want advance -> idle", out.Kind, out.Next)
	}
	final := *out.Update.FinalOutput
	if !strings.Contains(final, "25.0% of bankroll (capped from 30.0%)") {
		t.Errorf("final output must cap the stake at the bankroll ceiling:\n%s", final)
	}
}

func TestReviewer_OversizedPositionRedirects(t *testing.T) {
	client := &fakeLLM{generateText: "neutral commentary"}
	r := NewReviewer(client, nil, nil, DefaultPolicy(), nil)

	// confidence 0.45 (+0.30) and size 0.30 (+0.30) put the composite
	// at 0.9 even with a neutral verdict.
	out := r.Execute(context.Background(), reviewedState(0.45, 0.30))

	if out.Kind != OutcomeRedirect {
		t.Fatalf("outcome = %s, want redirect for oversized position", out.Kind)
	}
}
