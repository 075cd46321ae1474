// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNewRunState_Defaults(t *testing.T) {
	state := NewRunState("run-1", "Tokyo main race today?")

	if state.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", state.RunID)
	}
	if state.ActiveStage != StageGatherer {
		t.Errorf("ActiveStage = %q, want %q", state.ActiveStage, StageGatherer)
	}
	if state.Query != "Tokyo main race today?" {
		t.Errorf("Query = %q", state.Query)
	}
	if state.Trace == nil || len(state.Trace) != 0 {
		t.Errorf("Trace should be empty non-nil, got %v", state.Trace)
	}
	if state.ToolInvocations == nil || len(state.ToolInvocations) != 0 {
		t.Errorf("ToolInvocations should be empty non-nil, got %v", state.ToolInvocations)
	}
	if state.Terminal() {
		t.Error("fresh run must not be terminal")
	}
}

func TestClone_DeepCopy(t *testing.T) {
	size := 0.1
	state := NewRunState("run-1", "q")
	state.Trace = append(state.Trace, TraceEntry{Stage: StageGatherer, Thought: "original"})
	state.ToolInvocations = append(state.ToolInvocations, ToolInvocation{
		Tool: "search_racecourse_conditions",
		Args: map[string]string{"query": "Tokyo"},
	})
	state.GatherResult = &GatherResult{
		Venue:    "Tokyo Racecourse",
		RawFacts: []RawFact{{"tool": "x"}},
		Sources:  []string{"https://example.jp"},
	}
	state.PlanDraft = &PlanDraft{Recommendation: "closer", PositionSizeFraction: &size}

	clone := state.Clone()

	// Mutating the clone must not leak into the original.
	clone.Trace[0].Thought = "mutated"
	clone.ToolInvocations[0].Args["query"] = "Kyoto"
	clone.GatherResult.Venue = "Kyoto Racecourse"
	clone.GatherResult.Sources[0] = "https://other.jp"
	*clone.PlanDraft.PositionSizeFraction = 0.9

	if state.Trace[0].Thought != "original" {
		t.Error("clone shares Trace backing array with original")
	}
	if state.ToolInvocations[0].Args["query"] != "Tokyo" {
		t.Error("clone shares invocation args map with original")
	}
	if state.GatherResult.Venue != "Tokyo Racecourse" {
		t.Error("clone shares GatherResult with original")
	}
	if state.GatherResult.Sources[0] != "https://example.jp" {
		t.Error("clone shares Sources slice with original")
	}
	if *state.PlanDraft.PositionSizeFraction != 0.1 {
		t.Error("clone shares PositionSizeFraction pointer with original")
	}
}

func TestApply_DoesNotMutateReceiver(t *testing.T) {
	state := NewRunState("run-1", "q")
	state.Trace = append(state.Trace, TraceEntry{Stage: StageGatherer, Thought: "first"})
	before := state.Clone()

	out := Outcome{
		Kind: OutcomeAdvance,
		Next: StagePlanner,
		Update: Update{
			Trace:        []TraceEntry{{Stage: StageGatherer, Thought: "second"}},
			GatherResult: &GatherResult{Venue: "Nakayama Racecourse"},
		},
	}
	next := state.Apply(out)

	if !reflect.DeepEqual(state, before) {
		t.Error("Apply mutated the receiving snapshot")
	}
	if len(next.Trace) != 2 {
		t.Fatalf("next.Trace length = %d, want 2", len(next.Trace))
	}
	if next.ActiveStage != StagePlanner {
		t.Errorf("next.ActiveStage = %q, want planner", next.ActiveStage)
	}
	if next.GatherResult == nil || next.GatherResult.Venue != "Nakayama Racecourse" {
		t.Error("GatherResult not applied")
	}
}

func TestApply_AppendOnlyTrace(t *testing.T) {
	state := NewRunState("run-1", "q")

	for i := 0; i < 5; i++ {
		prev := len(state.Trace)
		state = state.Apply(Outcome{
			Kind:   OutcomeAdvance,
			Next:   state.ActiveStage,
			Update: Update{Trace: []TraceEntry{{Stage: state.ActiveStage, Thought: "step"}}},
		})
		if len(state.Trace) != prev+1 {
			t.Fatalf("iteration %d: trace length %d, want %d", i, len(state.Trace), prev+1)
		}
	}
}

func TestApply_RevisionCountNeverDecreases(t *testing.T) {
	state := NewRunState("run-1", "q")
	state.RevisionCount = 2

	next := state.Apply(Outcome{
		Kind:   OutcomeRedirect,
		Next:   StagePlanner,
		Update: Update{RevisionCount: intPtr(1)},
	})
	if next.RevisionCount != 2 {
		t.Errorf("RevisionCount = %d, want 2 (monotonic)", next.RevisionCount)
	}

	next = next.Apply(Outcome{
		Kind:   OutcomeRedirect,
		Next:   StagePlanner,
		Update: Update{RevisionCount: intPtr(3)},
	})
	if next.RevisionCount != 3 {
		t.Errorf("RevisionCount = %d, want 3", next.RevisionCount)
	}
}

func TestApply_FinalOutputSetOnce(t *testing.T) {
	state := NewRunState("run-1", "q")

	state = state.Apply(Outcome{
		Kind:   OutcomeAdvance,
		Next:   StageIdle,
		Update: Update{FinalOutput: strPtr("first answer")},
	})
	state = state.Apply(Outcome{
		Kind:   OutcomeAdvance,
		Next:   StageIdle,
		Update: Update{FinalOutput: strPtr("second answer")},
	})

	if state.FinalOutput != "first answer" {
		t.Errorf("FinalOutput = %q, want the first value to stick", state.FinalOutput)
	}
}

func TestApply_SetPlanDraftNil(t *testing.T) {
	state := NewRunState("run-1", "q")
	state.PlanDraft = &PlanDraft{Recommendation: "old"}

	next := state.Apply(Outcome{
		Kind:   OutcomeAdvance,
		Next:   StageReviewer,
		Update: Update{SetPlanDraft: true, PlanDraft: nil},
	})
	if next.PlanDraft != nil {
		t.Error("SetPlanDraft with nil draft should clear PlanDraft")
	}
}

func TestTerminal(t *testing.T) {
	state := NewRunState("run-1", "q")
	if state.Terminal() {
		t.Error("gatherer stage should not be terminal")
	}
	state.ActiveStage = StageIdle
	if !state.Terminal() {
		t.Error("idle stage should be terminal")
	}
}

func TestRunState_JSONRoundTrip(t *testing.T) {
	size := 0.05
	state := NewRunState("run-rt", "Is the going soft at Hanshin?")
	state.Trace = append(state.Trace, TraceEntry{
		Timestamp: now(),
		Stage:     StageGatherer,
		Thought:   "scouting",
		Action:    "searching",
	})
	state.ToolInvocations = append(state.ToolInvocations, ToolInvocation{
		Timestamp: now(),
		Tool:      ToolSearchConditions,
		Args:      map[string]string{"query": "Hanshin going"},
		Stage:     StageGatherer,
	})
	state.GatherResult = &GatherResult{
		Venue:            "Hanshin Racecourse",
		SurfaceCondition: "Soft",
		Weather:          "Rainy",
		RawFacts:         []RawFact{{"tool": ToolSearchConditions, "excerpt": "rain all week"}},
		Sources:          []string{"https://www.jra.go.jp/somewhere"},
	}
	state.PlanDraft = &PlanDraft{
		Recommendation:       "Focus on front-runners",
		Confidence:           0.8,
		Rationale:            "soft going favors stamina",
		PositionSizeFraction: &size,
	}
	state.QualityScore = 0.5
	state.RevisionCount = 1

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded RunState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(state, decoded) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", decoded, state)
	}
}
