// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

// NewRunState creates the initial snapshot for a run.
//
// Inputs:
//
//	runID - The run identity the snapshot is checkpointed under.
//	query - The caller-supplied question. Immutable afterwards.
//
// Outputs:
//
//	RunState - A snapshot with defaults and ActiveStage set to the
//	gatherer.
func NewRunState(runID, query string) RunState {
	return RunState{
		RunID:           runID,
		ActiveStage:     StageGatherer,
		Trace:           []TraceEntry{},
		Query:           query,
		ToolInvocations: []ToolInvocation{},
	}
}

// Clone returns a deep copy of the snapshot.
//
// Description:
//
//	Slices and nested structs are copied so the clone shares no mutable
//	memory with the original. Apply uses Clone to guarantee that stages
//	never observe a snapshot changing underneath them.
func (s RunState) Clone() RunState {
	c := s

	c.Trace = make([]TraceEntry, len(s.Trace))
	copy(c.Trace, s.Trace)

	c.ToolInvocations = make([]ToolInvocation, len(s.ToolInvocations))
	for i, inv := range s.ToolInvocations {
		c.ToolInvocations[i] = inv
		if inv.Args != nil {
			args := make(map[string]string, len(inv.Args))
			for k, v := range inv.Args {
				args[k] = v
			}
			c.ToolInvocations[i].Args = args
		}
	}

	if s.GatherResult != nil {
		c.GatherResult = s.GatherResult.clone()
	}
	if s.PlanDraft != nil {
		c.PlanDraft = s.PlanDraft.clone()
	}

	return c
}

func (g *GatherResult) clone() *GatherResult {
	out := *g
	out.Sources = make([]string, len(g.Sources))
	copy(out.Sources, g.Sources)
	out.RawFacts = make([]RawFact, len(g.RawFacts))
	for i, f := range g.RawFacts {
		fact := make(RawFact, len(f))
		for k, v := range f {
			fact[k] = v
		}
		out.RawFacts[i] = fact
	}
	return &out
}

func (p *PlanDraft) clone() *PlanDraft {
	out := *p
	if p.PositionSizeFraction != nil {
		f := *p.PositionSizeFraction
		out.PositionSizeFraction = &f
	}
	return &out
}

// Apply merges a stage outcome into a new snapshot.
//
// Description:
//
//	Returns a fresh snapshot with the outcome's partial update folded in
//	and ActiveStage set to the outcome's target. The receiver is never
//	mutated. Trace and tool invocation sequences are appended to, never
//	replaced, preserving the append-only audit invariant.
//
// Inputs:
//
//	out - The stage outcome to merge.
//
// Outputs:
//
//	RunState - The new immutable snapshot.
func (s RunState) Apply(out Outcome) RunState {
	next := s.Clone()
	u := out.Update

	next.Trace = append(next.Trace, u.Trace...)
	next.ToolInvocations = append(next.ToolInvocations, u.ToolInvocations...)

	if u.GatherResult != nil {
		next.GatherResult = u.GatherResult.clone()
	}
	if u.SetPlanDraft {
		if u.PlanDraft != nil {
			next.PlanDraft = u.PlanDraft.clone()
		} else {
			next.PlanDraft = nil
		}
	}
	if u.QualityScore != nil {
		next.QualityScore = *u.QualityScore
	}
	if u.NeedsRevision != nil {
		next.NeedsRevision = *u.NeedsRevision
	}
	if u.RevisionReason != nil {
		next.RevisionReason = *u.RevisionReason
	}
	if u.RevisionCount != nil && *u.RevisionCount > next.RevisionCount {
		next.RevisionCount = *u.RevisionCount
	}
	if u.FinalOutput != nil && next.FinalOutput == "" {
		next.FinalOutput = *u.FinalOutput
	}

	next.ActiveStage = out.Next
	return next
}

// Terminal reports whether the snapshot has reached the terminal stage.
func (s RunState) Terminal() bool {
	return s.ActiveStage == StageIdle || s.FinalOutput != ""
}

// floatPtr, boolPtr, intPtr, strPtr are small helpers for building
// partial updates.
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
func strPtr(s string) *string     { return &s }
