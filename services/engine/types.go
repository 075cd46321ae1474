// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"time"
)

// Stage identifies a pipeline stage.
type Stage string

const (
	// StageGatherer is the first stage. It collects venue and condition
	// facts through the search collaborator.
	StageGatherer Stage = "gatherer"

	// StagePlanner is the second stage. It derives a plan draft from the
	// gathered facts through the reasoning collaborator.
	StagePlanner Stage = "planner"

	// StageReviewer is the third stage. It scores the plan draft and
	// either accepts it or redirects execution back to the planner.
	StageReviewer Stage = "reviewer"

	// StageIdle is the sole terminal stage. A run whose active stage is
	// idle never executes again.
	StageIdle Stage = "idle"
)

// TraceEntry is one unit of explainable reasoning.
//
// Description:
//
//	The ordered sequence of trace entries across a run is the complete
//	audit trail. No stage may perform an externally visible action without
//	recording at least one entry. Entries are immutable once appended.
type TraceEntry struct {
	// Timestamp is when the entry was recorded (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Stage is the stage that recorded the entry.
	Stage Stage `json:"stage"`

	// Thought is the reasoning behind the entry. Always present.
	Thought string `json:"thought"`

	// Action describes the externally visible action, if any.
	Action string `json:"action,omitempty"`

	// Observation records what the action returned, if anything.
	Observation string `json:"observation,omitempty"`
}

// ToolInvocation records one call to a named collaborator tool.
type ToolInvocation struct {
	// Timestamp is when the tool was invoked (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Tool is the tool name (e.g., "search_course_conditions").
	Tool string `json:"tool"`

	// Args are the arguments the tool was invoked with.
	Args map[string]string `json:"args"`

	// Stage is the stage that invoked the tool.
	Stage Stage `json:"stage"`
}

// RawFact is one opaque record returned by the search collaborator.
// The engine never interprets its keys; they pass through to callers.
type RawFact map[string]string

// GatherResult holds the normalized output of the gatherer stage.
//
// All fields are always populated. Absence is represented by the
// sentinel "Unknown", never by omission, so downstream stages can
// branch without nil checks on substructures.
type GatherResult struct {
	// Venue is the matched racecourse name, or "Unknown Racecourse".
	Venue string `json:"venue"`

	// SurfaceCondition is Good, Soft, Heavy, or "Unknown".
	SurfaceCondition string `json:"surface_condition"`

	// Weather is Clear, Rainy, Cloudy, or "Unknown".
	Weather string `json:"weather"`

	// RawFacts are opaque records carried through for callers.
	RawFacts []RawFact `json:"raw_facts"`

	// Sources are provenance URIs, capped at the configured source cap.
	Sources []string `json:"sources"`
}

// PlanDraft holds the output of the planner stage.
type PlanDraft struct {
	// Recommendation is the plan headline (e.g., running-style strategy).
	Recommendation string `json:"recommendation"`

	// Confidence is the planner's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Rationale summarizes the reasoning behind the recommendation.
	Rationale string `json:"rationale"`

	// PositionSizeFraction is the suggested bankroll fraction in [0, 1].
	// The reviewer enforces the domain ceiling of 0.25; the type does not.
	// Nil when the planner did not produce a sizing suggestion.
	PositionSizeFraction *float64 `json:"position_size_fraction,omitempty"`
}

// RunState is the aggregate record threaded through all stages.
//
// Description:
//
//	RunState is treated as an immutable value. Every stage execution
//	produces a new snapshot via Apply; the snapshot a stage received is
//	never mutated. This is the property that makes checkpointing and
//	concurrent inspection safe without locks.
//
// Invariants:
//
//	RevisionCount never exceeds the revision ceiling. Once FinalOutput is
//	set no further stage executes. Trace and ToolInvocations lengths are
//	non-decreasing across the run's lifetime. Query is immutable after
//	run creation.
type RunState struct {
	// RunID is the run identity the snapshot is checkpointed under.
	RunID string `json:"run_id"`

	// ActiveStage is the stage that should execute next. StageIdle is
	// the sole terminal value.
	ActiveStage Stage `json:"active_stage"`

	// Trace is the append-only audit trail. Never reordered or truncated.
	Trace []TraceEntry `json:"trace"`

	// GatherResult is set once by the gatherer, read-only thereafter.
	GatherResult *GatherResult `json:"gather_result,omitempty"`

	// PlanDraft is set by the planner and may be overwritten on each
	// revision iteration.
	PlanDraft *PlanDraft `json:"plan_draft,omitempty"`

	// QualityScore is the reviewer's composite risk score in [0, 1].
	QualityScore float64 `json:"quality_score"`

	// NeedsRevision is true when the reviewer redirected to the planner.
	NeedsRevision bool `json:"needs_revision"`

	// RevisionReason explains the most recent redirect, if any.
	RevisionReason string `json:"revision_reason,omitempty"`

	// RevisionCount is the number of redirects taken so far. It is
	// monotonically non-decreasing within a run and never exceeds the
	// revision ceiling.
	RevisionCount int `json:"revision_count"`

	// Query is the caller-supplied question. Immutable after creation.
	Query string `json:"query"`

	// ToolInvocations is the append-only log of collaborator tool calls.
	ToolInvocations []ToolInvocation `json:"tool_invocations"`

	// FinalOutput is set exactly once, when ActiveStage transitions to
	// StageIdle. Empty until then.
	FinalOutput string `json:"final_output,omitempty"`
}

// OutcomeKind tags a stage outcome.
type OutcomeKind string

const (
	// OutcomeAdvance moves execution forward to the next stage.
	OutcomeAdvance OutcomeKind = "advance"

	// OutcomeRedirect routes execution backward to an earlier stage.
	// Only the reviewer may return it.
	OutcomeRedirect OutcomeKind = "redirect"
)

// Update is the partial state update a stage is authorized to write.
//
// Trace and ToolInvocations are appended to the prior snapshot's
// sequences; all other fields overwrite only when their set flag or
// pointer is non-zero. Fields a stage does not own must be left unset.
type Update struct {
	// Trace entries to append.
	Trace []TraceEntry

	// ToolInvocations to append.
	ToolInvocations []ToolInvocation

	// GatherResult, when non-nil, records the gatherer's output.
	GatherResult *GatherResult

	// PlanDraft is written when SetPlanDraft is true. A nil PlanDraft
	// with SetPlanDraft set records the planner's defensive null draft.
	PlanDraft    *PlanDraft
	SetPlanDraft bool

	// QualityScore, when non-nil, records the reviewer's score.
	QualityScore *float64

	// NeedsRevision, when non-nil, sets the revision flag.
	NeedsRevision *bool

	// RevisionReason, when non-nil, sets or clears the revision reason.
	RevisionReason *string

	// RevisionCount, when non-nil, sets the redirect counter. The value
	// must never decrease.
	RevisionCount *int

	// FinalOutput, when non-nil, terminates the run.
	FinalOutput *string
}

// Outcome is the tagged result of a stage execution.
//
// The conditional backward edge is modeled as an explicit outcome
// variant consumed by the router, never as control-flow exceptions.
type Outcome struct {
	// Kind is OutcomeAdvance or OutcomeRedirect.
	Kind OutcomeKind

	// Next is the stage execution should move to. For OutcomeRedirect it
	// is the backward target; for OutcomeAdvance it may be StageIdle.
	Next Stage

	// Update is the partial state update to merge.
	Update Update
}

// StageRunner is the contract every pipeline stage implements.
//
// Description:
//
//	A stage is a pure function of its input snapshot plus calls to
//	external collaborators. It must not consult state outside the
//	snapshot it was given, and its update must contain only fields it
//	owns. Collaborator failures are never propagated: the stage records
//	the failure in the trace and returns a deterministic, conservative
//	fallback update, so the pipeline always makes forward progress.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use across runs. The
//	snapshot passed in is never shared with a concurrent writer.
type StageRunner interface {
	// Name returns the stage identity.
	Name() Stage

	// Execute runs the stage against a snapshot and returns its outcome.
	// It never returns an error; failures are folded into the outcome.
	Execute(ctx context.Context, state RunState) Outcome
}

// now returns the current UTC time with the monotonic reading stripped,
// so snapshots compare equal across a checkpoint round trip.
func now() time.Time {
	return time.Now().UTC()
}
