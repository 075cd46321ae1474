// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

// Router maps a merged snapshot to the next stage or termination.
//
// Description:
//
//	Route is a pure function of the snapshot: calling it twice on the
//	same snapshot yields the same decision. The stage-level redirect
//	outcome is authoritative; stages write their directive into the
//	snapshot's ActiveStage and control flags, and the router only
//	validates it against the termination and ceiling rules. There is no
//	separate graph-level conditional edge.
type Router struct {
	policy Policy
}

// NewRouter creates a router with the given policy.
func NewRouter(policy Policy) *Router {
	return &Router{policy: policy}
}

// Route returns the stage that should execute next for a snapshot.
//
// Inputs:
//
//	state - A merged snapshot, as produced by RunState.Apply.
//
// Outputs:
//
//	Stage - The next stage, or StageIdle to terminate.
func (r *Router) Route(state RunState) Stage {
	// A run with a final output never executes again, whatever the
	// snapshot's other flags claim.
	if state.FinalOutput != "" {
		return StageIdle
	}

	if state.ActiveStage == StageIdle {
		return StageIdle
	}

	// The backward edge: a reviewer redirect lands the snapshot on the
	// planner with NeedsRevision set. The flag stays set until the
	// reviewer rules again, so it only carries routing authority while
	// the redirect target is the active stage. A planner advancing to
	// the reviewer under a pending revision must not be bounced back.
	if state.NeedsRevision && state.ActiveStage == StagePlanner {
		if state.RevisionCount > r.policy.RevisionCeiling {
			return StageIdle
		}
		return StagePlanner
	}

	return state.ActiveStage
}
