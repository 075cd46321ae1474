// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptyQuery is returned when a run is started without a query.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInvalidRunID is returned when a caller-supplied run ID fails
	// validation. Engine-generated IDs are always valid.
	ErrInvalidRunID = errors.New("invalid run ID")

	// ErrRunCancelled is returned when a run is cancelled between stages.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrIterationCap is returned when the engine loop exceeds its hard
	// iteration ceiling. Reaching it means the router misbehaved; it is a
	// defense-in-depth bound, not an expected outcome.
	ErrIterationCap = errors.New("engine loop exceeded iteration cap")

	// ErrUnknownStage is returned when a snapshot names a stage the
	// engine has no runner for.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrNotFound is returned by checkpoint stores when no snapshot
	// exists for a run identity.
	ErrNotFound = errors.New("run state not found")
)

// CheckpointError wraps a persistence failure with the run it affected.
// Persistence failures are the one error class that propagates to the
// caller: silently losing a checkpoint would break resumability.
type CheckpointError struct {
	RunID string
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for run %q: %v", e.Op, e.RunID, e.Err)
}

// Unwrap returns the underlying error.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NewCheckpointError wraps a store failure.
func NewCheckpointError(runID, op string, err error) *CheckpointError {
	return &CheckpointError{RunID: runID, Op: op, Err: err}
}
