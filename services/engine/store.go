// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "context"

// Store persists run state snapshots between stage transitions.
//
// Description:
//
//	Implementations must be safe for concurrent use. Save overwrites any
//	previous snapshot for the same run ID (last writer wins). Load returns
//	ErrNotFound (possibly wrapped) when no snapshot exists for the ID.
//
//	A snapshot must round-trip: Load after Save returns a state equal to
//	the one saved.
type Store interface {
	// Save persists a snapshot keyed by state.RunID.
	Save(ctx context.Context, state RunState) error

	// Load retrieves the most recent snapshot for the run.
	Load(ctx context.Context, runID string) (RunState, error)

	// Delete removes the snapshot for the run. Deleting a missing run
	// is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of all persisted runs.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
