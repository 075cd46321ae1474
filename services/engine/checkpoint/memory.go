// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package checkpoint provides run snapshot stores for the oracle engine.
//
// Two implementations are available: an in-memory store for tests and
// single-process deployments, and a BadgerDB-backed store for durable
// checkpoints that survive restarts.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/keibalabs/oracle/pkg/validation"
	"github.com/keibalabs/oracle/services/engine"
)

// MemoryStore is an in-memory checkpoint store.
//
// Thread Safety: safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]byte)}
}

// Save implements engine.Store. Last writer wins.
func (m *MemoryStore) Save(ctx context.Context, state engine.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validation.ValidateRunID(state.RunID); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal run %s: %w", state.RunID, err)
	}
	m.mu.Lock()
	m.runs[state.RunID] = data
	m.mu.Unlock()
	return nil
}

// Load implements engine.Store.
func (m *MemoryStore) Load(ctx context.Context, runID string) (engine.RunState, error) {
	if err := ctx.Err(); err != nil {
		return engine.RunState{}, err
	}
	m.mu.RLock()
	data, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return engine.RunState{}, fmt.Errorf("checkpoint: run %s: %w", runID, engine.ErrNotFound)
	}
	var state engine.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return engine.RunState{}, fmt.Errorf("checkpoint: unmarshal run %s: %w", runID, err)
	}
	return state, nil
}

// Delete implements engine.Store. Deleting a missing run is a no-op.
func (m *MemoryStore) Delete(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.runs, runID)
	m.mu.Unlock()
	return nil
}

// List implements engine.Store. IDs are returned sorted.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// Close implements engine.Store.
func (m *MemoryStore) Close() error { return nil }
