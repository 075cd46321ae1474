// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/keibalabs/oracle/pkg/validation"
	"github.com/keibalabs/oracle/services/engine"
)

// keyPrefix namespaces run snapshots inside the database.
const keyPrefix = "run/"

// BadgerConfig holds configuration for a BadgerDB-backed checkpoint store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Retention is the TTL applied to each snapshot. Zero keeps
	// snapshots forever.
	Retention time.Duration

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for the given path:
// synchronous writes and 7-day snapshot retention.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
		Retention:  7 * 24 * time.Hour,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore persists run snapshots in an embedded BadgerDB.
//
// Description:
//
//	Snapshots are stored as JSON under "run/<id>" keys. Saves overwrite
//	the previous snapshot for the run (last writer wins). An optional
//	retention TTL expires old runs automatically.
//
// Thread Safety: safe for concurrent use.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
}

// NewBadgerStore opens (or creates) the database described by cfg.
//
// Outputs:
//
//	*BadgerStore - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is missing or the database cannot open.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("checkpoint: path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("checkpoint: create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open badger database: %w", err)
	}

	return &BadgerStore{db: db, retention: cfg.Retention}, nil
}

// Save implements engine.Store.
func (b *BadgerStore) Save(ctx context.Context, state engine.RunState) error {
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
	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+state.RunID), data)
		if b.retention > 0 {
			entry = entry.WithTTL(b.retention)
		}
		return txn.SetEntry(entry)
	})
}

// Load implements engine.Store.
func (b *BadgerStore) Load(ctx context.Context, runID string) (engine.RunState, error) {
	if err := ctx.Err(); err != nil {
		return engine.RunState{}, err
	}
	var state engine.RunState
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + runID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("checkpoint: run %s: %w", runID, engine.ErrNotFound)
			}
			return fmt.Errorf("checkpoint: get run %s: %w", runID, err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &state); err != nil {
				return fmt.Errorf("checkpoint: unmarshal run %s: %w", runID, err)
			}
			return nil
		})
	})
	if err != nil {
		return engine.RunState{}, err
	}
	return state, nil
}

// Delete implements engine.Store. Deleting a missing run is a no-op.
func (b *BadgerStore) Delete(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + runID))
	})
}

// List implements engine.Store.
func (b *BadgerStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list runs: %w", err)
	}
	return ids, nil
}

// Close implements engine.Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
