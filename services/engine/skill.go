// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fallbackRiskPolicy is the built-in risk policy the reviewer uses when
// no external skill document is available. The fallback text is part of
// the pipeline's contract, not an accident: reviews must be reproducible
// even with no skill file deployed.
const fallbackRiskPolicy = `# Kelly Criterion (Fallback)
f* = (bp - q) / b
Never bet more than 25% of bankroll.
Risk threshold: 0.7`

// SkillSource supplies the reviewer's risk-policy document.
//
// Description:
//
//	Loads an externally supplied text blob from a file, falling back to
//	the built-in policy when the file is absent or unreadable. Watch
//	keeps the cached text current when the file changes on disk, so
//	policy updates take effect without a restart.
//
// Thread Safety:
//
//	Safe for concurrent use. Text may be called while Watch is running.
type SkillSource struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	text string
}

// NewSkillSource creates a source for the given path and performs the
// initial load. An empty path always yields the built-in fallback.
func NewSkillSource(path string, logger *slog.Logger) *SkillSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SkillSource{path: path, logger: logger}
	s.reload()
	return s
}

// Text returns the current policy document.
func (s *SkillSource) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// reload reads the file, falling back to the built-in policy.
func (s *SkillSource) reload() {
	if s.path == "" {
		s.set(fallbackRiskPolicy)
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("risk policy skill unavailable, using built-in fallback",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		s.set(fallbackRiskPolicy)
		return
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		s.set(fallbackRiskPolicy)
		return
	}
	s.set(text)
	s.logger.Info("loaded risk policy skill", slog.String("path", s.path))
}

func (s *SkillSource) set(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

// Watch reloads the skill document when it changes on disk.
//
// Description:
//
//	Watches the document's parent directory (editors replace files by
//	rename, which drops a watch on the file itself) and reloads on any
//	event touching the document. Blocks until ctx is done.
//
// Inputs:
//
//	ctx - Cancels the watch.
//
// Outputs:
//
//	error - Non-nil if the watcher cannot be started.
func (s *SkillSource) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.logger.Debug("risk policy skill changed, reloading",
					slog.String("event", event.Op.String()),
				)
				s.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("skill watcher error", slog.String("error", err.Error()))
		}
	}
}
