// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds the engine's routing and review constants.
//
// The defaults are part of the pipeline's contract: a risk score
// strictly above 0.7 redirects to the planner, and at most 3 redirects
// are permitted before forced acceptance. Both are configurable, but an
// installation that changes them changes what the pipeline promises.
type Policy struct {
	// RiskThreshold is the score above which the reviewer redirects.
	// The comparison is strict: a score exactly at the threshold is
	// accepted.
	RiskThreshold float64 `yaml:"risk_threshold"`

	// RevisionCeiling is the maximum number of backward redirects before
	// the reviewer force-accepts regardless of score.
	RevisionCeiling int `yaml:"revision_ceiling"`

	// SourceCap is the maximum number of provenance URIs the gatherer
	// keeps.
	SourceCap int `yaml:"source_cap"`

	// StageTimeout bounds a single stage execution, covering its
	// collaborator calls. Zero uses DefaultStageTimeout.
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

const (
	// DefaultRiskThreshold is the default redirect threshold.
	DefaultRiskThreshold = 0.7

	// DefaultRevisionCeiling is the default redirect ceiling.
	DefaultRevisionCeiling = 3

	// DefaultSourceCap is the default provenance URI cap.
	DefaultSourceCap = 5

	// DefaultStageTimeout is the default per-stage execution bound.
	DefaultStageTimeout = 60 * time.Second
)

// DefaultPolicy returns the contractual defaults.
func DefaultPolicy() Policy {
	return Policy{
		RiskThreshold:   DefaultRiskThreshold,
		RevisionCeiling: DefaultRevisionCeiling,
		SourceCap:       DefaultSourceCap,
		StageTimeout:    DefaultStageTimeout,
	}
}

// LoadPolicy reads a Policy from a YAML file.
//
// Description:
//
//	Fields absent from the file keep their defaults. The file may
//	therefore override a single constant without restating the rest.
//
// Inputs:
//
//	path - Path to the YAML policy file.
//
// Outputs:
//
//	Policy - The merged policy.
//	error - Non-nil if the file cannot be read or parsed, or a value is
//	out of range.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the policy's value ranges.
func (p Policy) Validate() error {
	if p.RiskThreshold < 0 || p.RiskThreshold > 1 {
		return fmt.Errorf("risk_threshold must be in [0, 1], got %v", p.RiskThreshold)
	}
	if p.RevisionCeiling < 0 {
		return fmt.Errorf("revision_ceiling must be >= 0, got %d", p.RevisionCeiling)
	}
	if p.SourceCap <= 0 {
		return fmt.Errorf("source_cap must be > 0, got %d", p.SourceCap)
	}
	if p.StageTimeout < 0 {
		return fmt.Errorf("stage_timeout must be >= 0, got %v", p.StageTimeout)
	}
	return nil
}

// stageTimeout returns the effective per-stage bound.
func (p Policy) stageTimeout() time.Duration {
	if p.StageTimeout == 0 {
		return DefaultStageTimeout
	}
	return p.StageTimeout
}

// maxIterations derives the engine loop's hard cap from the ceiling:
// three forward stages plus a planner+reviewer pair per permitted
// redirect, plus one slot of slack. This bound holds even if the
// ceiling check inside the reviewer were bypassed.
func (p Policy) maxIterations() int {
	return 3 + 2*p.RevisionCeiling + 1
}
