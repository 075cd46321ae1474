// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/keibalabs/oracle/pkg/validation"
)

var (
	tracer = otel.Tracer("oracle.engine")
	meter  = otel.Meter("oracle.engine")
)

// Engine drives a run through the gatherer, planner, and reviewer stages
// until it reaches the idle terminal stage.
//
// Description:
//
//	The engine owns the checkpoint-execute-merge loop. Each iteration it
//	executes the runner for the active stage against an isolated copy of
//	the current snapshot, merges the returned outcome into a new snapshot,
//	persists the snapshot, and asks the router for the next stage. A run
//	interrupted between stages can be resumed from its last checkpoint
//	with no repeated work.
//
//	Stage runners never fail the run. The only hard failures are
//	cancellation, checkpoint persistence errors, an unknown active stage,
//	and the iteration cap.
//
// Thread Safety:
//
//	Engine is safe for concurrent use. Multiple runs can execute
//	concurrently on the same Engine as long as they use distinct run IDs.
type Engine struct {
	stages map[Stage]StageRunner
	router *Router
	store  Store
	policy Policy
	logger *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce  sync.Once
	stageLatency metric.Float64Histogram
	runLatency   metric.Float64Histogram
	redirects    metric.Int64Counter
	runsTotal    metric.Int64Counter
	activeRuns   metric.Int64UpDownCounter
}

// NewEngine creates an engine over the given stage runners.
//
// Inputs:
//
//	store - Checkpoint store. Must not be nil.
//	policy - Run policy. Validated before use.
//	logger - Logger for run logs. If nil, uses slog.Default().
//	stages - Stage runners, one per pipeline stage. Must not be empty.
//
// Outputs:
//
//	*Engine - The configured engine.
//	error - Non-nil if the store is missing, the policy is invalid, or
//	two runners claim the same stage.
func NewEngine(store Store, policy Policy, logger *slog.Logger, stages ...StageRunner) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: checkpoint store is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("engine: at least one stage runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[Stage]StageRunner, len(stages))
	for _, s := range stages {
		if _, dup := byName[s.Name()]; dup {
			return nil, fmt.Errorf("engine: duplicate runner for stage %q", s.Name())
		}
		byName[s.Name()] = s
	}

	return &Engine{
		stages: byName,
		router: NewRouter(policy),
		store:  store,
		policy: policy,
		logger: logger,
	}, nil
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution (graceful degradation).
func (e *Engine) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stageLatency, err = meter.Float64Histogram("oracle_stage_duration_seconds",
			metric.WithDescription("Time spent executing each pipeline stage"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_latency: "+err.Error())
		}

		e.runLatency, err = meter.Float64Histogram("oracle_run_duration_seconds",
			metric.WithDescription("Total run execution time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		e.redirects, err = meter.Int64Counter("oracle_redirects_total",
			metric.WithDescription("Number of reviewer redirects back to the planner"),
		)
		if err != nil {
			initErrors = append(initErrors, "redirects: "+err.Error())
		}

		e.runsTotal, err = meter.Int64Counter("oracle_runs_total",
			metric.WithDescription("Number of completed runs by outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "runs_total: "+err.Error())
		}

		e.activeRuns, err = meter.Int64UpDownCounter("oracle_active_runs",
			metric.WithDescription("Number of currently executing runs"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_runs: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some engine metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run executes a run to its terminal stage, resuming from a checkpoint
// when one exists.
//
// Description:
//
//	When runID names an existing checkpoint, the run resumes from that
//	snapshot and query is ignored. A terminal checkpoint is returned
//	unchanged. When runID is empty a fresh ID is generated. Every
//	returned snapshot, including error cases, is the latest persisted
//	state of the run.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	runID - Run identifier. Empty generates a new one.
//	query - The user's question. Required for new runs.
//
// Outputs:
//
//	RunState - The final (or last persisted) snapshot.
//	error - Non-nil on cancellation, checkpoint failure, unknown stage,
//	or iteration cap.
func (e *Engine) Run(ctx context.Context, runID, query string) (RunState, error) {
	if ctx == nil {
		return RunState{}, ErrNilContext
	}

	e.initMetrics()

	state, err := e.loadOrCreate(ctx, runID, query)
	if err != nil {
		return RunState{}, err
	}
	if state.Terminal() {
		e.logger.Info("run already terminal, returning checkpoint",
			slog.String("run_id", state.RunID),
		)
		return state, nil
	}

	ctx, span := tracer.Start(ctx, "engine.Run",
		trace.WithAttributes(
			attribute.String("run.id", state.RunID),
			attribute.String("run.stage", string(state.ActiveStage)),
		),
	)
	defer span.End()

	if e.activeRuns != nil {
		e.activeRuns.Add(ctx, 1)
		defer e.activeRuns.Add(ctx, -1)
	}

	start := time.Now()
	e.logger.Info("run started",
		slog.String("run_id", state.RunID),
		slog.String("stage", string(state.ActiveStage)),
		slog.Int("revision_count", state.RevisionCount),
	)

	state, err = e.loop(ctx, span, state)

	duration := time.Since(start)
	if e.runLatency != nil {
		e.runLatency.Record(ctx, duration.Seconds())
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.countRun(ctx, "error")
		e.logger.Error("run failed",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return state, err
	}

	span.SetStatus(codes.Ok, "")
	e.countRun(ctx, "completed")
	e.logger.Info("run completed",
		slog.String("run_id", state.RunID),
		slog.Duration("duration", duration),
		slog.Float64("quality_score", state.QualityScore),
		slog.Int("revisions", state.RevisionCount),
	)
	return state, nil
}

// loop is the checkpoint-execute-merge cycle.
func (e *Engine) loop(ctx context.Context, span trace.Span, state RunState) (RunState, error) {
	for i := 0; i < e.policy.maxIterations(); i++ {
		if state.Terminal() {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, fmt.Errorf("%w: %w", ErrRunCancelled, ctx.Err())
		default:
		}

		runner, ok := e.stages[state.ActiveStage]
		if !ok {
			return state, fmt.Errorf("%w: %q", ErrUnknownStage, state.ActiveStage)
		}

		outcome, dur := e.executeStage(ctx, runner, state)
		span.AddEvent("stage completed", trace.WithAttributes(
			attribute.String("stage", string(runner.Name())),
			attribute.String("outcome", string(outcome.Kind)),
		))

		if outcome.Kind == OutcomeRedirect && e.redirects != nil {
			e.redirects.Add(ctx, 1)
		}
		if e.stageLatency != nil {
			e.stageLatency.Record(ctx, dur.Seconds(),
				metric.WithAttributes(attribute.String("stage", string(runner.Name()))),
			)
		}

		state = state.Apply(outcome)

		// The router has the final say on the next stage. It agrees with
		// the outcome in normal operation but clamps runs that slipped
		// past the revision ceiling.
		if routed := e.router.Route(state); routed != state.ActiveStage {
			e.logger.Warn("router overrode stage transition",
				slog.String("run_id", state.RunID),
				slog.String("requested", string(state.ActiveStage)),
				slog.String("routed", string(routed)),
			)
			state.ActiveStage = routed
		}

		if err := e.checkpoint(ctx, state); err != nil {
			return state, err
		}

		e.logger.Debug("stage transition checkpointed",
			slog.String("run_id", state.RunID),
			slog.String("completed", string(runner.Name())),
			slog.String("next", string(state.ActiveStage)),
			slog.Duration("duration", dur),
		)
	}

	return state, fmt.Errorf("%w after %d iterations", ErrIterationCap, e.policy.maxIterations())
}

// executeStage runs a single stage against an isolated snapshot copy with
// the per-stage timeout applied.
func (e *Engine) executeStage(ctx context.Context, runner StageRunner, state RunState) (Outcome, time.Duration) {
	stageCtx, cancel := context.WithTimeout(ctx, e.policy.stageTimeout())
	defer cancel()

	stageCtx, span := tracer.Start(stageCtx, "engine.Stage",
		trace.WithAttributes(
			attribute.String("run.id", state.RunID),
			attribute.String("stage", string(runner.Name())),
			attribute.Int("run.revision_count", state.RevisionCount),
		),
	)
	defer span.End()

	start := time.Now()
	outcome := runner.Execute(stageCtx, state.Clone())
	return outcome, time.Since(start)
}

// checkpoint persists the snapshot. Persistence failures are the one
// collaborator error that aborts the run.
func (e *Engine) checkpoint(ctx context.Context, state RunState) error {
	if err := e.store.Save(ctx, state); err != nil {
		return NewCheckpointError(state.RunID, "save", err)
	}
	return nil
}

// loadOrCreate resumes an existing run or initializes a new snapshot.
func (e *Engine) loadOrCreate(ctx context.Context, runID, query string) (RunState, error) {
	if runID != "" {
		if err := validation.ValidateRunID(runID); err != nil {
			return RunState{}, fmt.Errorf("%w: %w", ErrInvalidRunID, err)
		}
		state, err := e.store.Load(ctx, runID)
		switch {
		case err == nil:
			e.logger.Info("resuming run from checkpoint",
				slog.String("run_id", runID),
				slog.String("stage", string(state.ActiveStage)),
			)
			return state, nil
		case errors.Is(err, ErrNotFound):
			// Fall through to create a run with the caller's ID.
		default:
			return RunState{}, NewCheckpointError(runID, "load", err)
		}
	}

	if query == "" {
		return RunState{}, ErrEmptyQuery
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return NewRunState(runID, query), nil
}

func (e *Engine) countRun(ctx context.Context, outcome string) {
	if e.runsTotal != nil {
		e.runsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", outcome)),
		)
	}
}
