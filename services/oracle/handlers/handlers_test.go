// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keibalabs/oracle/services/engine"
	"github.com/keibalabs/oracle/services/engine/checkpoint"
	"github.com/keibalabs/oracle/services/oracle/datatypes"
)

// passthroughStage advances straight through its slot in the pipeline,
// leaving a trace entry so responses carry an audit trail.
type passthroughStage struct {
	name engine.Stage
	next engine.Stage
}

func (s passthroughStage) Name() engine.Stage { return s.name }

func (s passthroughStage) Execute(_ context.Context, state engine.RunState) engine.Outcome {
	update := engine.Update{
		Trace: []engine.TraceEntry{{Stage: s.name, Thought: "ok"}},
	}
	if s.name == engine.StageReviewer {
		final := "## Keiba Oracle Recommendation\nTest strategy."
		update.FinalOutput = &final
	}
	return engine.Outcome{Kind: engine.OutcomeAdvance, Next: s.next, Update: update}
}

func newTestEngine(t *testing.T, store engine.Store) *engine.Engine {
	t.Helper()
	eng, err := engine.NewEngine(store, engine.DefaultPolicy(), slog.Default(),
		passthroughStage{name: engine.StageGatherer, next: engine.StagePlanner},
		passthroughStage{name: engine.StagePlanner, next: engine.StageReviewer},
		passthroughStage{name: engine.StageReviewer, next: engine.StageIdle},
	)
	require.NoError(t, err)
	return eng
}

func newTestRouter(t *testing.T, store engine.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	eng := newTestEngine(t, store)

	router.POST("/v1/oracle/run", HandleOracleRun(eng))
	router.GET("/v1/oracle/runs", ListRuns(store))
	router.GET("/v1/oracle/runs/:runId", GetRun(store))
	router.DELETE("/v1/oracle/runs/:runId", DeleteRun(store))
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleOracleRun_Success(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	w := doRequest(router, http.MethodPost, "/v1/oracle/run",
		`{"query": "Who wins the Japan Cup?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, engine.StageIdle, resp.ActiveStage)
	assert.Contains(t, resp.FinalOutput, "Keiba Oracle Recommendation")
	assert.Len(t, resp.Trace, 3)

	// The terminal snapshot must be retrievable afterward.
	_, err := store.Load(context.Background(), resp.RunID)
	assert.NoError(t, err)
}

func TestHandleOracleRun_CallerSuppliedRunID(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	w := doRequest(router, http.MethodPost, "/v1/oracle/run",
		`{"query": "Arima Kinen outlook", "run_id": "my-run"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "my-run", resp.RunID)
}

func TestHandleOracleRun_ResumeWithoutQuery(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	seeded := engine.NewRunState("paused-run", "Takarazuka Kinen outlook")
	seeded.ActiveStage = engine.StagePlanner
	require.NoError(t, store.Save(context.Background(), seeded))

	w := doRequest(router, http.MethodPost, "/v1/oracle/run",
		`{"run_id": "paused-run"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "paused-run", resp.RunID)
	assert.Equal(t, engine.StageIdle, resp.ActiveStage)
}

func TestHandleOracleRun_InvalidBody(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	for name, body := range map[string]string{
		"malformed json": `{"query": `,
		"missing query":  `{}`,
		"empty body":     ``,
	} {
		t.Run(name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/v1/oracle/run", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp datatypes.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleOracleRun_InvalidRunID(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	w := doRequest(router, http.MethodPost, "/v1/oracle/run",
		`{"query": "q", "run_id": "../escape"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRun(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	state := engine.NewRunState("saved-run", "Nakayama query")
	state.QualityScore = 0.3
	require.NoError(t, store.Save(context.Background(), state))

	t.Run("found", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/v1/oracle/runs/saved-run", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.RunResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "saved-run", resp.RunID)
		assert.Equal(t, 0.3, resp.QualityScore)
		assert.Equal(t, engine.StageGatherer, resp.ActiveStage)
	})

	t.Run("missing", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/v1/oracle/runs/nope", "")
		require.Equal(t, http.StatusNotFound, w.Code)

		var resp datatypes.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
	})
}

func TestListRuns(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	t.Run("empty store returns empty array", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/v1/oracle/runs", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"runs": []}`, w.Body.String())
	})

	t.Run("lists saved runs", func(t *testing.T) {
		require.NoError(t, store.Save(context.Background(), engine.NewRunState("a", "q")))
		require.NoError(t, store.Save(context.Background(), engine.NewRunState("b", "q")))

		w := doRequest(router, http.MethodGet, "/v1/oracle/runs", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.RunListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.ElementsMatch(t, []string{"a", "b"}, resp.Runs)
	})
}

func TestDeleteRun(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()
	router := newTestRouter(t, store)

	require.NoError(t, store.Save(context.Background(), engine.NewRunState("doomed", "q")))

	w := doRequest(router, http.MethodDelete, "/v1/oracle/runs/doomed", "")
	require.Equal(t, http.StatusOK, w.Code)

	_, err := store.Load(context.Background(), "doomed")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	// Deleting again still succeeds.
	w = doRequest(router, http.MethodDelete, "/v1/oracle/runs/doomed", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", ServiceInfo())

	w := doRequest(router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "keiba-oracle")
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck(func() datatypes.HealthResponse {
		return datatypes.HealthResponse{
			LLMConfigured:    true,
			SearchConfigured: false,
			SkillLoaded:      true,
		}
	}))

	w := doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.LLMConfigured)
	assert.False(t, resp.SearchConfigured)
	assert.True(t, resp.SkillLoaded)
}
