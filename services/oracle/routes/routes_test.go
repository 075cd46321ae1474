// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keibalabs/oracle/services/engine"
	"github.com/keibalabs/oracle/services/engine/checkpoint"
	"github.com/keibalabs/oracle/services/oracle/datatypes"
)

type idleStage struct{ name engine.Stage }

func (s idleStage) Name() engine.Stage { return s.name }

func (s idleStage) Execute(_ context.Context, _ engine.RunState) engine.Outcome {
	done := "done"
	return engine.Outcome{
		Kind:   engine.OutcomeAdvance,
		Next:   engine.StageIdle,
		Update: engine.Update{FinalOutput: &done},
	}
}

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	eng, err := engine.NewEngine(store, engine.DefaultPolicy(), slog.Default(),
		idleStage{engine.StageGatherer},
		idleStage{engine.StagePlanner},
		idleStage{engine.StageReviewer},
	)
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, eng, store, func() datatypes.HealthResponse {
		return datatypes.HealthResponse{}
	})

	want := map[string]string{
		"/":                            http.MethodGet,
		"/health":                      http.MethodGet,
		"/v1/oracle/run":               http.MethodPost,
		"/v1/oracle/runs":              http.MethodGet,
		"/v1/oracle/runs/:runId":       http.MethodGet,
		"/v1/oracle/runs/:runId/watch": http.MethodGet,
	}
	registered := make(map[string]string)
	deleteSeen := false
	for _, r := range router.Routes() {
		if r.Method == http.MethodDelete && r.Path == "/v1/oracle/runs/:runId" {
			deleteSeen = true
			continue
		}
		registered[r.Path] = r.Method
	}
	for path, method := range want {
		assert.Equal(t, method, registered[path], "route %s", path)
	}
	assert.True(t, deleteSeen, "DELETE /v1/oracle/runs/:runId not registered")
}
