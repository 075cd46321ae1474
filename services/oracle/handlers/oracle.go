// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the gin handlers for the oracle API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keibalabs/oracle/services/engine"
	"github.com/keibalabs/oracle/services/oracle/datatypes"
)

// HandleOracleRun executes a run to completion and returns the terminal
// snapshot. Supplying a run_id that names an existing checkpoint resumes
// that run instead of starting a new one.
func HandleOracleRun(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RunRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse("Invalid request body"))
			return
		}

		state, err := eng.Run(c.Request.Context(), req.RunID, req.Query)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, engine.ErrEmptyQuery),
				errors.Is(err, engine.ErrInvalidRunID):
				status = http.StatusBadRequest
			case errors.Is(err, engine.ErrRunCancelled):
				status = http.StatusRequestTimeout
			}
			slog.Error("oracle run failed",
				"run_id", req.RunID,
				"error", err,
			)
			c.JSON(status, datatypes.NewErrorResponse(err.Error()))
			return
		}

		c.JSON(http.StatusOK, datatypes.FromRunState(state))
	}
}

// GetRun returns the latest checkpoint for a run.
func GetRun(store engine.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")
		state, err := store.Load(c.Request.Context(), runID)
		if err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				c.JSON(http.StatusNotFound, datatypes.NewErrorResponse("run not found"))
				return
			}
			slog.Error("checkpoint load failed", "run_id", runID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusOK, datatypes.FromRunState(state))
	}
}

// ListRuns returns the IDs of every checkpointed run.
func ListRuns(store engine.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := store.List(c.Request.Context())
		if err != nil {
			slog.Error("checkpoint list failed", "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse(err.Error()))
			return
		}
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, datatypes.RunListResponse{Runs: ids})
	}
}

// DeleteRun removes a run's checkpoint. Deleting a missing run succeeds.
func DeleteRun(store engine.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")
		if err := store.Delete(c.Request.Context(), runID); err != nil {
			slog.Error("checkpoint delete failed", "run_id", runID, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
