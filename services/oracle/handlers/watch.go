// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/keibalabs/oracle/services/engine"
	"github.com/keibalabs/oracle/services/oracle/datatypes"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

// watchInterval is how often the watcher polls the checkpoint store for
// new trace entries.
const watchInterval = 500 * time.Millisecond

// traceEvent is one websocket frame sent to a watching client.
type traceEvent struct {
	Type     string             `json:"type"`
	RunID    string             `json:"run_id"`
	Entry    *engine.TraceEntry `json:"entry,omitempty"`
	Terminal bool               `json:"terminal,omitempty"`
}

// WatchRun streams a run's trace over a websocket.
//
// Description:
//
//	Polls the checkpoint store and pushes each trace entry the client
//	has not yet seen as a "trace" frame. When the run reaches its
//	terminal stage a final "done" frame is sent and the socket closes.
//	Because snapshots are append-only, polling never misses or
//	duplicates entries.
func WatchRun(store engine.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")

		if _, err := store.Load(c.Request.Context(), runID); err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				c.JSON(http.StatusNotFound, datatypes.NewErrorResponse("run not found"))
				return
			}
			c.JSON(http.StatusInternalServerError, datatypes.NewErrorResponse(err.Error()))
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "run_id", runID, "error", err)
			return
		}
		defer conn.Close()

		ctx := c.Request.Context()
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		sent := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			state, err := store.Load(ctx, runID)
			if err != nil {
				slog.Warn("watch poll failed", "run_id", runID, "error", err)
				return
			}

			for ; sent < len(state.Trace); sent++ {
				entry := state.Trace[sent]
				if err := conn.WriteJSON(traceEvent{
					Type:  "trace",
					RunID: runID,
					Entry: &entry,
				}); err != nil {
					return
				}
			}

			if state.Terminal() {
				_ = conn.WriteJSON(traceEvent{
					Type:     "done",
					RunID:    runID,
					Terminal: true,
				})
				return
			}
		}
	}
}
