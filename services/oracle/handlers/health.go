// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keibalabs/oracle/services/oracle/datatypes"
)

// ServiceInfo describes the service at the root path.
func ServiceInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "keiba-oracle",
			"description": "Directed racing strategy workflow engine",
			"endpoints": []string{
				"GET /health",
				"POST /v1/oracle/run",
				"GET /v1/oracle/runs",
				"GET /v1/oracle/runs/:runId",
				"DELETE /v1/oracle/runs/:runId",
				"GET /v1/oracle/runs/:runId/watch",
			},
		})
	}
}

// StatusFunc reports the current collaborator readiness. It is called
// on every health request so the response reflects live state.
type StatusFunc func() datatypes.HealthResponse

// HealthCheck reports server and collaborator readiness. The status is
// always "ok" when the server can answer; the collaborator booleans
// tell callers which degraded paths are in effect.
func HealthCheck(status StatusFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := status()
		if resp.Status == "" {
			resp.Status = "ok"
		}
		c.JSON(http.StatusOK, resp)
	}
}
