// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the oracle API endpoints onto a gin router.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/keibalabs/oracle/services/engine"
	"github.com/keibalabs/oracle/services/oracle/handlers"
)

// SetupRoutes registers all oracle endpoints.
func SetupRoutes(router *gin.Engine, eng *engine.Engine, store engine.Store, status handlers.StatusFunc) {
	router.GET("/", handlers.ServiceInfo())
	router.GET("/health", handlers.HealthCheck(status))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		oracle := v1.Group("/oracle")
		{
			oracle.POST("/run", handlers.HandleOracleRun(eng))
			oracle.GET("/runs", handlers.ListRuns(store))
			oracle.GET("/runs/:runId", handlers.GetRun(store))
			oracle.DELETE("/runs/:runId", handlers.DeleteRun(store))
			oracle.GET("/runs/:runId/watch", handlers.WatchRun(store))
		}
	}
}
