// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphdiff

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RegisterRoutes registers all graph diff routes with the router.
//
// Description:
//
//	Registers all /v1/graphdiff/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Diff Endpoints:
//
//	POST /v1/graphdiff/compare - Compare two inline snapshots
//	GET  /v1/graphdiff/diffs/:id - Get a stored diff
//	GET  /v1/graphdiff/diffs/:id/highlights - Get the highlight list for a diff
//
// Patch Endpoints:
//
//	POST /v1/graphdiff/patch - Compile a patch from a diff
//	POST /v1/graphdiff/patch/apply - Apply a patch to a snapshot
//
// Version Endpoints:
//
//	POST /v1/graphdiff/versions - Store a new version
//	GET  /v1/graphdiff/versions - List versions, newest first
//	GET  /v1/graphdiff/versions/:id - Get a version
//	POST /v1/graphdiff/versions/compare - Compare two stored versions
//
// Health Endpoints:
//
//	GET  /v1/graphdiff/health - Health check
//	GET  /v1/graphdiff/ready - Readiness check
//
// Example:
//
//	service, _ := graphdiff.NewService(graphdiff.ServiceConfig{Store: store})
//	handlers := graphdiff.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	graphdiff.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	gd := rg.Group("/graphdiff")
	{
		// Diffing
		gd.POST("/compare", handlers.HandleCompare)
		gd.GET("/diffs/:id", handlers.HandleGetDiff)
		gd.GET("/diffs/:id/highlights", handlers.HandleGetHighlights)

		// Patching
		gd.POST("/patch", handlers.HandleCreatePatch)
		gd.POST("/patch/apply", handlers.HandleApplyPatch)

		// Version store
		gd.POST("/versions", handlers.HandleStoreVersion)
		gd.GET("/versions", handlers.HandleListVersions)
		gd.GET("/versions/:id", handlers.HandleGetVersion)
		gd.POST("/versions/compare", handlers.HandleCompareVersions)

		// Health checks
		gd.GET("/health", handlers.HandleHealth)
		gd.GET("/ready", handlers.HandleReady)
	}
}

// RateLimitMiddleware returns a middleware that applies a global token
// bucket to all requests. Requests beyond the bucket are rejected with
// 429 rather than queued, keeping compare bursts from piling up behind
// each other.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
