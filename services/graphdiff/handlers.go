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
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
	"github.com/AleutianAI/grafity/services/graphdiff/patch"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers contains the HTTP handlers for the graph diff service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleCompare handles POST /v1/graphdiff/compare.
//
// Description:
//
//	Compares two graph snapshots supplied inline and returns the full
//	diff: classified changes, conflicts, and statistics.
//
// Request Body:
//
//	CompareRequest
//
// Response:
//
//	200 OK: diff.GraphDiff
//	400 Bad Request: Validation error
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleCompare(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCompare")

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	d, err := h.svc.CompareGraphs(c.Request.Context(), req.Source, req.Target, req.Options.toOptions())
	if err != nil {
		logger.Error("Compare failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "COMPARE_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, d)
}

// HandleCompareVersions handles POST /v1/graphdiff/versions/compare.
//
// Description:
//
//	Compares two stored versions by id.
//
// Request Body:
//
//	CompareVersionsRequest
//
// Response:
//
//	200 OK: diff.GraphDiff
//	400 Bad Request: Validation error
//	404 Not Found: Unknown version id
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleCompareVersions(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCompareVersions")

	var req CompareVersionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	d, err := h.svc.CompareVersions(c.Request.Context(), req.SourceVersion, req.TargetVersion, req.Options.toOptions())
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "COMPARE_FAILED"
		if errors.Is(err, ErrVersionNotFound) {
			statusCode = http.StatusNotFound
			errCode = "VERSION_NOT_FOUND"
		}
		logger.Error("Compare versions failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	c.JSON(http.StatusOK, d)
}

// HandleCreatePatch handles POST /v1/graphdiff/patch.
//
// Description:
//
//	Compiles a patch from a diff. The diff is taken either inline or,
//	when diffId is set, from the diff store. Changes that cannot be
//	expressed as operations are returned in the skipped report.
//
// Request Body:
//
//	CreatePatchRequest
//
// Response:
//
//	200 OK: CreatePatchResponse
//	400 Bad Request: Validation error
//	404 Not Found: Unknown diff id
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleCreatePatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreatePatch")

	var req CreatePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	d := req.Diff
	if d == nil && req.DiffID != "" {
		stored, err := h.svc.GetDiff(req.DiffID)
		if err != nil {
			logger.Warn("Diff not found", "diff_id", req.DiffID)
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "DIFF_NOT_FOUND",
			})
			return
		}
		d = stored
	}
	if d == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "either diff or diffId must be set",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	p, skipped, err := h.svc.CreatePatch(c.Request.Context(), d, req.CreatedBy)
	if err != nil {
		logger.Error("Patch compilation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "PATCH_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, CreatePatchResponse{Patch: p, Skipped: skipped})
}

// HandleApplyPatch handles POST /v1/graphdiff/patch/apply.
//
// Description:
//
//	Applies a patch to a snapshot and returns the patched snapshot.
//	The base snapshot is never mutated. Checksum mismatches and
//	operation failures map to 409 and 422 respectively.
//
// Request Body:
//
//	ApplyPatchRequest
//
// Response:
//
//	200 OK: graph.Snapshot
//	400 Bad Request: Validation error
//	409 Conflict: Checksum mismatch
//	422 Unprocessable Entity: An operation failed
func (h *Handlers) HandleApplyPatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleApplyPatch")

	var req ApplyPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	result, err := h.svc.ApplyPatch(c.Request.Context(), req.Snapshot, req.Patch)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "APPLY_FAILED"
		switch {
		case errors.Is(err, patch.ErrChecksumMismatch):
			statusCode = http.StatusConflict
			errCode = "CHECKSUM_MISMATCH"
		case errors.Is(err, patch.ErrEntityNotFound),
			errors.Is(err, patch.ErrMalformedPath),
			errors.Is(err, patch.ErrTestFailed):
			statusCode = http.StatusUnprocessableEntity
			errCode = "OPERATION_FAILED"
		}
		logger.Error("Patch apply failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleStoreVersion handles POST /v1/graphdiff/versions.
//
// Description:
//
//	Stores a graph snapshot as a new version. An empty id is filled
//	with a generated UUID.
//
// Request Body:
//
//	StoreVersionRequest
//
// Response:
//
//	200 OK: graph.Version
//	400 Bad Request: Validation error
//	500 Internal Server Error: Storage error
func (h *Handlers) HandleStoreVersion(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStoreVersion")

	var req StoreVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	v := &graph.Version{
		ID:       req.ID,
		Author:   req.Author,
		Message:  req.Message,
		Graph:    req.Graph,
		Metadata: req.Metadata,
	}
	if err := h.svc.StoreVersion(c.Request.Context(), v); err != nil {
		logger.Error("Store version failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "STORE_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, v)
}

// HandleListVersions handles GET /v1/graphdiff/versions.
//
// Response:
//
//	200 OK: []graph.Version, newest first
func (h *Handlers) HandleListVersions(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.VersionHistory())
}

// HandleGetVersion handles GET /v1/graphdiff/versions/:id.
//
// Response:
//
//	200 OK: graph.Version
//	404 Not Found: Unknown version id
func (h *Handlers) HandleGetVersion(c *gin.Context) {
	v, err := h.svc.GetVersion(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "VERSION_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, v)
}

// HandleGetDiff handles GET /v1/graphdiff/diffs/:id.
//
// Response:
//
//	200 OK: diff.GraphDiff
//	404 Not Found: Unknown diff id
func (h *Handlers) HandleGetDiff(c *gin.Context) {
	d, err := h.svc.GetDiff(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "DIFF_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, d)
}

// HandleGetHighlights handles GET /v1/graphdiff/diffs/:id/highlights.
//
// Response:
//
//	200 OK: []Highlight
//	404 Not Found: Unknown diff id
func (h *Handlers) HandleGetHighlights(c *gin.Context) {
	d, err := h.svc.GetDiff(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "DIFF_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, Highlights(d))
}

// HandleHealth handles GET /v1/graphdiff/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/graphdiff/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ready",
		Version: ServiceVersion,
	})
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
