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
	"github.com/AleutianAI/grafity/services/graphdiff/diff"
	"github.com/AleutianAI/grafity/services/graphdiff/graph"
	"github.com/AleutianAI/grafity/services/graphdiff/patch"
)

// DiffOptions is the wire form of diff.Options. Custom comparators are an
// in-process extension point and are not accepted over the wire.
type DiffOptions struct {
	IgnoreMetadata            bool `json:"ignoreMetadata"`
	IgnoreTimestamps          bool `json:"ignoreTimestamps"`
	SemanticDiff              bool `json:"semanticDiff"`
	IncludeConflictResolution bool `json:"includeConflictResolution"`
	ContextWindow             int  `json:"contextWindow"`
}

func (o DiffOptions) toOptions() diff.Options {
	return diff.Options{
		IgnoreMetadata:            o.IgnoreMetadata,
		IgnoreTimestamps:          o.IgnoreTimestamps,
		SemanticDiff:              o.SemanticDiff,
		IncludeConflictResolution: o.IncludeConflictResolution,
		ContextWindow:             o.ContextWindow,
	}
}

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	Source  *graph.Snapshot `json:"source" binding:"required"`
	Target  *graph.Snapshot `json:"target" binding:"required"`
	Options DiffOptions     `json:"options"`
}

// CompareVersionsRequest is the body of POST /versions/compare.
type CompareVersionsRequest struct {
	SourceVersion string      `json:"sourceVersion" binding:"required"`
	TargetVersion string      `json:"targetVersion" binding:"required"`
	Options       DiffOptions `json:"options"`
}

// CreatePatchRequest is the body of POST /patch. Either DiffID (a stored
// diff) or Diff (inline) must be set.
type CreatePatchRequest struct {
	DiffID    string          `json:"diffId"`
	Diff      *diff.GraphDiff `json:"diff"`
	CreatedBy string          `json:"createdBy"`
}

// CreatePatchResponse returns the compiled patch plus the skipped-change
// report.
type CreatePatchResponse struct {
	Patch   *patch.Patch          `json:"patch"`
	Skipped []patch.SkippedChange `json:"skipped,omitempty"`
}

// ApplyPatchRequest is the body of POST /patch/apply.
type ApplyPatchRequest struct {
	Snapshot *graph.Snapshot `json:"snapshot" binding:"required"`
	Patch    *patch.Patch    `json:"patch" binding:"required"`
}

// StoreVersionRequest is the body of POST /versions.
type StoreVersionRequest struct {
	ID       string                `json:"id"`
	Author   string                `json:"author"`
	Message  string                `json:"message"`
	Graph    *graph.Snapshot       `json:"graph" binding:"required"`
	Metadata graph.VersionMetadata `json:"metadata"`
}

// HealthResponse is returned by health and readiness checks.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Highlight is one renderable row derived from a change, consumed by
// external visualization layers.
type Highlight struct {
	EntityID    string          `json:"entityId"`
	EntityKind  diff.EntityKind `json:"entityKind"`
	ChangeKind  diff.ChangeKind `json:"changeKind"`
	Impact      diff.Impact     `json:"impact"`
	Description string          `json:"description"`
}

// Highlights derives the per-change highlight list for a diff.
func Highlights(d *diff.GraphDiff) []Highlight {
	if d == nil {
		return nil
	}
	out := make([]Highlight, 0, len(d.Changes))
	for _, c := range d.Changes {
		h := Highlight{
			EntityID:   c.EntityID(),
			EntityKind: c.Entity(),
			ChangeKind: c.Kind(),
		}
		if sem := c.Semantic(); sem != nil {
			h.Impact = sem.Impact
			h.Description = sem.Description
		}
		out = append(out, h)
	}
	return out
}
