// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the pre-defined instruments for the diff service.
// All metrics use the "graphdiff_" prefix.
//
// Thread Safety: safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP ---

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// --- Comparison ---

	// ComparesTotal counts snapshot comparisons by status.
	ComparesTotal metric.Int64Counter

	// CompareDuration records comparison duration in seconds.
	CompareDuration metric.Float64Histogram

	// ChangesTotal counts detected changes by kind.
	ChangesTotal metric.Int64Counter

	// ConflictsTotal counts detected conflicts by type.
	ConflictsTotal metric.Int64Counter

	// --- Patching ---

	// PatchCompilesTotal counts patch compilations by status.
	PatchCompilesTotal metric.Int64Counter

	// PatchAppliesTotal counts patch applications by status.
	PatchAppliesTotal metric.Int64Counter

	// PatchOperationsTotal counts applied patch operations by op.
	PatchOperationsTotal metric.Int64Counter

	// --- Version store ---

	// VersionStoreOpsTotal counts version store operations by op and status.
	VersionStoreOpsTotal metric.Int64Counter
}

// NewMetrics registers all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"graphdiff_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"graphdiff_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.ComparesTotal, err = meter.Int64Counter(
		"graphdiff_compares_total",
		metric.WithDescription("Total snapshot comparisons"),
		metric.WithUnit("{compare}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create compares_total: %w", err)
	}

	m.CompareDuration, err = meter.Float64Histogram(
		"graphdiff_compare_duration_seconds",
		metric.WithDescription("Snapshot comparison duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create compare_duration: %w", err)
	}

	m.ChangesTotal, err = meter.Int64Counter(
		"graphdiff_changes_total",
		metric.WithDescription("Total detected changes"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create changes_total: %w", err)
	}

	m.ConflictsTotal, err = meter.Int64Counter(
		"graphdiff_conflicts_total",
		metric.WithDescription("Total detected conflicts"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create conflicts_total: %w", err)
	}

	m.PatchCompilesTotal, err = meter.Int64Counter(
		"graphdiff_patch_compiles_total",
		metric.WithDescription("Total patch compilations"),
		metric.WithUnit("{patch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create patch_compiles_total: %w", err)
	}

	m.PatchAppliesTotal, err = meter.Int64Counter(
		"graphdiff_patch_applies_total",
		metric.WithDescription("Total patch applications"),
		metric.WithUnit("{patch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create patch_applies_total: %w", err)
	}

	m.PatchOperationsTotal, err = meter.Int64Counter(
		"graphdiff_patch_operations_total",
		metric.WithDescription("Total applied patch operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create patch_operations_total: %w", err)
	}

	m.VersionStoreOpsTotal, err = meter.Int64Counter(
		"graphdiff_version_store_ops_total",
		metric.WithDescription("Total version store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create version_store_ops_total: %w", err)
	}

	return m, nil
}
