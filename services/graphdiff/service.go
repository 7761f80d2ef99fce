// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphdiff exposes the graph diffing and patching engine as a
// service: snapshot comparison, conflict detection, patch compilation and
// replay, and a version registry, behind one facade consumed by the HTTP
// handlers and the CLI.
package graphdiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/grafity/services/graphdiff/diff"
	"github.com/AleutianAI/grafity/services/graphdiff/graph"
	"github.com/AleutianAI/grafity/services/graphdiff/patch"
	"github.com/AleutianAI/grafity/services/graphdiff/rules"
	"github.com/AleutianAI/grafity/services/graphdiff/telemetry"
	"github.com/AleutianAI/grafity/services/graphdiff/version"
)

// ServiceVersion is reported by health endpoints.
const ServiceVersion = "1.0.0"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Store is the version registry. Required.
	Store *version.Store

	// Rules is the forbidden-transition set used by conflict detection.
	// Nil means rules.Default().
	Rules *rules.Set

	// Logger for service operations. Nil means slog.Default().
	Logger *slog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *telemetry.Metrics
}

// Service is the engine facade. All comparison and patching methods are
// pure over their snapshot arguments; only the version store is shared
// mutable state, and it synchronizes internally.
type Service struct {
	store   *version.Store
	rules   *rules.Set
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewService constructs the facade.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("version store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ruleSet := cfg.Rules
	if ruleSet == nil {
		ruleSet = rules.Default()
	}
	return &Service{
		store:   cfg.Store,
		rules:   ruleSet,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Rules returns the live forbidden-transition set, so callers (and the
// rules file watcher) can extend it.
func (s *Service) Rules() *rules.Set { return s.rules }

// CompareGraphs diffs two snapshots. The resulting GraphDiff is
// registered in the version store for later retrieval by id.
func (s *Service) CompareGraphs(ctx context.Context, source, target *graph.Snapshot, opts diff.Options) (*diff.GraphDiff, error) {
	return s.compare(ctx, source, target, "", "", opts)
}

// CompareVersions diffs two stored versions by id. Fails with
// ErrVersionNotFound if either id is absent.
func (s *Service) CompareVersions(ctx context.Context, sourceID, targetID string, opts diff.Options) (*diff.GraphDiff, error) {
	source, err := s.store.GetVersion(sourceID)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", sourceID, ErrVersionNotFound)
	}
	target, err := s.store.GetVersion(targetID)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", targetID, ErrVersionNotFound)
	}
	return s.compare(ctx, source.Graph, target.Graph, sourceID, targetID, opts)
}

func (s *Service) compare(ctx context.Context, source, target *graph.Snapshot, sourceID, targetID string, opts diff.Options) (*diff.GraphDiff, error) {
	if opts.Rules == nil {
		opts.Rules = s.rules
	}
	if opts.Logger == nil {
		opts.Logger = s.logger
	}

	start := time.Now()
	d, err := diff.Compare(source, target, sourceID, targetID, opts)
	s.recordCompare(ctx, d, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreDiff(d); err != nil {
		// The diff itself is good; persistence is best-effort.
		s.logger.Warn("failed to register diff", "diff_id", d.ID, "error", err.Error())
	}

	s.logger.Info("snapshots compared",
		"diff_id", d.ID,
		"changes", len(d.Changes),
		"conflicts", len(d.Conflicts),
		"similarity", d.Statistics.Similarity,
	)
	return d, nil
}

func (s *Service) recordCompare(ctx context.Context, d *diff.GraphDiff, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ComparesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	s.metrics.CompareDuration.Record(ctx, elapsed.Seconds())
	if d == nil {
		return
	}
	for _, c := range d.Changes {
		s.metrics.ChangesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(c.Kind()))))
	}
	for _, c := range d.Conflicts {
		s.metrics.ConflictsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(c.Type))))
	}
}

// CreatePatch compiles a diff into an ordered, checksummed patch. The
// skipped report lists modifications the compiler could not express.
func (s *Service) CreatePatch(ctx context.Context, d *diff.GraphDiff, createdBy string) (*patch.Patch, []patch.SkippedChange, error) {
	if d == nil {
		return nil, nil, ErrNilDiff
	}
	p, skipped, err := patch.Compile(d, createdBy)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.PatchCompilesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
	if err != nil {
		return nil, nil, err
	}
	if len(skipped) > 0 {
		s.logger.Warn("patch compiled with skipped changes",
			"patch_id", p.ID, "operations", len(p.Operations), "skipped", len(skipped))
	}
	return p, skipped, nil
}

// ApplyPatch replays a patch against a snapshot, returning the patched
// snapshot. The input snapshot is never mutated.
func (s *Service) ApplyPatch(ctx context.Context, base *graph.Snapshot, p *patch.Patch) (*graph.Snapshot, error) {
	result, err := patch.Apply(base, p)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.PatchAppliesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		if err == nil {
			for _, op := range p.Operations {
				s.metrics.PatchOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(op.Op))))
			}
		}
	}
	return result, err
}

// StoreVersion registers a snapshot as a named version.
func (s *Service) StoreVersion(ctx context.Context, v *graph.Version) error {
	err := s.store.StoreVersion(v)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.VersionStoreOpsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", "store_version"), attribute.String("status", status)))
	}
	if err == nil {
		s.logger.Info("version stored", "version_id", v.ID, "author", v.Author)
	}
	return err
}

// GetVersion looks up a stored version by id.
func (s *Service) GetVersion(id string) (*graph.Version, error) {
	v, err := s.store.GetVersion(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, ErrVersionNotFound)
	}
	return v, nil
}

// VersionHistory lists stored versions, newest first.
func (s *Service) VersionHistory() []*graph.Version {
	return s.store.VersionHistory()
}

// GetDiff looks up a previously computed diff by id.
func (s *Service) GetDiff(id string) (*diff.GraphDiff, error) {
	d, err := s.store.GetDiff(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, ErrDiffNotFound)
	}
	return d, nil
}
