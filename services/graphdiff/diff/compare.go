// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// Compare diffs two snapshots and produces an immutable GraphDiff.
//
// Node changes are emitted before edge changes so a later patch replay
// sees node additions before edges that may reference them. Within each
// entity kind, order follows target list order for additions and
// modifications, then source list order for removals, which keeps output
// deterministic for identical inputs.
//
// sourceVersion and targetVersion are labels only; they are carried into
// the resulting diff untouched.
func Compare(source, target *graph.Snapshot, sourceVersion, targetVersion string, opts Options) (*GraphDiff, error) {
	if source == nil || target == nil {
		return nil, ErrNilSnapshot
	}

	var nodeChanges, edgeChanges []Change

	// Node and edge halves read disjoint slices of immutable input, so
	// they can run concurrently.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		nodeChanges, err = compareNodes(source, target, opts)
		return err
	})
	g.Go(func() error {
		var err error
		edgeChanges, err = compareEdges(source, target, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	changes := make([]Change, 0, len(nodeChanges)+len(edgeChanges))
	changes = append(changes, nodeChanges...)
	changes = append(changes, edgeChanges...)

	if opts.SemanticDiff {
		applySemanticOverrides(changes, source, target)
	}
	attachMigrations(changes)

	var conflicts []Conflict
	conflicts = append(conflicts, duplicateIDConflicts(source, "source")...)
	conflicts = append(conflicts, duplicateIDConflicts(target, "target")...)
	if opts.IncludeConflictResolution {
		conflicts = append(conflicts, DetectConflicts(changes, target, opts)...)
	}

	return &GraphDiff{
		ID:            uuid.NewString(),
		SourceVersion: sourceVersion,
		TargetVersion: targetVersion,
		Timestamp:     time.Now().UTC(),
		Changes:       changes,
		Statistics:    ComputeStatistics(changes, source, target),
		Conflicts:     conflicts,
	}, nil
}

func compareNodes(source, target *graph.Snapshot, opts Options) ([]Change, error) {
	srcIdx := source.NodeIndex()
	tgtIdx := target.NodeIndex()

	var changes []Change
	for _, tn := range target.Nodes {
		sn, exists := srcIdx[tn.ID]
		if !exists {
			changes = append(changes, &NodeAdded{
				changeBase: changeBase{ID: tn.ID, Sem: &SemanticChange{
					Category:    CategoryStructural,
					Impact:      ImpactEnhancement,
					Description: fmt.Sprintf("node %s added", tn.ID),
				}},
				After: tn,
			})
			continue
		}
		nodeChanges, err := compareNodePair(sn, tn, opts)
		if err != nil {
			return nil, err
		}
		changes = append(changes, nodeChanges...)
	}
	for _, sn := range source.Nodes {
		if _, exists := tgtIdx[sn.ID]; !exists {
			changes = append(changes, &NodeRemoved{
				changeBase: changeBase{ID: sn.ID, Sem: &SemanticChange{
					Category:    CategoryStructural,
					Impact:      ImpactBreaking,
					Description: fmt.Sprintf("node %s removed", sn.ID),
				}},
				Before: sn,
			})
		}
	}
	return changes, nil
}

func compareNodePair(before, after *graph.Node, opts Options) ([]Change, error) {
	var changes []Change

	if before.Type != after.Type {
		changes = append(changes, &NodeModified{
			changeBase: changeBase{ID: after.ID, Sem: &SemanticChange{
				Category:    CategoryBehavioral,
				Impact:      ImpactBreaking,
				Description: fmt.Sprintf("node %s type changed from %s to %s", after.ID, before.Type, after.Type),
			}},
			Before:   before,
			After:    after,
			Path:     []string{"type"},
			OldValue: before.Type,
			NewValue: after.Type,
		})
	}

	dataDiffs, err := DeepDiff(anyMap(before.Data), anyMap(after.Data), []string{"data"}, opts)
	if err != nil {
		return nil, err
	}
	for _, fd := range dataDiffs {
		changes = append(changes, &NodeModified{
			changeBase: changeBase{ID: after.ID, Sem: &SemanticChange{
				Category:    CategoryData,
				Impact:      dataImpact(fd.OldValue, fd.NewValue),
				Description: fmt.Sprintf("node %s field %s changed", after.ID, joinPath(fd.Path)),
			}},
			Before:   before,
			After:    after,
			Path:     fd.Path,
			OldValue: fd.OldValue,
			NewValue: fd.NewValue,
		})
	}
	return changes, nil
}

func compareEdges(source, target *graph.Snapshot, opts Options) ([]Change, error) {
	srcIdx := source.EdgeIndex()
	tgtIdx := target.EdgeIndex()

	var changes []Change
	for _, te := range target.Edges {
		se, exists := srcIdx[te.ID]
		if !exists {
			changes = append(changes, &EdgeAdded{
				changeBase: changeBase{ID: te.ID, Sem: &SemanticChange{
					Category:          CategoryStructural,
					Impact:            ImpactEnhancement,
					Description:       fmt.Sprintf("edge %s added (%s -> %s)", te.ID, te.Source, te.Target),
					AffectedRelations: []string{te.Source, te.Target},
				}},
				After: te,
			})
			continue
		}
		edgeChanges, err := compareEdgePair(se, te, opts)
		if err != nil {
			return nil, err
		}
		changes = append(changes, edgeChanges...)
	}
	for _, se := range source.Edges {
		if _, exists := tgtIdx[se.ID]; !exists {
			changes = append(changes, &EdgeRemoved{
				changeBase: changeBase{ID: se.ID, Sem: &SemanticChange{
					Category:          CategoryStructural,
					Impact:            ImpactBreaking,
					Description:       fmt.Sprintf("edge %s removed (%s -> %s)", se.ID, se.Source, se.Target),
					AffectedRelations: []string{se.Source, se.Target},
				}},
				Before: se,
			})
		}
	}
	return changes, nil
}

func compareEdgePair(before, after *graph.Edge, opts Options) ([]Change, error) {
	var changes []Change

	if before.Type != after.Type {
		changes = append(changes, &EdgeModified{
			changeBase: changeBase{ID: after.ID, Sem: &SemanticChange{
				Category:    CategoryBehavioral,
				Impact:      ImpactBreaking,
				Description: fmt.Sprintf("edge %s type changed from %s to %s", after.ID, before.Type, after.Type),
			}},
			Before:   before,
			After:    after,
			Path:     []string{"type"},
			OldValue: before.Type,
			NewValue: after.Type,
		})
	}

	if before.Source != after.Source {
		changes = append(changes, endpointChange(before, after, "source", before.Source, after.Source))
	}
	if before.Target != after.Target {
		changes = append(changes, endpointChange(before, after, "target", before.Target, after.Target))
	}

	dataDiffs, err := DeepDiff(anyMap(before.Data), anyMap(after.Data), []string{"data"}, opts)
	if err != nil {
		return nil, err
	}
	for _, fd := range dataDiffs {
		changes = append(changes, &EdgeModified{
			changeBase: changeBase{ID: after.ID, Sem: &SemanticChange{
				Category:    CategoryData,
				Impact:      dataImpact(fd.OldValue, fd.NewValue),
				Description: fmt.Sprintf("edge %s field %s changed", after.ID, joinPath(fd.Path)),
			}},
			Before:   before,
			After:    after,
			Path:     fd.Path,
			OldValue: fd.OldValue,
			NewValue: fd.NewValue,
		})
	}
	return changes, nil
}

// endpointChange records one reconnected edge endpoint as a structural
// breaking modification. AffectedRelations carries old and new endpoints,
// old first, without duplicates.
func endpointChange(before, after *graph.Edge, field, oldID, newID string) Change {
	return &EdgeModified{
		changeBase: changeBase{ID: after.ID, Sem: &SemanticChange{
			Category: CategoryStructural,
			Impact:   ImpactBreaking,
			Description: fmt.Sprintf("edge %s %s reconnected from %s to %s",
				after.ID, field, oldID, newID),
			AffectedRelations: endpointUnion(before, after),
		}},
		Before:   before,
		After:    after,
		Path:     []string{field},
		OldValue: oldID,
		NewValue: newID,
	}
}

// endpointUnion returns old and new endpoints without duplicates,
// old endpoints first.
func endpointUnion(before, after *graph.Edge) []string {
	out := []string{before.Source, before.Target}
	for _, id := range []string{after.Source, after.Target} {
		if id != before.Source && id != before.Target {
			out = append(out, id)
		}
	}
	return out
}

// duplicateIDConflicts surfaces duplicate entity ids as conflicts rather
// than rejecting the snapshot outright.
func duplicateIDConflicts(s *graph.Snapshot, label string) []Conflict {
	err := s.ValidateIDs()
	if err == nil {
		return nil
	}
	return []Conflict{{
		ID:          uuid.NewString(),
		Type:        ConflictStructural,
		Description: fmt.Sprintf("%s snapshot is malformed: %v", label, err),
		Severity:    SeverityCritical,
		ResolutionStrategies: []ConflictResolution{{
			Strategy:    StrategyManual,
			Description: "deduplicate entity ids in the analyzer output",
			Confidence:  1.0,
		}},
	}}
}

// anyMap widens a typed payload map so the deep differ sees a plain
// JSON-model object. A nil map diffs as an empty object, not null.
func anyMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
