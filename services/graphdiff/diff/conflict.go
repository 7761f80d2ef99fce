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

	"github.com/google/uuid"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// DetectConflicts scans a change set for structural inconsistencies:
// edges that reference removed nodes, and type transitions that the
// configured rule set forbids.
//
// target is the post-change snapshot; it is needed to catch edges that
// survive unchanged while a node they reference is removed, since those
// produce no edge change of their own. A nil target limits orphan
// detection to the change set.
//
// Each conflict carries candidate resolutions with confidence scores. The
// detector never picks one; that choice belongs to the caller.
func DetectConflicts(changes []Change, target *graph.Snapshot, opts Options) []Conflict {
	var conflicts []Conflict
	if c := detectOrphanedEdges(changes, target); c != nil {
		conflicts = append(conflicts, *c)
	}
	conflicts = append(conflicts, detectForbiddenTransitions(changes, opts)...)
	return conflicts
}

// detectOrphanedEdges finds edges whose post-change endpoints reference
// nodes removed by the same change set, whether the edge was added,
// rewired, or simply retained in the target snapshot. All offenders are
// grouped into a single structural conflict.
func detectOrphanedEdges(changes []Change, target *graph.Snapshot) *Conflict {
	removed := make(map[string]struct{})
	for _, c := range changes {
		if _, ok := c.(*NodeRemoved); ok {
			removed[c.EntityID()] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return nil
	}

	var orphaned []string
	seen := make(map[string]struct{})
	record := func(e *graph.Edge) {
		if e == nil {
			return
		}
		_, srcGone := removed[e.Source]
		_, tgtGone := removed[e.Target]
		if !srcGone && !tgtGone {
			return
		}
		if _, dup := seen[e.ID]; dup {
			return
		}
		seen[e.ID] = struct{}{}
		orphaned = append(orphaned, e.ID)
	}

	for _, c := range changes {
		switch ec := c.(type) {
		case *EdgeAdded:
			record(ec.After)
		case *EdgeModified:
			record(ec.After)
		}
	}
	if target != nil {
		for _, e := range target.Edges {
			record(e)
		}
	}
	if len(orphaned) == 0 {
		return nil
	}

	return &Conflict{
		ID:          uuid.NewString(),
		Type:        ConflictStructural,
		Description: fmt.Sprintf("%d edge(s) reference removed nodes", len(orphaned)),
		Entities:    orphaned,
		Severity:    SeverityHigh,
		ResolutionStrategies: []ConflictResolution{
			{
				Strategy:    StrategyAutoResolve,
				Description: "remove orphaned edges",
				Confidence:  0.9,
			},
			{
				Strategy:    StrategyManual,
				Description: "review each orphaned edge and retarget or drop it",
				Confidence:  1.0,
			},
		},
	}
}

// detectForbiddenTransitions emits one conflict per change whose type
// transition is in the configured forbidden set.
func detectForbiddenTransitions(changes []Change, opts Options) []Conflict {
	ruleSet := opts.ruleSet()

	var conflicts []Conflict
	for _, c := range changes {
		path := changePath(c)
		if !pathIsType(path) {
			continue
		}
		oldType, okOld := typeString(c, true)
		newType, okNew := typeString(c, false)
		if !okOld || !okNew || !ruleSet.Forbidden(oldType, newType) {
			continue
		}

		conflictType := ConflictNode
		if c.Entity() == EntityEdge {
			conflictType = ConflictEdge
		}
		conflicts = append(conflicts, Conflict{
			ID:   uuid.NewString(),
			Type: conflictType,
			Description: fmt.Sprintf("entity %s has an incompatible type transition %s -> %s",
				c.EntityID(), oldType, newType),
			Entities: []string{c.EntityID()},
			Severity: SeverityHigh,
			ResolutionStrategies: []ConflictResolution{
				{
					Strategy:    StrategyKeepSource,
					Description: fmt.Sprintf("keep the original type %s", oldType),
					Confidence:  0.5,
				},
				{
					Strategy:    StrategyKeepTarget,
					Description: fmt.Sprintf("accept the new type %s", newType),
					Confidence:  0.5,
				},
				{
					Strategy:    StrategyManual,
					Description: "resolve the transition by hand",
					Confidence:  1.0,
				},
			},
		})
	}
	return conflicts
}

// typeString extracts the old or new value of a type-touching modification
// as a string.
func typeString(c Change, old bool) (string, bool) {
	var v any
	switch m := c.(type) {
	case *NodeModified:
		if old {
			v = m.OldValue
		} else {
			v = m.NewValue
		}
	case *EdgeModified:
		if old {
			v = m.OldValue
		} else {
			v = m.NewValue
		}
	default:
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
