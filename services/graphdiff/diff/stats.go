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

import "github.com/AleutianAI/grafity/services/graphdiff/graph"

// ComputeStatistics aggregates per-kind counts and the similarity and
// complexity ratios for a change set over its two snapshots.
//
// similarity = 1 - distinctChangedEntities/unionSize, where unionSize is
// the larger snapshot's total entity count. complexity is the fraction of
// changes that are structural or breaking, over unionSize. Both are ratios
// of bounded non-negative quantities and land in [0,1] by construction;
// they are clamped anyway so float arithmetic cannot leak outside.
func ComputeStatistics(changes []Change, source, target *graph.Snapshot) Statistics {
	var stats Statistics

	changed := make(map[string]struct{}, len(changes))
	structuralOrBreaking := 0
	for _, c := range changes {
		switch c.Kind() {
		case KindNodeAdded:
			stats.NodesAdded++
		case KindNodeRemoved:
			stats.NodesRemoved++
		case KindNodeModified:
			stats.NodesModified++
		case KindEdgeAdded:
			stats.EdgesAdded++
		case KindEdgeRemoved:
			stats.EdgesRemoved++
		case KindEdgeModified:
			stats.EdgesModified++
		}
		changed[c.EntityID()] = struct{}{}
		sem := c.Semantic()
		if sem != nil && (sem.Category == CategoryStructural || sem.Impact == ImpactBreaking) {
			structuralOrBreaking++
		}
	}
	stats.TotalChanges = len(changes)

	sourceSize := len(source.Nodes) + len(source.Edges)
	targetSize := len(target.Nodes) + len(target.Edges)
	unionSize := sourceSize
	if targetSize > unionSize {
		unionSize = targetSize
	}

	if unionSize > 0 {
		stats.Similarity = clamp01(1 - float64(len(changed))/float64(unionSize))
		stats.Complexity = clamp01(float64(structuralOrBreaking) / float64(unionSize))
	} else {
		stats.Similarity = 1
		stats.Complexity = 0
	}
	return stats
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
