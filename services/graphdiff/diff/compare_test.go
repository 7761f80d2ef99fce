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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

func node(id, nodeType string, data map[string]any) *graph.Node {
	return &graph.Node{ID: id, Type: nodeType, Data: data}
}

func edge(id, source, target, edgeType string) *graph.Edge {
	return &graph.Edge{ID: id, Source: source, Target: target, Type: edgeType}
}

func snapshot(nodes []*graph.Node, edges []*graph.Edge) *graph.Snapshot {
	return &graph.Snapshot{Nodes: nodes, Edges: edges}
}

func TestCompare_NilSnapshot(t *testing.T) {
	s := snapshot(nil, nil)
	_, err := Compare(nil, s, "", "", Options{})
	assert.True(t, errors.Is(err, ErrNilSnapshot))
	_, err = Compare(s, nil, "", "", Options{})
	assert.True(t, errors.Is(err, ErrNilSnapshot))
}

func TestCompare_IdenticalSnapshots(t *testing.T) {
	s := snapshot(
		[]*graph.Node{node("a", "component", map[string]any{"k": "v"})},
		[]*graph.Edge{edge("e1", "a", "a", "self")},
	)

	d, err := Compare(s, s.Clone(), "v1", "v2", Options{})
	require.NoError(t, err)
	assert.Empty(t, d.Changes)
	assert.Empty(t, d.Conflicts)
	assert.Equal(t, 1.0, d.Statistics.Similarity)
	assert.Equal(t, 0.0, d.Statistics.Complexity)
	assert.Equal(t, "v1", d.SourceVersion)
	assert.Equal(t, "v2", d.TargetVersion)
	assert.NotEmpty(t, d.ID)
}

func TestCompare_EmptySnapshots(t *testing.T) {
	d, err := Compare(snapshot(nil, nil), snapshot(nil, nil), "", "", Options{})
	require.NoError(t, err)
	assert.Empty(t, d.Changes)
	assert.Equal(t, 1.0, d.Statistics.Similarity)
	assert.Equal(t, 0.0, d.Statistics.Complexity)
}

func TestCompare_NodeAdded(t *testing.T) {
	source := snapshot(nil, nil)
	target := snapshot([]*graph.Node{node("a", "component", nil)}, nil)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)

	added, ok := d.Changes[0].(*NodeAdded)
	require.True(t, ok)
	assert.Equal(t, "a", added.EntityID())
	assert.Equal(t, KindNodeAdded, added.Kind())
	assert.Equal(t, CategoryStructural, added.Semantic().Category)
	assert.Equal(t, ImpactEnhancement, added.Semantic().Impact)
	assert.Same(t, target.Nodes[0], added.After)
}

func TestCompare_NodeRemoved(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", nil)}, nil)
	target := snapshot(nil, nil)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)

	removed, ok := d.Changes[0].(*NodeRemoved)
	require.True(t, ok)
	assert.Equal(t, ImpactBreaking, removed.Semantic().Impact)
	// Breaking removals get an advisory manual migration
	require.Len(t, removed.Semantic().Migrations, 1)
	assert.Equal(t, MigrationManual, removed.Semantic().Migrations[0].Type)
}

func TestCompare_AddRemoveSymmetry(t *testing.T) {
	// Swapping source and target swaps added and removed counts
	a := snapshot([]*graph.Node{node("x", "component", nil)}, nil)
	b := snapshot([]*graph.Node{node("y", "component", nil)}, nil)

	forward, err := Compare(a, b, "", "", Options{})
	require.NoError(t, err)
	backward, err := Compare(b, a, "", "", Options{})
	require.NoError(t, err)

	assert.Equal(t, forward.Statistics.NodesAdded, backward.Statistics.NodesRemoved)
	assert.Equal(t, forward.Statistics.NodesRemoved, backward.Statistics.NodesAdded)
}

func TestCompare_NodeTypeChanged(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", nil)}, nil)
	target := snapshot([]*graph.Node{node("a", "function", nil)}, nil)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)

	mod, ok := d.Changes[0].(*NodeModified)
	require.True(t, ok)
	assert.Equal(t, []string{"type"}, mod.Path)
	assert.Equal(t, "component", mod.OldValue)
	assert.Equal(t, "function", mod.NewValue)
	assert.Equal(t, CategoryBehavioral, mod.Semantic().Category)
	assert.Equal(t, ImpactBreaking, mod.Semantic().Impact)
	// Type changes carry a data-transform migration
	require.NotEmpty(t, mod.Semantic().Migrations)
	assert.Equal(t, MigrationDataTransform, mod.Semantic().Migrations[0].Type)
	assert.NotEmpty(t, mod.Semantic().Migrations[0].Code)
}

func TestCompare_NodeDataChanges(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"kept":    "same",
		"changed": "old",
		"removed": "gone",
	})}, nil)
	target := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"kept":    "same",
		"changed": "new",
		"added":   "fresh",
	})}, nil)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 3)

	byPath := map[string]*NodeModified{}
	for _, c := range d.Changes {
		mod := c.(*NodeModified)
		byPath[joinPath(mod.Path)] = mod
	}

	added := byPath["data.added"]
	require.NotNil(t, added)
	assert.True(t, IsUndefined(added.OldValue))
	assert.Equal(t, ImpactEnhancement, added.Semantic().Impact)

	changed := byPath["data.changed"]
	require.NotNil(t, changed)
	assert.Equal(t, ImpactCompatible, changed.Semantic().Impact)

	removed := byPath["data.removed"]
	require.NotNil(t, removed)
	assert.True(t, IsUndefined(removed.NewValue))
	assert.Equal(t, ImpactBreaking, removed.Semantic().Impact)
}

func TestCompare_NilDataDiffsAsEmptyObject(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", nil)}, nil)
	target := snapshot([]*graph.Node{node("a", "component", map[string]any{})}, nil)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	assert.Empty(t, d.Changes, "nil data and empty data must compare equal")
}

func TestCompare_EdgeAddedAndRemoved(t *testing.T) {
	nodes := []*graph.Node{node("a", "x", nil), node("b", "x", nil)}
	source := snapshot(nodes, []*graph.Edge{edge("e1", "a", "b", "calls")})
	target := snapshot(nodes, []*graph.Edge{edge("e2", "b", "a", "calls")})

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 2)

	added, ok := d.Changes[0].(*EdgeAdded)
	require.True(t, ok)
	assert.Equal(t, "e2", added.EntityID())
	assert.Equal(t, []string{"b", "a"}, added.Semantic().AffectedRelations)

	removed, ok := d.Changes[1].(*EdgeRemoved)
	require.True(t, ok)
	assert.Equal(t, "e1", removed.EntityID())
	assert.Equal(t, []string{"a", "b"}, removed.Semantic().AffectedRelations)
	// Edge removals are automatically cleanable
	require.Len(t, removed.Semantic().Migrations, 1)
	assert.Equal(t, MigrationAutomatic, removed.Semantic().Migrations[0].Type)
}

func TestCompare_EdgeEndpointReconnected(t *testing.T) {
	nodes := []*graph.Node{node("a", "x", nil), node("b", "x", nil), node("c", "x", nil)}
	source := snapshot(nodes, []*graph.Edge{edge("e1", "a", "b", "calls")})
	target := snapshot(nodes, []*graph.Edge{edge("e1", "a", "c", "calls")})

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)

	mod, ok := d.Changes[0].(*EdgeModified)
	require.True(t, ok)
	assert.Equal(t, []string{"target"}, mod.Path)
	assert.Equal(t, "b", mod.OldValue)
	assert.Equal(t, "c", mod.NewValue)
	assert.Equal(t, CategoryStructural, mod.Semantic().Category)
	assert.Equal(t, ImpactBreaking, mod.Semantic().Impact)
	assert.Equal(t, []string{"a", "b", "c"}, mod.Semantic().AffectedRelations)
}

func TestCompare_NodeChangesPrecedeEdgeChanges(t *testing.T) {
	source := snapshot(nil, nil)
	target := snapshot(
		[]*graph.Node{node("n1", "x", nil)},
		[]*graph.Edge{edge("e1", "n1", "n1", "self")},
	)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 2)
	assert.Equal(t, EntityNode, d.Changes[0].Entity())
	assert.Equal(t, EntityEdge, d.Changes[1].Entity())
}

func TestCompare_DeterministicOrder(t *testing.T) {
	source := snapshot(
		[]*graph.Node{node("keep", "x", nil), node("gone1", "x", nil), node("gone2", "x", nil)},
		nil,
	)
	target := snapshot(
		[]*graph.Node{node("new1", "x", nil), node("keep", "x", nil), node("new2", "x", nil)},
		nil,
	)

	first, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	second, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)

	require.Equal(t, len(first.Changes), len(second.Changes))
	for i := range first.Changes {
		assert.Equal(t, first.Changes[i].Kind(), second.Changes[i].Kind())
		assert.Equal(t, first.Changes[i].EntityID(), second.Changes[i].EntityID())
	}
	// Additions follow target list order, then removals follow source order
	ids := make([]string, len(first.Changes))
	for i, c := range first.Changes {
		ids[i] = c.EntityID()
	}
	assert.Equal(t, []string{"new1", "new2", "gone1", "gone2"}, ids)
}

func TestCompare_SemanticOverride_EdgeRemovalLoweringConnectivity(t *testing.T) {
	nodes := []*graph.Node{node("a", "x", nil), node("b", "x", nil)}
	source := snapshot(nodes, []*graph.Edge{
		edge("e1", "a", "b", "calls"),
		edge("e2", "b", "a", "calls"),
	})
	target := snapshot(nodes, []*graph.Edge{edge("e1", "a", "b", "calls")})

	d, err := Compare(source, target, "", "", Options{SemanticDiff: true})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)
	assert.Equal(t, ImpactBreaking, d.Changes[0].Semantic().Impact)
}

func TestCompare_SemanticOverride_BehaviorKeyForcedBreaking(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"behavior": map[string]any{"onClick": "save"},
	})}, nil)
	target := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"behavior": map[string]any{"onClick": "delete"},
	})}, nil)

	d, err := Compare(source, target, "", "", Options{SemanticDiff: true})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)
	sem := d.Changes[0].Semantic()
	assert.Equal(t, CategoryBehavioral, sem.Category)
	assert.Equal(t, ImpactBreaking, sem.Impact)
}

func TestCompare_WithoutSemanticDiffNoOverride(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"behavior": map[string]any{"onClick": "save"},
	})}, nil)
	target := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"behavior": map[string]any{"onClick": "delete"},
	})}, nil)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)
	assert.Equal(t, CategoryData, d.Changes[0].Semantic().Category)
	assert.Equal(t, ImpactCompatible, d.Changes[0].Semantic().Impact)
}

func TestCompare_DuplicateIDsSurfaceAsConflict(t *testing.T) {
	source := snapshot([]*graph.Node{
		node("dup", "x", nil),
		node("dup", "y", nil),
	}, nil)
	target := snapshot(nil, nil)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err, "malformed snapshots produce conflicts, not errors")
	require.NotEmpty(t, d.Conflicts)
	c := d.Conflicts[0]
	assert.Equal(t, ConflictStructural, c.Type)
	assert.Equal(t, SeverityCritical, c.Severity)
	assert.Contains(t, c.Description, "dup")
}

func TestCompare_StatisticsBounds(t *testing.T) {
	// A full replacement still keeps both ratios in [0,1]
	source := snapshot(
		[]*graph.Node{node("a", "x", nil), node("b", "x", nil)},
		[]*graph.Edge{edge("e1", "a", "b", "calls")},
	)
	target := snapshot(
		[]*graph.Node{node("c", "x", nil), node("d", "x", nil)},
		[]*graph.Edge{edge("e2", "c", "d", "calls")},
	)

	d, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)

	s := d.Statistics
	assert.GreaterOrEqual(t, s.Similarity, 0.0)
	assert.LessOrEqual(t, s.Similarity, 1.0)
	assert.GreaterOrEqual(t, s.Complexity, 0.0)
	assert.LessOrEqual(t, s.Complexity, 1.0)
	assert.Equal(t, 6, s.TotalChanges)
	assert.Equal(t, 2, s.NodesAdded)
	assert.Equal(t, 2, s.NodesRemoved)
	assert.Equal(t, 1, s.EdgesAdded)
	assert.Equal(t, 1, s.EdgesRemoved)
}

func TestCompare_SimilarityDecreasesWithMoreChange(t *testing.T) {
	base := snapshot([]*graph.Node{
		node("a", "x", nil), node("b", "x", nil), node("c", "x", nil), node("d", "x", nil),
	}, nil)

	oneChange := base.Clone()
	oneChange.Nodes[0].Type = "y"
	threeChanges := base.Clone()
	threeChanges.Nodes[0].Type = "y"
	threeChanges.Nodes[1].Type = "y"
	threeChanges.Nodes[2].Type = "y"

	small, err := Compare(base, oneChange, "", "", Options{})
	require.NoError(t, err)
	large, err := Compare(base, threeChanges, "", "", Options{})
	require.NoError(t, err)

	assert.Greater(t, small.Statistics.Similarity, large.Statistics.Similarity)
	assert.LessOrEqual(t, small.Statistics.Complexity, large.Statistics.Complexity)
}
