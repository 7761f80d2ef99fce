// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/grafity/services/graphdiff/diff"
	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// sealed builds a patch whose checksum matches its operations.
func sealed(t *testing.T, ops ...Operation) *Patch {
	t.Helper()
	sum, err := Checksum(ops)
	require.NoError(t, err)
	return &Patch{ID: "p1", Operations: ops, Checksum: sum}
}

func TestApply_NilArguments(t *testing.T) {
	_, err := Apply(nil, sealed(t))
	assert.Error(t, err)
	_, err = Apply(&graph.Snapshot{}, nil)
	assert.Error(t, err)
}

func TestApply_RefusesChecksumMismatch(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "x", nil)}}
	p := sealed(t, Operation{Op: OpRemove, Path: "/nodes/a"})
	p.Checksum = "0000"

	result, err := Apply(base, p)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Nil(t, result, "no operation may run on a checksum mismatch")
	require.Len(t, base.Nodes, 1, "base untouched")
}

func TestApply_BaseNeverMutated(t *testing.T) {
	base := &graph.Snapshot{
		Nodes: []*graph.Node{node("a", "x", map[string]any{"k": "before"})},
		Edges: []*graph.Edge{edge("e1", "a", "a", "self")},
	}
	p := sealed(t,
		Operation{Op: OpReplace, Path: "/nodes/a/data/k", Value: "after"},
		Operation{Op: OpRemove, Path: "/edges/e1"},
		Operation{Op: OpAdd, Path: "/nodes/b", Value: node("b", "x", nil)},
	)

	result, err := Apply(base, p)
	require.NoError(t, err)

	assert.Equal(t, "before", base.Nodes[0].Data["k"])
	assert.Len(t, base.Nodes, 1)
	assert.Len(t, base.Edges, 1)

	assert.Equal(t, "after", result.Nodes[0].Data["k"])
	assert.Len(t, result.Nodes, 2)
	assert.Empty(t, result.Edges)
}

func TestApply_AddRemoveReplace(t *testing.T) {
	base := &graph.Snapshot{
		Nodes: []*graph.Node{node("keep", "x", nil), node("gone", "x", nil)},
	}
	p := sealed(t,
		Operation{Op: OpAdd, Path: "/nodes/fresh", Value: node("fresh", "component", map[string]any{"k": "v"})},
		Operation{Op: OpAdd, Path: "/edges/e1", Value: edge("e1", "keep", "fresh", "calls")},
		Operation{Op: OpRemove, Path: "/nodes/gone"},
		Operation{Op: OpReplace, Path: "/nodes/keep/type", Value: "function"},
	)

	result, err := Apply(base, p)
	require.NoError(t, err)

	idx := result.NodeIndex()
	assert.Contains(t, idx, "fresh")
	assert.NotContains(t, idx, "gone")
	assert.Equal(t, "function", idx["keep"].Type)
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "calls", result.Edges[0].Type)
}

func TestApply_AddOverExistingReplaces(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "old", map[string]any{"k": "v"})}}
	p := sealed(t, Operation{Op: OpAdd, Path: "/nodes/a", Value: node("a", "new", nil)})

	result, err := Apply(base, p)
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "new", result.Nodes[0].Type)
	assert.Nil(t, result.Nodes[0].Data)
}

func TestApply_AddFromDecodedJSON(t *testing.T) {
	// Wire patches carry decoded map values, not typed nodes.
	var value any
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","type":"component","data":{"k":"v"}}`), &value))

	base := &graph.Snapshot{}
	p := sealed(t, Operation{Op: OpAdd, Path: "/nodes/a", Value: value})

	result, err := Apply(base, p)
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "component", result.Nodes[0].Type)
	assert.Equal(t, "v", result.Nodes[0].Data["k"])
}

func TestApply_RemoveMissingEntity(t *testing.T) {
	base := &graph.Snapshot{}
	p := sealed(t, Operation{Op: OpRemove, Path: "/nodes/ghost"})

	_, err := Apply(base, p)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestApply_ReplaceOnEdgeEndpoints(t *testing.T) {
	base := &graph.Snapshot{
		Nodes: []*graph.Node{node("a", "x", nil), node("b", "x", nil), node("c", "x", nil)},
		Edges: []*graph.Edge{edge("e1", "a", "b", "calls")},
	}
	p := sealed(t,
		Operation{Op: OpReplace, Path: "/edges/e1/target", Value: "c"},
		Operation{Op: OpReplace, Path: "/edges/e1/type", Value: "async"},
	)

	result, err := Apply(base, p)
	require.NoError(t, err)
	assert.Equal(t, "c", result.Edges[0].Target)
	assert.Equal(t, "async", result.Edges[0].Type)
}

func TestApply_ReplaceNestedDataCreatesIntermediates(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "x", nil)}}
	p := sealed(t, Operation{Op: OpReplace, Path: "/nodes/a/data/props/style/color", Value: "red"})

	result, err := Apply(base, p)
	require.NoError(t, err)
	props := result.Nodes[0].Data["props"].(map[string]any)
	style := props["style"].(map[string]any)
	assert.Equal(t, "red", style["color"])
}

func TestApply_ReplaceArrayElementByIndex(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{
		node("a", "x", map[string]any{"items": []any{"one", "two"}}),
	}}
	p := sealed(t, Operation{Op: OpReplace, Path: "/nodes/a/data/items/1", Value: "TWO"})

	result, err := Apply(base, p)
	require.NoError(t, err)
	items := result.Nodes[0].Data["items"].([]any)
	assert.Equal(t, []any{"one", "TWO"}, items)

	// Out-of-range indexes fail instead of growing the array
	p = sealed(t, Operation{Op: OpReplace, Path: "/nodes/a/data/items/5", Value: "x"})
	_, err = Apply(base, p)
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestApply_ReplaceWithoutPropertyPath(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "x", nil)}}
	p := sealed(t, Operation{Op: OpReplace, Path: "/nodes/a", Value: "whole"})

	_, err := Apply(base, p)
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestApply_TestOperation(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "component", map[string]any{"k": "v"})}}

	pass := sealed(t,
		Operation{Op: OpTest, Path: "/nodes/a/type", Value: "component"},
		Operation{Op: OpTest, Path: "/nodes/a/data/k", Value: "v"},
	)
	_, err := Apply(base, pass)
	assert.NoError(t, err)

	fail := sealed(t, Operation{Op: OpTest, Path: "/nodes/a/data/k", Value: "other"})
	_, err = Apply(base, fail)
	assert.ErrorIs(t, err, ErrTestFailed)
}

func TestApply_MoveAndCopyRejected(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "x", nil)}}
	for _, op := range []Op{OpMove, OpCopy} {
		p := sealed(t, Operation{Op: op, Path: "/nodes/a", From: "/nodes/b"})
		_, err := Apply(base, p)
		assert.ErrorIs(t, err, ErrMalformedPath, string(op))
	}
}

func TestApply_PartialFailureReturnsWorkingCopy(t *testing.T) {
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "x", nil)}}
	p := sealed(t,
		Operation{Op: OpAdd, Path: "/nodes/b", Value: node("b", "x", nil)},
		Operation{Op: OpRemove, Path: "/nodes/ghost"},
		Operation{Op: OpAdd, Path: "/nodes/c", Value: node("c", "x", nil)},
	)

	result, err := Apply(base, p)
	require.Error(t, err)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 1, opErr.Index)
	assert.Equal(t, OpRemove, opErr.Op.Op)
	assert.ErrorIs(t, opErr, ErrEntityNotFound)

	// Operations before the failure are visible in the returned copy;
	// the one after never ran.
	require.NotNil(t, result)
	idx := result.NodeIndex()
	assert.Contains(t, idx, "b")
	assert.NotContains(t, idx, "c")
	assert.Len(t, base.Nodes, 1)
}

func TestApply_EntityIDWithSlash(t *testing.T) {
	base := &graph.Snapshot{}
	p := sealed(t, Operation{
		Op:    OpAdd,
		Path:  buildPath("nodes", "pkg/mod/item", nil),
		Value: node("pkg/mod/item", "x", nil),
	})

	result, err := Apply(base, p)
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "pkg/mod/item", result.Nodes[0].ID)
}

func TestApply_RoundTripFromDiff(t *testing.T) {
	source := &graph.Snapshot{
		Nodes: []*graph.Node{
			node("gone", "x", nil),
			node("changed", "x", map[string]any{"title": "old", "count": 1.0}),
		},
		Edges: []*graph.Edge{edge("e-gone", "gone", "changed", "calls")},
	}
	target := &graph.Snapshot{
		Nodes: []*graph.Node{
			node("changed", "function", map[string]any{"title": "new", "count": 2.0}),
			node("fresh", "x", map[string]any{"k": "v"}),
		},
		Edges: []*graph.Edge{edge("e-fresh", "fresh", "changed", "calls")},
	}

	d, err := diff.Compare(source, target, "v1", "v2", diff.Options{})
	require.NoError(t, err)
	p, skipped, err := Compile(d, "roundtrip")
	require.NoError(t, err)
	require.Empty(t, skipped, "every change here is expressible")

	result, err := Apply(source, p)
	require.NoError(t, err)

	// The patched snapshot diffs clean against the original target.
	verify, err := diff.Compare(result, target, "", "", diff.Options{})
	require.NoError(t, err)
	assert.Empty(t, verify.Changes)
}

func TestApply_Reapplicable(t *testing.T) {
	// Replaces and removes-then-readds settle: applying onto the result
	// of a full apply is either a no-op or an equivalent overwrite.
	base := &graph.Snapshot{Nodes: []*graph.Node{node("a", "x", map[string]any{"k": "old"})}}
	p := sealed(t,
		Operation{Op: OpReplace, Path: "/nodes/a/data/k", Value: "new"},
		Operation{Op: OpAdd, Path: "/nodes/b", Value: node("b", "x", nil)},
	)

	once, err := Apply(base, p)
	require.NoError(t, err)
	twice, err := Apply(once, p)
	require.NoError(t, err)

	d, err := diff.Compare(once, twice, "", "", diff.Options{})
	require.NoError(t, err)
	assert.Empty(t, d.Changes)
}
