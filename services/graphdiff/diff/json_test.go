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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

func TestGraphDiff_JSONRoundTrip(t *testing.T) {
	source := snapshot(
		[]*graph.Node{
			node("gone", "component", nil),
			node("changed", "component", map[string]any{"title": "old"}),
		},
		[]*graph.Edge{edge("e-gone", "gone", "changed", "calls")},
	)
	target := snapshot(
		[]*graph.Node{
			node("changed", "component", map[string]any{"title": "new"}),
			node("fresh", "function", nil),
		},
		[]*graph.Edge{edge("e-fresh", "fresh", "changed", "calls")},
	)

	original, err := Compare(source, target, "v1", "v2", Options{IncludeConflictResolution: true})
	require.NoError(t, err)
	require.NotEmpty(t, original.Changes)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored GraphDiff
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.SourceVersion, restored.SourceVersion)
	assert.Equal(t, original.TargetVersion, restored.TargetVersion)
	assert.True(t, original.Timestamp.Equal(restored.Timestamp))
	assert.Equal(t, original.Statistics, restored.Statistics)
	assert.Equal(t, len(original.Conflicts), len(restored.Conflicts))

	require.Equal(t, len(original.Changes), len(restored.Changes))
	for i := range original.Changes {
		assert.Equal(t, original.Changes[i].Kind(), restored.Changes[i].Kind())
		assert.Equal(t, original.Changes[i].EntityID(), restored.Changes[i].EntityID())
		assert.Equal(t, original.Changes[i].Semantic(), restored.Changes[i].Semantic())
	}
}

func TestGraphDiff_JSONPreservesVariantPayloads(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", map[string]any{"k": "old"})}, nil)
	target := snapshot([]*graph.Node{node("a", "component", map[string]any{"k": "new"})}, nil)

	original, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	var restored GraphDiff
	require.NoError(t, json.Unmarshal(data, &restored))

	mod, ok := restored.Changes[0].(*NodeModified)
	require.True(t, ok)
	assert.Equal(t, []string{"data", "k"}, mod.Path)
	assert.Equal(t, "old", mod.OldValue)
	assert.Equal(t, "new", mod.NewValue)
	require.NotNil(t, mod.Before)
	require.NotNil(t, mod.After)
	assert.Equal(t, "a", mod.After.ID)
}

func TestGraphDiff_JSONKeepsUndefinedDistinctFromNull(t *testing.T) {
	source := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"nulled": "x",
	})}, nil)
	target := snapshot([]*graph.Node{node("a", "component", map[string]any{
		"nulled":   nil,
		"appeared": "y",
	})}, nil)

	original, err := Compare(source, target, "", "", Options{})
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	var restored GraphDiff
	require.NoError(t, json.Unmarshal(data, &restored))

	byPath := map[string]*NodeModified{}
	for _, c := range restored.Changes {
		mod := c.(*NodeModified)
		byPath[joinPath(mod.Path)] = mod
	}

	nulled := byPath["data.nulled"]
	require.NotNil(t, nulled)
	assert.Equal(t, "x", nulled.OldValue)
	assert.Nil(t, nulled.NewValue)
	assert.False(t, IsUndefined(nulled.NewValue))

	appeared := byPath["data.appeared"]
	require.NotNil(t, appeared)
	assert.True(t, IsUndefined(appeared.OldValue))
	assert.Equal(t, "y", appeared.NewValue)
}

func TestGraphDiff_UnmarshalRejectsUnknownKind(t *testing.T) {
	raw := `{
		"id": "d1",
		"sourceVersion": "v1",
		"targetVersion": "v2",
		"timestamp": "2025-01-01T00:00:00Z",
		"changes": [{"kind": "node_exploded", "entityId": "a"}],
		"statistics": {},
		"conflicts": null
	}`

	var d GraphDiff
	err := json.Unmarshal([]byte(raw), &d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_exploded")
}

func TestGraphDiff_UnmarshalEmptyChangeList(t *testing.T) {
	raw := `{
		"id": "d1",
		"sourceVersion": "v1",
		"targetVersion": "v2",
		"timestamp": "2025-01-01T00:00:00Z",
		"changes": [],
		"statistics": {"totalChanges": 0},
		"conflicts": null
	}`

	var d GraphDiff
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.Equal(t, "d1", d.ID)
	assert.Empty(t, d.Changes)
}
