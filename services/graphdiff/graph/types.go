// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph defines the snapshot value model consumed by the diffing
// and patching engine.
//
// Nodes and edges reference each other only by string id, never by live
// pointer. A Snapshot is an arena-style pair of entity lists with id-keyed
// index maps built on demand, which keeps lookups O(1) without introducing
// ownership cycles between entities.
//
// Snapshots are immutable by convention once handed to the engine: every
// engine operation that needs to mutate works on a Clone.
package graph

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateID indicates a snapshot contains two nodes or two edges
// sharing an id.
var ErrDuplicateID = errors.New("duplicate entity id")

// Node is a single code entity in a snapshot.
type Node struct {
	// ID uniquely identifies the node within its snapshot.
	ID string `json:"id"`

	// Type is the entity kind as reported by the analyzer
	// (e.g. "component", "function", "class").
	Type string `json:"type"`

	// Data is the analyzer-supplied payload. Values follow the JSON object
	// model: map[string]any, []any, string, float64, bool, nil.
	Data map[string]any `json:"data"`
}

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	// ID uniquely identifies the edge within its snapshot.
	ID string `json:"id"`

	// Source is the id of the origin node.
	Source string `json:"source"`

	// Target is the id of the destination node.
	Target string `json:"target"`

	// Type is the relation kind (e.g. "imports", "calls", "renders").
	Type string `json:"type"`

	// Data is the analyzer-supplied payload, same model as Node.Data.
	Data map[string]any `json:"data"`
}

// Snapshot is one point-in-time graph state.
//
// The engine never validates where a snapshot came from, only that ids are
// unique within it (see ValidateIDs). Dangling edge endpoints are surfaced
// later as conflicts, not rejected here.
type Snapshot struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// VersionMetadata carries the bookkeeping attached to a stored version.
type VersionMetadata struct {
	Tags           []string `json:"tags,omitempty"`
	ParentVersions []string `json:"parentVersions,omitempty"`
}

// Version is a named, stored snapshot with authorship metadata.
type Version struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Author    string          `json:"author"`
	Message   string          `json:"message"`
	Graph     *Snapshot       `json:"graph"`
	Metadata  VersionMetadata `json:"metadata"`
}

// NodeIndex returns an id-keyed map over the snapshot's nodes.
//
// The map is built fresh on each call; callers that need repeated lookups
// should hold on to the result. Later duplicates win, matching list order.
func (s *Snapshot) NodeIndex() map[string]*Node {
	idx := make(map[string]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		idx[n.ID] = n
	}
	return idx
}

// EdgeIndex returns an id-keyed map over the snapshot's edges.
func (s *Snapshot) EdgeIndex() map[string]*Edge {
	idx := make(map[string]*Edge, len(s.Edges))
	for _, e := range s.Edges {
		idx[e.ID] = e
	}
	return idx
}

// ValidateIDs checks that node ids and edge ids are each unique within the
// snapshot. Returns a descriptive error naming the first duplicate found.
func (s *Snapshot) ValidateIDs() error {
	seen := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: node %q", ErrDuplicateID, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: edge %q", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the snapshot. Entity Data trees are copied
// recursively so mutations on the clone never leak into the original.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Nodes: make([]*Node, len(s.Nodes)),
		Edges: make([]*Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range s.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return &Node{ID: n.ID, Type: n.Type, Data: cloneMap(n.Data)}
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	return &Edge{ID: e.ID, Source: e.Source, Target: e.Target, Type: e.Type, Data: cloneMap(e.Data)}
}

// CloneValue deep-copies a JSON-model value (maps, slices, scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	default:
		// Scalars (string, float64, bool, nil, ints) are value types.
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
