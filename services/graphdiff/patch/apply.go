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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// Apply replays a patch against a base snapshot and returns the patched
// snapshot. The base is never mutated: all work happens on a deep clone.
//
// The checksum is verified before any operation runs; a mismatch refuses
// the whole patch (ErrChecksumMismatch). Operations execute in order. On
// a failing operation, Apply stops and returns the working copy as
// applied so far together with an *OpError naming the operation index;
// callers needing all-or-nothing semantics re-apply onto a fresh base.
func Apply(base *graph.Snapshot, p *Patch) (*graph.Snapshot, error) {
	if base == nil {
		return nil, fmt.Errorf("base snapshot must not be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("patch must not be nil")
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}

	work := &workingCopy{snapshot: base.Clone()}
	work.reindex()

	for i, op := range p.Operations {
		if err := work.apply(op); err != nil {
			return work.snapshot, &OpError{Index: i, Op: op, Err: err}
		}
	}
	return work.snapshot, nil
}

// workingCopy is the mutable apply state: the cloned snapshot plus
// id-keyed maps into its entities.
type workingCopy struct {
	snapshot *graph.Snapshot
	nodes    map[string]*graph.Node
	edges    map[string]*graph.Edge
}

func (w *workingCopy) reindex() {
	w.nodes = w.snapshot.NodeIndex()
	w.edges = w.snapshot.EdgeIndex()
}

func (w *workingCopy) apply(op Operation) error {
	collection, id, steps, err := parsePath(op.Path)
	if err != nil {
		return err
	}

	switch op.Op {
	case OpAdd:
		if len(steps) != 0 {
			return fmt.Errorf("%w: add supports entity paths only, got %q", ErrMalformedPath, op.Path)
		}
		return w.add(collection, id, op.Value)
	case OpRemove:
		if len(steps) != 0 {
			return fmt.Errorf("%w: remove supports entity paths only, got %q", ErrMalformedPath, op.Path)
		}
		return w.remove(collection, id)
	case OpReplace:
		if len(steps) == 0 {
			return fmt.Errorf("%w: replace requires a property path, got %q", ErrMalformedPath, op.Path)
		}
		return w.replace(collection, id, steps, op.Value)
	case OpTest:
		return w.test(collection, id, steps, op.Value)
	case OpMove, OpCopy:
		return fmt.Errorf("%w: %s operations are not supported by the applier", ErrMalformedPath, op.Op)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrMalformedPath, op.Op)
	}
}

func (w *workingCopy) add(collection, id string, value any) error {
	switch collection {
	case "nodes":
		node, err := toNode(value)
		if err != nil {
			return err
		}
		node.ID = id
		if _, exists := w.nodes[id]; exists {
			// Adding over an existing member replaces it, JSON-patch style.
			return w.replaceNode(node)
		}
		w.snapshot.Nodes = append(w.snapshot.Nodes, node)
		w.nodes[id] = node
	case "edges":
		edge, err := toEdge(value)
		if err != nil {
			return err
		}
		edge.ID = id
		if _, exists := w.edges[id]; exists {
			return w.replaceEdge(edge)
		}
		w.snapshot.Edges = append(w.snapshot.Edges, edge)
		w.edges[id] = edge
	}
	return nil
}

func (w *workingCopy) replaceNode(node *graph.Node) error {
	for i, n := range w.snapshot.Nodes {
		if n.ID == node.ID {
			w.snapshot.Nodes[i] = node
			w.nodes[node.ID] = node
			return nil
		}
	}
	return fmt.Errorf("%w: node %s", ErrEntityNotFound, node.ID)
}

func (w *workingCopy) replaceEdge(edge *graph.Edge) error {
	for i, e := range w.snapshot.Edges {
		if e.ID == edge.ID {
			w.snapshot.Edges[i] = edge
			w.edges[edge.ID] = edge
			return nil
		}
	}
	return fmt.Errorf("%w: edge %s", ErrEntityNotFound, edge.ID)
}

func (w *workingCopy) remove(collection, id string) error {
	switch collection {
	case "nodes":
		if _, exists := w.nodes[id]; !exists {
			return fmt.Errorf("%w: node %s", ErrEntityNotFound, id)
		}
		delete(w.nodes, id)
		kept := w.snapshot.Nodes[:0]
		for _, n := range w.snapshot.Nodes {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		w.snapshot.Nodes = kept
	case "edges":
		if _, exists := w.edges[id]; !exists {
			return fmt.Errorf("%w: edge %s", ErrEntityNotFound, id)
		}
		delete(w.edges, id)
		kept := w.snapshot.Edges[:0]
		for _, e := range w.snapshot.Edges {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		w.snapshot.Edges = kept
	}
	return nil
}

func (w *workingCopy) replace(collection, id string, steps []string, value any) error {
	switch collection {
	case "nodes":
		node, exists := w.nodes[id]
		if !exists {
			return fmt.Errorf("%w: node %s", ErrEntityNotFound, id)
		}
		return setNodeField(node, steps, value)
	case "edges":
		edge, exists := w.edges[id]
		if !exists {
			return fmt.Errorf("%w: edge %s", ErrEntityNotFound, id)
		}
		return setEdgeField(edge, steps, value)
	}
	return nil
}

func (w *workingCopy) test(collection, id string, steps []string, expected any) error {
	var actual any
	switch collection {
	case "nodes":
		node, exists := w.nodes[id]
		if !exists {
			return fmt.Errorf("%w: node %s", ErrEntityNotFound, id)
		}
		v, err := nodeValueAt(node, steps)
		if err != nil {
			return err
		}
		actual = v
	case "edges":
		edge, exists := w.edges[id]
		if !exists {
			return fmt.Errorf("%w: edge %s", ErrEntityNotFound, id)
		}
		v, err := edgeValueAt(edge, steps)
		if err != nil {
			return err
		}
		actual = v
	}
	if !jsonEqual(actual, expected) {
		return fmt.Errorf("%w at %s", ErrTestFailed, pathString(steps))
	}
	return nil
}

func setNodeField(node *graph.Node, steps []string, value any) error {
	switch steps[0] {
	case "type":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: node type must be a string", ErrMalformedPath)
		}
		node.Type = s
		return nil
	case "data":
		if len(steps) == 1 {
			m, ok := toObject(value)
			if !ok {
				return fmt.Errorf("%w: node data must be an object", ErrMalformedPath)
			}
			node.Data = m
			return nil
		}
		if node.Data == nil {
			node.Data = make(map[string]any)
		}
		return setIn(node.Data, steps[1:], value)
	default:
		return fmt.Errorf("%w: unknown node field %q", ErrMalformedPath, steps[0])
	}
}

func setEdgeField(edge *graph.Edge, steps []string, value any) error {
	switch steps[0] {
	case "type", "source", "target":
		if len(steps) != 1 {
			return fmt.Errorf("%w: %s takes no sub-path", ErrMalformedPath, steps[0])
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: edge %s must be a string", ErrMalformedPath, steps[0])
		}
		switch steps[0] {
		case "type":
			edge.Type = s
		case "source":
			edge.Source = s
		case "target":
			edge.Target = s
		}
		return nil
	case "data":
		if len(steps) == 1 {
			m, ok := toObject(value)
			if !ok {
				return fmt.Errorf("%w: edge data must be an object", ErrMalformedPath)
			}
			edge.Data = m
			return nil
		}
		if edge.Data == nil {
			edge.Data = make(map[string]any)
		}
		return setIn(edge.Data, steps[1:], value)
	default:
		return fmt.Errorf("%w: unknown edge field %q", ErrMalformedPath, steps[0])
	}
}

// setIn walks path steps inside a data tree and sets the final step,
// creating intermediate objects as needed. Array elements can be replaced
// by numeric index but arrays are never grown or created implicitly.
func setIn(root map[string]any, steps []string, value any) error {
	current := any(root)
	for i := 0; i < len(steps)-1; i++ {
		step := steps[i]
		switch c := current.(type) {
		case map[string]any:
			next, exists := c[step]
			if !exists || !isContainer(next) {
				created := make(map[string]any)
				c[step] = created
				current = created
				continue
			}
			current = next
		case []any:
			idx, err := arrayIndex(step, len(c))
			if err != nil {
				return err
			}
			if !isContainer(c[idx]) {
				created := make(map[string]any)
				c[idx] = created
				current = created
				continue
			}
			current = c[idx]
		default:
			return fmt.Errorf("%w: cannot descend into scalar at %q", ErrMalformedPath, step)
		}
	}

	last := steps[len(steps)-1]
	switch c := current.(type) {
	case map[string]any:
		c[last] = graph.CloneValue(value)
	case []any:
		idx, err := arrayIndex(last, len(c))
		if err != nil {
			return err
		}
		c[idx] = graph.CloneValue(value)
	default:
		return fmt.Errorf("%w: cannot set %q on a scalar", ErrMalformedPath, last)
	}
	return nil
}

func nodeValueAt(node *graph.Node, steps []string) (any, error) {
	if len(steps) == 0 {
		return node, nil
	}
	switch steps[0] {
	case "type":
		return node.Type, nil
	case "data":
		return valueIn(node.Data, steps[1:])
	default:
		return nil, fmt.Errorf("%w: unknown node field %q", ErrMalformedPath, steps[0])
	}
}

func edgeValueAt(edge *graph.Edge, steps []string) (any, error) {
	if len(steps) == 0 {
		return edge, nil
	}
	switch steps[0] {
	case "type":
		return edge.Type, nil
	case "source":
		return edge.Source, nil
	case "target":
		return edge.Target, nil
	case "data":
		return valueIn(edge.Data, steps[1:])
	default:
		return nil, fmt.Errorf("%w: unknown edge field %q", ErrMalformedPath, steps[0])
	}
}

func valueIn(root map[string]any, steps []string) (any, error) {
	current := any(root)
	for _, step := range steps {
		switch c := current.(type) {
		case map[string]any:
			next, exists := c[step]
			if !exists {
				return nil, fmt.Errorf("%w: no value at %q", ErrMalformedPath, step)
			}
			current = next
		case []any:
			idx, err := arrayIndex(step, len(c))
			if err != nil {
				return nil, err
			}
			current = c[idx]
		default:
			return nil, fmt.Errorf("%w: cannot descend into scalar at %q", ErrMalformedPath, step)
		}
	}
	return current, nil
}

func arrayIndex(step string, length int) (int, error) {
	idx, err := strconv.Atoi(step)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an array index", ErrMalformedPath, step)
	}
	if idx < 0 || idx >= length {
		return 0, fmt.Errorf("%w: index %d out of range [0,%d)", ErrMalformedPath, idx, length)
	}
	return idx, nil
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func toObject(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, true
	}
	return nil, false
}

// toNode converts an operation value into a Node, accepting both typed
// values (in-process callers) and decoded JSON objects (wire patches).
func toNode(value any) (*graph.Node, error) {
	switch v := value.(type) {
	case *graph.Node:
		return v.Clone(), nil
	case graph.Node:
		return v.Clone(), nil
	default:
		node := &graph.Node{}
		if err := reencode(value, node); err != nil {
			return nil, fmt.Errorf("%w: add value is not a node: %v", ErrMalformedPath, err)
		}
		return node, nil
	}
}

// toEdge converts an operation value into an Edge.
func toEdge(value any) (*graph.Edge, error) {
	switch v := value.(type) {
	case *graph.Edge:
		return v.Clone(), nil
	case graph.Edge:
		return v.Clone(), nil
	default:
		edge := &graph.Edge{}
		if err := reencode(value, edge); err != nil {
			return nil, fmt.Errorf("%w: add value is not an edge: %v", ErrMalformedPath, err)
		}
		return edge, nil
	}
}

func reencode(from any, to any) error {
	raw, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, to)
}

// jsonEqual compares two values by canonical JSON form, so typed and
// decoded representations of the same value compare equal.
func jsonEqual(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
