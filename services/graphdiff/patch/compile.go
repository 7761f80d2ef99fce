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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/grafity/services/graphdiff/diff"
)

// Compile converts a GraphDiff into a Patch.
//
// Each change maps to zero or more operations, emitted in exactly the
// diff's change order. Modifications that cannot be expressed as a
// replace (no path, or the new value is an absence marker) are returned
// in the skipped report rather than silently dropped; the patch is still
// valid for everything else.
func Compile(d *diff.GraphDiff, createdBy string) (*Patch, []SkippedChange, error) {
	if d == nil {
		return nil, nil, fmt.Errorf("diff must not be nil")
	}

	var ops []Operation
	var skipped []SkippedChange

	for _, c := range d.Changes {
		collection := "nodes"
		if c.Entity() == diff.EntityEdge {
			collection = "edges"
		}

		switch v := c.(type) {
		case *diff.NodeAdded:
			ops = append(ops, Operation{Op: OpAdd, Path: buildPath(collection, c.EntityID(), nil), Value: v.After})
		case *diff.EdgeAdded:
			ops = append(ops, Operation{Op: OpAdd, Path: buildPath(collection, c.EntityID(), nil), Value: v.After})
		case *diff.NodeRemoved:
			ops = append(ops, Operation{Op: OpRemove, Path: buildPath(collection, c.EntityID(), nil)})
		case *diff.EdgeRemoved:
			ops = append(ops, Operation{Op: OpRemove, Path: buildPath(collection, c.EntityID(), nil)})
		case *diff.NodeModified:
			op, reason := replaceOp(collection, c.EntityID(), v.Path, v.NewValue)
			if op == nil {
				skipped = append(skipped, SkippedChange{EntityID: c.EntityID(), Kind: string(c.Kind()), Reason: reason})
				continue
			}
			ops = append(ops, *op)
		case *diff.EdgeModified:
			op, reason := replaceOp(collection, c.EntityID(), v.Path, v.NewValue)
			if op == nil {
				skipped = append(skipped, SkippedChange{EntityID: c.EntityID(), Kind: string(c.Kind()), Reason: reason})
				continue
			}
			ops = append(ops, *op)
		}
	}

	checksum, err := Checksum(ops)
	if err != nil {
		return nil, nil, err
	}

	return &Patch{
		ID:            uuid.NewString(),
		SourceVersion: d.SourceVersion,
		TargetVersion: d.TargetVersion,
		Operations:    ops,
		Checksum:      checksum,
		Metadata: Metadata{
			CreatedAt:   time.Now().UTC(),
			CreatedBy:   createdBy,
			Description: fmt.Sprintf("compiled from diff %s (%d changes, %d ops)", d.ID, len(d.Changes), len(ops)),
		},
	}, skipped, nil
}

// replaceOp builds a replace operation for a modification, or explains
// why it cannot.
func replaceOp(collection, id string, path []string, newValue any) (*Operation, string) {
	if len(path) == 0 {
		return nil, "modification carries no property path"
	}
	if diff.IsUndefined(newValue) {
		return nil, fmt.Sprintf("property %s was removed; replace cannot express key deletion", pathString(path))
	}
	return &Operation{Op: OpReplace, Path: buildPath(collection, id, path), Value: newValue}, ""
}

func pathString(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
