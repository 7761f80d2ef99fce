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
	"fmt"
	"time"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// valueEnvelope serializes change old/new values while keeping the
// distinction between "absent" (Undefined) and "present but null".
type valueEnvelope struct {
	Undefined bool `json:"undefined,omitempty"`
	Value     any  `json:"value,omitempty"`
}

func wrapValue(v any) *valueEnvelope {
	if IsUndefined(v) {
		return &valueEnvelope{Undefined: true}
	}
	return &valueEnvelope{Value: v}
}

func (e *valueEnvelope) unwrap() any {
	if e == nil {
		return nil
	}
	if e.Undefined {
		return Undefined
	}
	return e.Value
}

// changeRecord is the flat wire form of the Change sum type. Kind selects
// the variant; unused fields stay empty.
type changeRecord struct {
	Kind       ChangeKind      `json:"kind"`
	EntityID   string          `json:"entityId"`
	NodeBefore *graph.Node     `json:"nodeBefore,omitempty"`
	NodeAfter  *graph.Node     `json:"nodeAfter,omitempty"`
	EdgeBefore *graph.Edge     `json:"edgeBefore,omitempty"`
	EdgeAfter  *graph.Edge     `json:"edgeAfter,omitempty"`
	Path       []string        `json:"path,omitempty"`
	OldValue   *valueEnvelope  `json:"oldValue,omitempty"`
	NewValue   *valueEnvelope  `json:"newValue,omitempty"`
	Semantic   *SemanticChange `json:"semantic,omitempty"`
}

func toRecord(c Change) changeRecord {
	rec := changeRecord{Kind: c.Kind(), EntityID: c.EntityID(), Semantic: c.Semantic()}
	switch v := c.(type) {
	case *NodeAdded:
		rec.NodeAfter = v.After
	case *NodeRemoved:
		rec.NodeBefore = v.Before
	case *NodeModified:
		rec.NodeBefore = v.Before
		rec.NodeAfter = v.After
		rec.Path = v.Path
		rec.OldValue = wrapValue(v.OldValue)
		rec.NewValue = wrapValue(v.NewValue)
	case *EdgeAdded:
		rec.EdgeAfter = v.After
	case *EdgeRemoved:
		rec.EdgeBefore = v.Before
	case *EdgeModified:
		rec.EdgeBefore = v.Before
		rec.EdgeAfter = v.After
		rec.Path = v.Path
		rec.OldValue = wrapValue(v.OldValue)
		rec.NewValue = wrapValue(v.NewValue)
	}
	return rec
}

func fromRecord(rec changeRecord) (Change, error) {
	base := changeBase{ID: rec.EntityID, Sem: rec.Semantic}
	switch rec.Kind {
	case KindNodeAdded:
		return &NodeAdded{changeBase: base, After: rec.NodeAfter}, nil
	case KindNodeRemoved:
		return &NodeRemoved{changeBase: base, Before: rec.NodeBefore}, nil
	case KindNodeModified:
		return &NodeModified{
			changeBase: base,
			Before:     rec.NodeBefore,
			After:      rec.NodeAfter,
			Path:       rec.Path,
			OldValue:   rec.OldValue.unwrap(),
			NewValue:   rec.NewValue.unwrap(),
		}, nil
	case KindEdgeAdded:
		return &EdgeAdded{changeBase: base, After: rec.EdgeAfter}, nil
	case KindEdgeRemoved:
		return &EdgeRemoved{changeBase: base, Before: rec.EdgeBefore}, nil
	case KindEdgeModified:
		return &EdgeModified{
			changeBase: base,
			Before:     rec.EdgeBefore,
			After:      rec.EdgeAfter,
			Path:       rec.Path,
			OldValue:   rec.OldValue.unwrap(),
			NewValue:   rec.NewValue.unwrap(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown change kind %q", rec.Kind)
	}
}

// graphDiffWire mirrors GraphDiff with changes in record form.
type graphDiffWire struct {
	ID            string         `json:"id"`
	SourceVersion string         `json:"sourceVersion"`
	TargetVersion string         `json:"targetVersion"`
	Timestamp     time.Time      `json:"timestamp"`
	Changes       []changeRecord `json:"changes"`
	Statistics    Statistics     `json:"statistics"`
	Conflicts     []Conflict     `json:"conflicts"`
}

// MarshalJSON serializes the diff with each change tagged by its kind.
func (d *GraphDiff) MarshalJSON() ([]byte, error) {
	wire := graphDiffWire{
		ID:            d.ID,
		SourceVersion: d.SourceVersion,
		TargetVersion: d.TargetVersion,
		Timestamp:     d.Timestamp,
		Changes:       make([]changeRecord, len(d.Changes)),
		Statistics:    d.Statistics,
		Conflicts:     d.Conflicts,
	}
	for i, c := range d.Changes {
		wire.Changes[i] = toRecord(c)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON restores the tagged change variants.
func (d *GraphDiff) UnmarshalJSON(data []byte) error {
	var wire graphDiffWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	changes := make([]Change, len(wire.Changes))
	for i, rec := range wire.Changes {
		c, err := fromRecord(rec)
		if err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
		changes[i] = c
	}
	d.ID = wire.ID
	d.SourceVersion = wire.SourceVersion
	d.TargetVersion = wire.TargetVersion
	d.Timestamp = wire.Timestamp
	d.Changes = changes
	d.Statistics = wire.Statistics
	d.Conflicts = wire.Conflicts
	return nil
}
