// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff implements snapshot comparison: the deep structural differ,
// the node/edge comparator, semantic change classification, conflict
// detection, and aggregate diff statistics.
//
// The entry point is Compare, which takes two snapshots and produces an
// immutable GraphDiff. All functions here are pure over their inputs;
// callers may run comparisons concurrently.
package diff

import (
	"time"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// ChangeKind identifies one of the six change variants.
type ChangeKind string

// ChangeKind values.
const (
	KindNodeAdded    ChangeKind = "node_added"
	KindNodeRemoved  ChangeKind = "node_removed"
	KindNodeModified ChangeKind = "node_modified"
	KindEdgeAdded    ChangeKind = "edge_added"
	KindEdgeRemoved  ChangeKind = "edge_removed"
	KindEdgeModified ChangeKind = "edge_modified"
)

// EntityKind distinguishes node changes from edge changes.
type EntityKind string

// EntityKind values.
const (
	EntityNode EntityKind = "node"
	EntityEdge EntityKind = "edge"
)

// Category classifies what aspect of the graph a change touches.
type Category string

// Category values.
const (
	CategoryStructural Category = "structural"
	CategoryData       Category = "data"
	CategoryMetadata   Category = "metadata"
	CategoryBehavioral Category = "behavioral"
)

// Impact classifies the compatibility consequence of a change.
type Impact string

// Impact values.
const (
	ImpactBreaking    Impact = "breaking"
	ImpactCompatible  Impact = "compatible"
	ImpactEnhancement Impact = "enhancement"
	ImpactCosmetic    Impact = "cosmetic"
)

// MigrationType identifies how a migration is meant to be executed.
type MigrationType string

// MigrationType values.
const (
	MigrationAutomatic     MigrationType = "automatic"
	MigrationManual        MigrationType = "manual"
	MigrationDataTransform MigrationType = "data_transform"
)

// Migration is an advisory step attached to a breaking change. The engine
// never executes migrations; they are hints for the caller.
type Migration struct {
	Type         MigrationType `json:"type"`
	Description  string        `json:"description"`
	Code         string        `json:"code,omitempty"`
	Instructions string        `json:"instructions,omitempty"`
}

// SemanticChange enriches a raw change with its semantic classification.
type SemanticChange struct {
	Category          Category    `json:"category"`
	Impact            Impact      `json:"impact"`
	Description       string      `json:"description"`
	AffectedRelations []string    `json:"affectedRelations,omitempty"`
	Migrations        []Migration `json:"migrations,omitempty"`
}

// Change is the sealed sum type over the six change variants.
//
// Consumers switch on the concrete type (NodeAdded, NodeRemoved,
// NodeModified, EdgeAdded, EdgeRemoved, EdgeModified); the unexported
// method keeps the set closed so such switches stay exhaustive.
type Change interface {
	Kind() ChangeKind
	Entity() EntityKind
	EntityID() string
	Semantic() *SemanticChange

	sealed()
}

// changeBase carries the fields shared by every variant.
type changeBase struct {
	ID  string
	Sem *SemanticChange
}

func (c *changeBase) EntityID() string          { return c.ID }
func (c *changeBase) Semantic() *SemanticChange { return c.Sem }
func (c *changeBase) sealed()                   {}

// NodeAdded records a node present only in the target snapshot.
type NodeAdded struct {
	changeBase
	After *graph.Node
}

func (*NodeAdded) Kind() ChangeKind   { return KindNodeAdded }
func (*NodeAdded) Entity() EntityKind { return EntityNode }

// NodeRemoved records a node present only in the source snapshot.
type NodeRemoved struct {
	changeBase
	Before *graph.Node
}

func (*NodeRemoved) Kind() ChangeKind   { return KindNodeRemoved }
func (*NodeRemoved) Entity() EntityKind { return EntityNode }

// NodeModified records a single leaf difference on a node present in both
// snapshots. Path is the ordered property-access steps from the entity root
// (e.g. ["type"] or ["data", "props", "title"]).
type NodeModified struct {
	changeBase
	Before   *graph.Node
	After    *graph.Node
	Path     []string
	OldValue any
	NewValue any
}

func (*NodeModified) Kind() ChangeKind   { return KindNodeModified }
func (*NodeModified) Entity() EntityKind { return EntityNode }

// EdgeAdded records an edge present only in the target snapshot.
type EdgeAdded struct {
	changeBase
	After *graph.Edge
}

func (*EdgeAdded) Kind() ChangeKind   { return KindEdgeAdded }
func (*EdgeAdded) Entity() EntityKind { return EntityEdge }

// EdgeRemoved records an edge present only in the source snapshot.
type EdgeRemoved struct {
	changeBase
	Before *graph.Edge
}

func (*EdgeRemoved) Kind() ChangeKind   { return KindEdgeRemoved }
func (*EdgeRemoved) Entity() EntityKind { return EntityEdge }

// EdgeModified records a single leaf difference on an edge present in both
// snapshots.
type EdgeModified struct {
	changeBase
	Before   *graph.Edge
	After    *graph.Edge
	Path     []string
	OldValue any
	NewValue any
}

func (*EdgeModified) Kind() ChangeKind   { return KindEdgeModified }
func (*EdgeModified) Entity() EntityKind { return EntityEdge }

// ConflictType identifies the kind of structural inconsistency detected.
type ConflictType string

// ConflictType values.
const (
	ConflictNode       ConflictType = "node_conflict"
	ConflictEdge       ConflictType = "edge_conflict"
	ConflictStructural ConflictType = "structural_conflict"
)

// Severity grades a conflict.
type Severity string

// Severity values.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ResolutionStrategy names a candidate way to resolve a conflict.
type ResolutionStrategy string

// ResolutionStrategy values.
const (
	StrategyKeepSource  ResolutionStrategy = "keep_source"
	StrategyKeepTarget  ResolutionStrategy = "keep_target"
	StrategyMerge       ResolutionStrategy = "merge"
	StrategyManual      ResolutionStrategy = "manual"
	StrategyAutoResolve ResolutionStrategy = "auto_resolve"
)

// ConflictResolution is one candidate resolution for a conflict. The engine
// only proposes resolutions; a human or caller chooses.
type ConflictResolution struct {
	Strategy    ResolutionStrategy `json:"strategy"`
	Description string             `json:"description"`
	Confidence  float64            `json:"confidence"`
	Result      any                `json:"result,omitempty"`
}

// Conflict is a structural inconsistency introduced by a set of changes
// taken together.
type Conflict struct {
	ID                   string               `json:"id"`
	Type                 ConflictType         `json:"type"`
	Description          string               `json:"description"`
	Entities             []string             `json:"entities"`
	Severity             Severity             `json:"severity"`
	ResolutionStrategies []ConflictResolution `json:"resolutionStrategies"`
}

// Statistics aggregates per-kind change counts and similarity / complexity
// scores for a diff. Similarity and Complexity are ratios in [0,1].
type Statistics struct {
	NodesAdded    int     `json:"nodesAdded"`
	NodesRemoved  int     `json:"nodesRemoved"`
	NodesModified int     `json:"nodesModified"`
	EdgesAdded    int     `json:"edgesAdded"`
	EdgesRemoved  int     `json:"edgesRemoved"`
	EdgesModified int     `json:"edgesModified"`
	TotalChanges  int     `json:"totalChanges"`
	Similarity    float64 `json:"similarity"`
	Complexity    float64 `json:"complexity"`
}

// GraphDiff is the immutable result of comparing two snapshots. New
// comparisons produce new GraphDiff objects; nothing mutates one after
// construction.
type GraphDiff struct {
	ID            string     `json:"id"`
	SourceVersion string     `json:"sourceVersion"`
	TargetVersion string     `json:"targetVersion"`
	Timestamp     time.Time  `json:"timestamp"`
	Changes       []Change   `json:"changes"`
	Statistics    Statistics `json:"statistics"`
	Conflicts     []Conflict `json:"conflicts"`
}
