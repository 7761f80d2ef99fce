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
	"log/slog"

	"github.com/AleutianAI/grafity/services/graphdiff/rules"
)

// DefaultMaxDepth bounds recursion in the deep differ. Snapshot payloads are
// data trees, not live object graphs; anything deeper than this is treated
// as an accidental cycle and fails hard rather than recursing forever.
const DefaultMaxDepth = 64

// Comparator overrides default equality for a matching key or path.
// It reports whether the two values should be considered equal.
//
// A comparator that panics is treated as "not applicable": the panic is
// recovered, logged, and the default comparison runs instead.
type Comparator func(oldValue, newValue any) bool

// Options configures a comparison run. The zero value is valid: full diff,
// no ignores, default rules, no conflict resolution.
type Options struct {
	// IgnoreMetadata skips the fixed metadata key set
	// (metadata, createdAt, updatedAt, version) when diffing objects.
	IgnoreMetadata bool

	// IgnoreTimestamps skips the fixed timestamp key set
	// (createdAt, updatedAt, timestamp, lastModified).
	IgnoreTimestamps bool

	// SemanticDiff enables the connectivity-aware post-pass that upgrades
	// edge removals and type/behavior changes to breaking.
	SemanticDiff bool

	// IncludeConflictResolution runs the conflict detector over the change
	// set and attaches candidate resolutions.
	IncludeConflictResolution bool

	// CustomComparators overrides equality per key or per joined path
	// (dot-separated, e.g. "data.props.title"). Path entries win over
	// key entries when both match.
	CustomComparators map[string]Comparator

	// ContextWindow is reserved for future context-aware diffing. It is
	// accepted and ignored by the core algorithms.
	ContextWindow int

	// MaxDepth bounds deep differ recursion. Zero means DefaultMaxDepth.
	MaxDepth int

	// Rules is the forbidden-transition set consulted by the conflict
	// detector. Nil means rules.Default().
	Rules *rules.Set

	// Logger receives soft-failure diagnostics (comparator panics).
	// Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

func (o Options) ruleSet() *rules.Set {
	if o.Rules != nil {
		return o.Rules
	}
	return rules.Default()
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// metadataKeys is the fixed key set skipped under IgnoreMetadata.
var metadataKeys = map[string]struct{}{
	"metadata":  {},
	"createdAt": {},
	"updatedAt": {},
	"version":   {},
}

// timestampKeys is the fixed key set skipped under IgnoreTimestamps.
var timestampKeys = map[string]struct{}{
	"createdAt":    {},
	"updatedAt":    {},
	"timestamp":    {},
	"lastModified": {},
}

func (o Options) skipKey(key string) bool {
	if o.IgnoreMetadata {
		if _, ok := metadataKeys[key]; ok {
			return true
		}
	}
	if o.IgnoreTimestamps {
		if _, ok := timestampKeys[key]; ok {
			return true
		}
	}
	return false
}
