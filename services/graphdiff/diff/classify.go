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
	"fmt"

	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// dataImpact applies the leaf-difference impact rule:
// value appeared -> enhancement, value disappeared -> breaking,
// type class changed -> breaking, otherwise compatible.
func dataImpact(oldValue, newValue any) Impact {
	switch {
	case IsUndefined(oldValue):
		return ImpactEnhancement
	case IsUndefined(newValue):
		return ImpactBreaking
	case typeClass(oldValue) != typeClass(newValue):
		return ImpactBreaking
	default:
		return ImpactCompatible
	}
}

// applySemanticOverrides is the SemanticDiff post-pass over edge-related
// and type/behavior changes.
//
// Connectivity is edges / max(1, nodes) for a snapshot. An edge removal
// that lowers connectivity is upgraded to breaking. Any change whose path
// touches "type" or "behavior" is forced to behavioral/breaking.
func applySemanticOverrides(changes []Change, source, target *graph.Snapshot) {
	before := connectivity(source)
	after := connectivity(target)

	for _, c := range changes {
		if _, removed := c.(*EdgeRemoved); removed && after < before {
			c.Semantic().Impact = ImpactBreaking
		}
		if pathTouchesBehavior(changePath(c)) {
			sem := c.Semantic()
			sem.Category = CategoryBehavioral
			sem.Impact = ImpactBreaking
		}
	}
}

func connectivity(s *graph.Snapshot) float64 {
	nodes := len(s.Nodes)
	if nodes < 1 {
		nodes = 1
	}
	return float64(len(s.Edges)) / float64(nodes)
}

func pathTouchesBehavior(path []string) bool {
	for _, step := range path {
		if step == "type" || step == "behavior" {
			return true
		}
	}
	return false
}

// changePath returns the modification path for the variants that carry
// one, nil otherwise.
func changePath(c Change) []string {
	switch m := c.(type) {
	case *NodeModified:
		return m.Path
	case *EdgeModified:
		return m.Path
	default:
		return nil
	}
}

// attachMigrations generates advisory migrations for every breaking change.
func attachMigrations(changes []Change) {
	for _, c := range changes {
		sem := c.Semantic()
		if sem.Impact != ImpactBreaking {
			continue
		}
		switch m := c.(type) {
		case *NodeRemoved:
			sem.Migrations = append(sem.Migrations, Migration{
				Type:        MigrationManual,
				Description: fmt.Sprintf("node %s is removed", c.EntityID()),
				Instructions: fmt.Sprintf(
					"audit all references to node %s and remove or retarget them before applying this change", c.EntityID()),
			})
		case *EdgeRemoved:
			sem.Migrations = append(sem.Migrations, Migration{
				Type: MigrationAutomatic,
				Description: fmt.Sprintf("edge %s (%s -> %s) is removed; references can be cleaned up automatically",
					c.EntityID(), m.Before.Source, m.Before.Target),
			})
		case *NodeModified:
			if pathIsType(m.Path) {
				sem.Migrations = append(sem.Migrations, typeTransform(c.EntityID(), m.OldValue, m.NewValue))
			}
		case *EdgeModified:
			if pathIsType(m.Path) {
				sem.Migrations = append(sem.Migrations, typeTransform(c.EntityID(), m.OldValue, m.NewValue))
			}
		}
	}
}

func pathIsType(path []string) bool {
	for _, step := range path {
		if step == "type" {
			return true
		}
	}
	return false
}

func typeTransform(entityID string, oldValue, newValue any) Migration {
	return Migration{
		Type: MigrationDataTransform,
		Description: fmt.Sprintf("entity %s changes type from %v to %v",
			entityID, oldValue, newValue),
		Code: fmt.Sprintf("transform(%q, from=%v, to=%v)", entityID, oldValue, newValue),
	}
}
