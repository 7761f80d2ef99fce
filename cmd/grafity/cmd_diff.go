// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AleutianAI/grafity/services/graphdiff"
	"github.com/AleutianAI/grafity/services/graphdiff/diff"
	"github.com/AleutianAI/grafity/services/graphdiff/graph"
	"github.com/AleutianAI/grafity/services/graphdiff/rules"
	"github.com/spf13/cobra"
)

var (
	diffSemantic         bool
	diffConflicts        bool
	diffIgnoreMetadata   bool
	diffIgnoreTimestamps bool
	diffRulesFile        string
	diffOutput           string

	diffCmd = &cobra.Command{
		Use:   "diff [source.json] [target.json]",
		Short: "Compare two graph snapshot files",
		Long: `Compares two graph snapshots and prints the classified change set,
conflicts, and statistics. Output is a human-readable summary by default,
or the full diff document with --output json.`,
		Args: cobra.ExactArgs(2),
		RunE: runDiff,
	}
)

func init() {
	diffCmd.Flags().BoolVar(&diffSemantic, "semantic", false, "Apply semantic classification overrides")
	diffCmd.Flags().BoolVar(&diffConflicts, "conflicts", false, "Detect conflicts and propose resolutions")
	diffCmd.Flags().BoolVar(&diffIgnoreMetadata, "ignore-metadata", false, "Skip metadata keys when diffing data")
	diffCmd.Flags().BoolVar(&diffIgnoreTimestamps, "ignore-timestamps", false, "Skip timestamp keys when diffing data")
	diffCmd.Flags().StringVar(&diffRulesFile, "rules", "", "YAML file with forbidden transitions")
	diffCmd.Flags().StringVar(&diffOutput, "output", "summary", "Output format (summary, json)")
}

// diffOptionsFromFlags builds diff options from the shared comparison
// flags, used by both this command and `versions compare`.
func diffOptionsFromFlags(ruleSet *rules.Set) diff.Options {
	return diff.Options{
		SemanticDiff:              diffSemantic,
		IncludeConflictResolution: diffConflicts,
		IgnoreMetadata:            diffIgnoreMetadata,
		IgnoreTimestamps:          diffIgnoreTimestamps,
		Rules:                     ruleSet,
		Logger:                    logger.Slog(),
	}
}

// ruleSetFromFlags loads the --rules file when one was given, falling
// back to the default forbidden transitions.
func ruleSetFromFlags() (*rules.Set, error) {
	if diffRulesFile == "" {
		return rules.Default(), nil
	}
	transitions, err := rules.LoadFile(diffRulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return rules.New(transitions), nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	source, err := loadSnapshot(args[0])
	if err != nil {
		return err
	}
	target, err := loadSnapshot(args[1])
	if err != nil {
		return err
	}

	ruleSet, err := ruleSetFromFlags()
	if err != nil {
		return err
	}

	d, err := diff.Compare(source, target, args[0], args[1], diffOptionsFromFlags(ruleSet))
	if err != nil {
		return fmt.Errorf("comparing snapshots: %w", err)
	}

	if diffOutput == "json" {
		return printJSON(d)
	}
	printDiffSummary(d)
	return nil
}

func printDiffSummary(d *diff.GraphDiff) {
	s := d.Statistics
	fmt.Printf("Diff %s: %s -> %s\n", d.ID, d.SourceVersion, d.TargetVersion)
	fmt.Printf("  changes:    %d (nodes +%d -%d ~%d, edges +%d -%d ~%d)\n",
		s.TotalChanges,
		s.NodesAdded, s.NodesRemoved, s.NodesModified,
		s.EdgesAdded, s.EdgesRemoved, s.EdgesModified)
	fmt.Printf("  similarity: %.3f\n", s.Similarity)
	fmt.Printf("  complexity: %.3f\n", s.Complexity)
	fmt.Printf("  conflicts:  %d\n", len(d.Conflicts))

	for _, h := range graphdiff.Highlights(d) {
		line := fmt.Sprintf("  [%s] %s %s", h.ChangeKind, h.EntityKind, h.EntityID)
		if h.Impact != "" {
			line += fmt.Sprintf(" (%s)", h.Impact)
		}
		if h.Description != "" {
			line += ": " + h.Description
		}
		fmt.Println(line)
	}
	for _, c := range d.Conflicts {
		fmt.Printf("  CONFLICT [%s/%s] %s\n", c.Type, c.Severity, c.Description)
	}
}

func loadSnapshot(path string) (*graph.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &snap, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
