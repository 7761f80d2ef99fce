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
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/grafity/services/graphdiff/diff"
	"github.com/AleutianAI/grafity/services/graphdiff/patch"
	"github.com/spf13/cobra"
)

var (
	patchDiffFile     string
	patchCreatedBy    string
	patchOutFile      string
	patchSnapshotFile string
	patchPatchFile    string

	patchCmd = &cobra.Command{
		Use:   "patch",
		Short: "Compile and apply graph patches",
	}
	patchCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Compile a patch from a diff document",
		Long: `Compiles a diff (as produced by 'grafity diff --output json') into a
patch of add/remove/replace operations. Changes that cannot be expressed
as operations are reported on stderr and skipped.`,
		RunE: runPatchCreate,
	}
	patchApplyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Apply a patch to a snapshot",
		Long: `Applies a patch to a graph snapshot and prints the patched snapshot.
The patch checksum is verified before any operation runs.`,
		RunE: runPatchApply,
	}
)

func init() {
	patchCreateCmd.Flags().StringVar(&patchDiffFile, "diff", "", "Diff document file (required)")
	patchCreateCmd.Flags().StringVar(&patchCreatedBy, "created-by", "", "Author recorded in patch metadata")
	patchCreateCmd.Flags().StringVar(&patchOutFile, "out", "", "Write the patch to a file instead of stdout")
	patchCreateCmd.MarkFlagRequired("diff")

	patchApplyCmd.Flags().StringVar(&patchSnapshotFile, "snapshot", "", "Snapshot file to patch (required)")
	patchApplyCmd.Flags().StringVar(&patchPatchFile, "patch", "", "Patch file to apply (required)")
	patchApplyCmd.Flags().StringVar(&patchOutFile, "out", "", "Write the result to a file instead of stdout")
	patchApplyCmd.MarkFlagRequired("snapshot")
	patchApplyCmd.MarkFlagRequired("patch")
}

func runPatchCreate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(patchDiffFile)
	if err != nil {
		return fmt.Errorf("reading diff %s: %w", patchDiffFile, err)
	}
	var d diff.GraphDiff
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parsing diff %s: %w", patchDiffFile, err)
	}

	p, skipped, err := patch.Compile(&d, patchCreatedBy)
	if err != nil {
		return fmt.Errorf("compiling patch: %w", err)
	}
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "skipped %s %s: %s\n", s.Kind, s.EntityID, s.Reason)
	}

	return writeJSON(patchOutFile, p)
}

func runPatchApply(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(patchSnapshotFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(patchPatchFile)
	if err != nil {
		return fmt.Errorf("reading patch %s: %w", patchPatchFile, err)
	}
	var p patch.Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing patch %s: %w", patchPatchFile, err)
	}

	result, err := patch.Apply(snap, &p)
	if err != nil {
		var opErr *patch.OpError
		if errors.As(err, &opErr) {
			return fmt.Errorf("applying patch: operation %d (%s %s) failed: %w",
				opErr.Index, opErr.Op.Op, opErr.Op.Path, opErr.Err)
		}
		return fmt.Errorf("applying patch: %w", err)
	}

	return writeJSON(patchOutFile, result)
}

func writeJSON(path string, v any) error {
	if path == "" {
		return printJSON(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
