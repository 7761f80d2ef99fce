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
	"fmt"

	"github.com/AleutianAI/grafity/services/graphdiff"
	"github.com/AleutianAI/grafity/services/graphdiff/graph"
	"github.com/AleutianAI/grafity/services/graphdiff/version"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

var (
	versionsDataDir string
	versionsAuthor  string
	versionsMessage string

	versionsCmd = &cobra.Command{
		Use:   "versions",
		Short: "Manage the graph version store",
	}
	versionsStoreCmd = &cobra.Command{
		Use:   "store [snapshot.json]",
		Short: "Store a snapshot as a new version",
		Args:  cobra.ExactArgs(1),
		RunE:  runVersionsStore,
	}
	versionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored versions, newest first",
		RunE:  runVersionsList,
	}
	versionsCompareCmd = &cobra.Command{
		Use:   "compare [source-id] [target-id]",
		Short: "Compare two stored versions",
		Args:  cobra.ExactArgs(2),
		RunE:  runVersionsCompare,
	}
)

func init() {
	versionsCmd.PersistentFlags().StringVar(&versionsDataDir, "data-dir", "", "BadgerDB directory (required)")
	versionsCmd.MarkPersistentFlagRequired("data-dir")

	versionsStoreCmd.Flags().StringVar(&versionsAuthor, "author", "", "Version author")
	versionsStoreCmd.Flags().StringVar(&versionsMessage, "message", "", "Version message")

	versionsCompareCmd.Flags().BoolVar(&diffSemantic, "semantic", false, "Apply semantic classification overrides")
	versionsCompareCmd.Flags().BoolVar(&diffConflicts, "conflicts", false, "Detect conflicts and propose resolutions")
	versionsCompareCmd.Flags().BoolVar(&diffIgnoreMetadata, "ignore-metadata", false, "Skip metadata keys when diffing data")
	versionsCompareCmd.Flags().BoolVar(&diffIgnoreTimestamps, "ignore-timestamps", false, "Skip timestamp keys when diffing data")
	versionsCompareCmd.Flags().StringVar(&diffRulesFile, "rules", "", "YAML file with forbidden transitions")
}

// openVersionService opens the badger-backed store and wraps it in a
// service. The returned close func owns the database handle.
func openVersionService() (*graphdiff.Service, func() error, error) {
	opts := badger.DefaultOptions(versionsDataDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("opening badger at %s: %w", versionsDataDir, err)
	}

	store, err := version.NewStore(version.Config{DB: db, Logger: logger.Slog()})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating version store: %w", err)
	}

	svc, err := graphdiff.NewService(graphdiff.ServiceConfig{
		Store:  store,
		Logger: logger.Slog(),
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return svc, db.Close, nil
}

func runVersionsStore(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(args[0])
	if err != nil {
		return err
	}

	svc, closeDB, err := openVersionService()
	if err != nil {
		return err
	}
	defer closeDB()

	v := &graph.Version{
		Author:  versionsAuthor,
		Message: versionsMessage,
		Graph:   snap,
	}
	if err := svc.StoreVersion(cmd.Context(), v); err != nil {
		return fmt.Errorf("storing version: %w", err)
	}
	fmt.Printf("stored version %s (%d nodes, %d edges)\n", v.ID, len(snap.Nodes), len(snap.Edges))
	return nil
}

func runVersionsList(cmd *cobra.Command, args []string) error {
	svc, closeDB, err := openVersionService()
	if err != nil {
		return err
	}
	defer closeDB()

	history := svc.VersionHistory()
	if len(history) == 0 {
		fmt.Println("no versions stored")
		return nil
	}
	for _, v := range history {
		fmt.Printf("%s  %s  %-12s  %s\n",
			v.ID, v.Timestamp.Format("2006-01-02 15:04:05"), v.Author, v.Message)
	}
	return nil
}

func runVersionsCompare(cmd *cobra.Command, args []string) error {
	svc, closeDB, err := openVersionService()
	if err != nil {
		return err
	}
	defer closeDB()

	ruleSet, err := ruleSetFromFlags()
	if err != nil {
		return err
	}

	d, err := svc.CompareVersions(cmd.Context(), args[0], args[1], diffOptionsFromFlags(ruleSet))
	if err != nil {
		return fmt.Errorf("comparing versions: %w", err)
	}
	printDiffSummary(d)
	return nil
}
