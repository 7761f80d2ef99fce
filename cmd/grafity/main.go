// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command grafity is the CLI for the graph diffing and patching engine.
//
// It compares graph snapshots, compiles and applies patches, manages a
// version store, and runs the HTTP API server.
//
// Usage:
//
//	grafity diff old.json new.json
//	grafity patch create --diff diff.json
//	grafity patch apply --snapshot old.json --patch patch.json
//	grafity serve --port 8080 --data-dir ~/.grafity/data
//
// Example requests against the server:
//
//	# Health check
//	curl http://localhost:8080/v1/graphdiff/health
//
//	# Compare two snapshots
//	curl -X POST http://localhost:8080/v1/graphdiff/compare \
//	  -H "Content-Type: application/json" \
//	  -d '{"source": {...}, "target": {...}, "options": {"semanticDiff": true}}'
package main

import (
	"fmt"
	"os"

	"github.com/AleutianAI/grafity/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "grafity",
		Short: "A CLI for diffing, patching, and versioning graphs",
		Long: `Grafity compares graph snapshots into classified change sets,
compiles diffs into replayable patches, and tracks graph versions.`,
	}

	logLevel string
	logDir   string
	logJSON  bool

	logger *logging.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for log files (disabled when empty)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger = logging.New(logging.Config{
			Level:   parseLevel(logLevel),
			LogDir:  logDir,
			Service: "grafity",
			JSON:    logJSON,
		})
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(patchCmd)
	patchCmd.AddCommand(patchCreateCmd)
	patchCmd.AddCommand(patchApplyCmd)
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.AddCommand(versionsStoreCmd)
	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsCompareCmd)
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
