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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/grafity/services/graphdiff"
	"github.com/AleutianAI/grafity/services/graphdiff/rules"
	"github.com/AleutianAI/grafity/services/graphdiff/telemetry"
	"github.com/AleutianAI/grafity/services/graphdiff/version"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	servePort      int
	serveDebug     bool
	serveDataDir   string
	serveRulesFile string
	serveRPS       float64
	serveBurst     int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the graph diff API server",
		Long: `Starts the HTTP API for comparing snapshots, compiling and applying
patches, and managing the version store. Versions and diffs are persisted
to BadgerDB when --data-dir is set; otherwise the store is in-memory.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "BadgerDB directory for persistence (in-memory when empty)")
	serveCmd.Flags().StringVar(&serveRulesFile, "rules", "", "YAML file with forbidden transitions (hot reloaded)")
	serveCmd.Flags().Float64Var(&serveRPS, "rate-limit", 50, "Requests per second before 429")
	serveCmd.Flags().IntVar(&serveBurst, "rate-burst", 100, "Burst size for the rate limiter")
}

func runServe(cmd *cobra.Command, args []string) error {
	slogger := logger.Slog()

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Telemetry (prometheus-backed OTel meter)
	metrics, shutdownMetrics, err := telemetry.Init(telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(ctx); err != nil {
			slogger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	// Storage
	var db *badger.DB
	if serveDataDir != "" {
		opts := badger.DefaultOptions(serveDataDir).WithLogger(nil)
		db, err = badger.Open(opts)
		if err != nil {
			return fmt.Errorf("opening badger at %s: %w", serveDataDir, err)
		}
		defer db.Close()
		slogger.Info("BadgerDB opened", "dir", serveDataDir)
	}

	store, err := version.NewStore(version.Config{DB: db, Logger: slogger})
	if err != nil {
		return fmt.Errorf("creating version store: %w", err)
	}

	// Transition rules, with optional hot reload
	ruleSet := rules.Default()
	if serveRulesFile != "" {
		watcher, err := rules.Watch(serveRulesFile, ruleSet, slogger)
		if err != nil {
			return fmt.Errorf("watching rules file: %w", err)
		}
		defer watcher.Close()
		slogger.Info("Rules file loaded", "path", serveRulesFile, "transitions", ruleSet.Len())
	}

	svc, err := graphdiff.NewService(graphdiff.ServiceConfig{
		Store:   store,
		Rules:   ruleSet,
		Logger:  slogger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	handlers := graphdiff.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	if serveDebug {
		router.Use(gin.Logger())
	}
	router.Use(telemetry.GinMiddleware(metrics))
	router.Use(graphdiff.RateLimitMiddleware(serveRPS, serveBurst))

	v1 := router.Group("/v1")
	graphdiff.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printServeBanner(servePort, serveDataDir != "")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slogger.Info("Shutting down grafity server")
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", servePort)
	slogger.Info("Starting grafity server", "address", addr)
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

func printServeBanner(port int, persistent bool) {
	// Banner only when stdout is a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return
	}

	storage := "in-memory (set --data-dir to persist)"
	if persistent {
		storage = "BadgerDB (persistent)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                         GRAFITY SERVER                            ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Graph diffing, patching, and versioning over HTTP.               ║
║  Storage: %-55s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/graphdiff/health              │  ║
║  │                                                             │  ║
║  │ # Compare two snapshots                                     │  ║
║  │ curl -X POST http://localhost:%d/v1/graphdiff/compare \   │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"source": {...}, "target": {...}}'                   │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Diff: /compare, /diffs/:id, /diffs/:id/highlights            ║
║  ├── Patch: /patch, /patch/apply                                  ║
║  ├── Versions: /versions, /versions/:id, /versions/compare        ║
║  └── Ops: /health, /ready, /metrics                               ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, storage, port, port)
}
