// Talon - Card fraud detection that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/talon/internal/api"
	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/cache"
	"github.com/opensource-finance/talon/internal/detector"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/feature"
	"github.com/opensource-finance/talon/internal/history"
	"github.com/opensource-finance/talon/internal/model"
	"github.com/opensource-finance/talon/internal/repository"
	"github.com/opensource-finance/talon/internal/rules"
	"github.com/opensource-finance/talon/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("TALON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting talon",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("TALON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if path := os.Getenv("TALON_STATE_PATH"); path != "" {
		cfg.Model.StatePath = path
	}
	if path := os.Getenv("TALON_CLASSIFIER_PATH"); path != "" {
		cfg.Model.ClassifierPath = path
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize History Service
	historySvc := history.NewService(repo, cacheImpl, cfg.History.WindowSecs)
	slog.Info("history service initialized", "window_secs", cfg.History.WindowSecs)

	// Load the fitted feature transform. Scoring cannot proceed
	// without it.
	state, err := feature.Load(cfg.Model.StatePath)
	if err != nil {
		slog.Error("failed to load feature transform state",
			"path", cfg.Model.StatePath,
			"error", err,
		)
		os.Exit(1)
	}
	slog.Info("feature transform loaded",
		"path", cfg.Model.StatePath,
		"features", len(state.Features),
	)

	// Load the classifier. A missing classifier is tolerated: every
	// detection carries the neutral model score and degraded flag.
	var classifier domain.Classifier
	if ensemble, err := model.LoadEnsemble(cfg.Model.ClassifierPath); err != nil {
		slog.Warn("classifier unavailable, scoring in degraded mode",
			"path", cfg.Model.ClassifierPath,
			"error", err,
		)
	} else {
		classifier = ensemble
		slog.Info("classifier loaded",
			"path", cfg.Model.ClassifierPath,
			"members", ensemble.Size(),
		)
	}

	// Initialize Detection Engine
	engine, err := detector.NewEngine(state, classifier)
	if err != nil {
		slog.Error("failed to initialize detection engine", "error", err)
		os.Exit(1)
	}
	slog.Info("detection engine initialized", "ready", engine.Ready())

	// Initialize Overlay Rule Engine with velocity getter
	overlay, err := rules.NewEngine(historySvc.GetVelocityGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize overlay rule engine", "error", err)
		os.Exit(1)
	}

	// Load overlay rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, overlay); err != nil {
		slog.Error("failed to load overlay rules", "error", err)
		os.Exit(1)
	}
	slog.Info("overlay rule engine initialized", "rules_count", overlay.RulesCount())

	// Initialize Scenario Engine
	scenarioEngine := rules.NewScenarioEngine()

	// Load scenarios from database (no hardcoded defaults - configure via API)
	if err := loadScenariosFromDatabase(ctx, repo, scenarioEngine); err != nil {
		slog.Error("failed to load scenarios", "error", err)
		os.Exit(1)
	}
	slog.Info("scenario engine initialized", "scenarios_count", scenarioEngine.ScenarioCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("TALON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, engine, historySvc, overlay, scenarioEngine)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("TALON_TENANTS"); envTenants != "" {
			// Could parse comma-separated list here
			tenantIDs = []string{envTenants}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, overlay, scenarioEngine, historySvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("talon is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("talon shutdown complete")
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// loadRulesFromDatabase loads overlay rules from the database into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no overlay rules in database - configure via POST /rules API")
	return nil
}

// loadScenariosFromDatabase loads scenarios from the database into the engine.
// All scenarios must be configured via POST /scenarios API - no hardcoded defaults.
func loadScenariosFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.ScenarioEngine) error {
	dbScenarios, err := repo.ListScenarios(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list scenarios from database", "error", err)
		return nil // Start with empty scenarios - they can be added via API
	}

	if len(dbScenarios) > 0 {
		slog.Info("loading scenarios from database", "count", len(dbScenarios))
		engine.LoadScenarios(dbScenarios)
		return nil
	}

	slog.Info("no scenarios in database - configure via POST /scenarios API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 TALON                    ║")
	fmt.Println("  ║       Card Fraud Detection Engine         ║")
	fmt.Println("  ║      A grip on every transaction.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /detect            - Score a transaction")
	fmt.Println("    POST /detect/batch      - Score a batch of transactions")
	fmt.Println("    GET  /detections/{id}   - Get detection by ID")
	fmt.Println("    GET  /transactions/{id} - Get transaction by ID")
	fmt.Println("    GET  /alerts            - List recent alerts")
	fmt.Println("    GET  /rules             - List overlay rules")
	fmt.Println("    POST /rules             - Create an overlay rule")
	fmt.Println("    POST /rules/reload      - Hot-reload rules from database")
	fmt.Println("    GET  /scenarios         - List scenarios")
	fmt.Println("    POST /scenarios         - Create a scenario")
	fmt.Println("    PUT  /scenarios/{id}    - Update a scenario")
	fmt.Println("    DELETE /scenarios/{id}  - Delete a scenario")
	fmt.Println("    POST /scenarios/reload  - Hot-reload scenarios")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println("    GET  /ready             - Readiness check")
	fmt.Println("    GET  /metrics           - Service counters")
	fmt.Println()
}
