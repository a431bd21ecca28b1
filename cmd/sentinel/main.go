// Command sentinel runs the local scanning service: it loads configuration,
// opens the policy/quarantine stores, wires the sandbox tiers into an
// Orchestrator, and serves the IPC socket (and, if enabled, the dashboard)
// until told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/dashboard"
	"sentinel/internal/degradation"
	"sentinel/internal/health"
	"sentinel/internal/ipc"
	"sentinel/internal/orchestrator"
	"sentinel/internal/policystore"
	"sentinel/internal/quarantine"
	"sentinel/internal/report"
	"sentinel/internal/sandbox/behavioral"
	"sentinel/internal/sandbox/verdict"
	"sentinel/internal/sandbox/wasmscorer"
	"sentinel/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "configs/sentinel.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	if cfg.Logging.Format == "text" {
		logHandler = slog.NewTextHandler(os.Stdout, handlerOpts)
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	slog.Info("starting sentinel",
		"version", "0.1.0",
		"ipc_socket", cfg.IPC.SocketPath,
		"dashboard_enabled", cfg.Dashboard.Enabled,
	)

	if err := os.MkdirAll(cfg.PolicyStore.Dir, 0o755); err != nil {
		slog.Error("failed to create policy store directory", "error", err, "path", cfg.PolicyStore.Dir)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Quarantine.Dir, 0o755); err != nil {
		slog.Error("failed to create quarantine directory", "error", err, "path", cfg.Quarantine.Dir)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.IPC.SocketPath), 0o755); err != nil {
		slog.Error("failed to create ipc socket directory", "error", err, "path", cfg.IPC.SocketPath)
		os.Exit(1)
	}

	store, err := policystore.OpenWithCacheSize(cfg.PolicyStore.Dir, cfg.PolicyStore.MatchCacheSize)
	if err != nil {
		slog.Error("failed to open policy store", "error", err)
		os.Exit(1)
	}
	slog.Info("policy store opened", "dir", cfg.PolicyStore.Dir, "match_cache_size", cfg.PolicyStore.MatchCacheSize)

	vault, err := quarantine.Open(cfg.Quarantine.Dir, store)
	if err != nil {
		slog.Error("failed to open quarantine vault", "error", err)
		os.Exit(1)
	}
	slog.Info("quarantine vault opened", "dir", cfg.Quarantine.Dir)

	tier1 := wasmscorer.New(cfg.WasmScorer.ToWasmScorerConfig(), logger)
	tier2 := behavioral.New(cfg.Behavioral.ToBehavioralConfig())
	verdictEng := verdict.NewWithWeightsAndThresholds(cfg.Verdict.ToWeights(), cfg.Verdict.ToThresholds())

	orch := orchestrator.New(cfg.Orchestrator.ToOrchestratorConfig(), store, tier1, tier2, verdictEng)
	reporter := report.New()

	healthRegistry := health.New(cfg.Health.CriticalComponents...)
	healthRegistry.RegisterCheck("database", func(ctx context.Context) (health.ComponentHealth, error) {
		if store.IsDatabaseHealthy() {
			return health.ComponentHealth{Status: health.Healthy}, nil
		}
		return health.ComponentHealth{Status: health.Unhealthy, Message: "policy store database unreachable"}, nil
	})
	healthRegistry.RegisterCheck("quarantine", func(ctx context.Context) (health.ComponentHealth, error) {
		return health.ComponentHealth{Status: health.Healthy}, nil
	})
	healthRegistry.RegisterCheck("ipc", func(ctx context.Context) (health.ComponentHealth, error) {
		return health.ComponentHealth{Status: health.Healthy}, nil
	})

	degradationRegistry := degradation.New()

	var telemetryProvider *telemetry.Provider
	if cfg.Telemetry.Enabled {
		telemetryProvider, err = telemetry.NewProvider(cfg.Telemetry)
		if err != nil {
			slog.Warn("telemetry initialization failed, continuing without tracing", "error", err)
			telemetryProvider = telemetry.NoopProvider()
		} else {
			slog.Info("telemetry enabled", "exporter", cfg.Telemetry.Exporter, "endpoint", cfg.Telemetry.Endpoint)
		}
	} else {
		telemetryProvider = telemetry.NoopProvider()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthInterval := time.Duration(cfg.Health.CheckIntervalMS) * time.Millisecond
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}

	var dashboardServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashboardServer = dashboard.NewServer(cfg.Dashboard.Listen)
		healthRegistry.SetChangeCallback(func(rep health.Report) {
			dashboardServer.Publish("health-changed", rep)
		})
	}
	healthRegistry.StartPeriodicChecks(ctx, healthInterval)

	var events ipc.EventPublisher
	if dashboardServer != nil {
		events = dashboardServer
	}

	rt := ipc.New(ipc.Deps{
		Store:        store,
		Vault:        vault,
		Orchestrator: orch,
		Reporter:     reporter,
		Health:       healthRegistry,
		Degradation:  degradationRegistry,
		Events:       events,
	})

	if err := rt.Listen(cfg.IPC.SocketPath); err != nil {
		slog.Error("failed to listen on ipc socket", "error", err, "path", cfg.IPC.SocketPath)
		os.Exit(1)
	}

	errChan := make(chan error, 2)

	go func() {
		slog.Info("ipc router serving", "socket", cfg.IPC.SocketPath)
		if err := rt.Serve(ctx); err != nil && ctx.Err() == nil {
			errChan <- fmt.Errorf("ipc router error: %w", err)
		}
	}()

	if dashboardServer != nil {
		go func() {
			slog.Info("dashboard server starting", "addr", cfg.Dashboard.Listen)
			if err := dashboardServer.Start(); err != nil {
				errChan <- fmt.Errorf("dashboard server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("server error", "error", err)
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	}

	slog.Info("shutting down")
	cancel()
	healthRegistry.StopPeriodicChecks()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := rt.Close(); err != nil {
		slog.Error("ipc router close error", "error", err)
	}

	if dashboardServer != nil {
		if err := dashboardServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("dashboard server shutdown error", "error", err)
		}
	}

	if err := store.Close(); err != nil {
		slog.Error("policy store close error", "error", err)
	}

	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}

	slog.Info("sentinel stopped")
}
