package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lotwatch/lotsync/internal/config"
	"github.com/lotwatch/lotsync/internal/connection"
	"github.com/lotwatch/lotsync/internal/engine"
	"github.com/lotwatch/lotsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncd.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	// Set up structured logging
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.BaseURL,
		"channels", len(cfg.Channels),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Assemble the engine
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	eng := engine.New(cfg, registry, logger)

	// Start health and metrics server early so startup is observable
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHandler(cfg, eng, registry, logger),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Start the engine (initial snapshot load blocks)
	logger.Info("starting engine (initial snapshot load)...")
	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("syncd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Warn("engine shutdown", "error", err)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("syncd stopped")
}

// createHandler builds the HTTP surface: health, metrics, and debug
// inspection endpoints.
func createHandler(cfg *config.EngineConfig, eng *engine.Engine, registry *prometheus.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		statuses := eng.ChannelStatuses()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		connected := 0
		for _, s := range statuses {
			if s == connection.StateConnected {
				connected++
			}
		}
		health.Components["channels"] = map[string]interface{}{
			"total":     len(statuses),
			"connected": connected,
		}
		if connected == 0 {
			health.Status = "degraded"
		}

		stats := eng.Stats()
		health.Components["state"] = map[string]interface{}{
			"lots":  stats.State.LotsTracked,
			"spots": stats.State.SpotsTracked,
		}
		health.Components["dispatch"] = map[string]interface{}{
			"ingested":     stats.Dispatch.Ingested,
			"parse_errors": stats.Dispatch.ParseErrors,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/lots", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.Lots())
	})

	mux.HandleFunc("/debug/alerts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"unread": eng.UnreadCount(),
			"alerts": eng.Alerts(),
		})
	})

	mux.HandleFunc("/debug/performance", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.Performance())
	})

	return mux
}
