// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github-profile-analyzer/internal/aggregator"
	"github-profile-analyzer/internal/analysis"
	"github-profile-analyzer/internal/api"
	"github-profile-analyzer/internal/badge"
	"github-profile-analyzer/internal/cache"
	"github-profile-analyzer/internal/config"
	"github-profile-analyzer/internal/github"
	"github-profile-analyzer/internal/heatmap"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully",
		"github_tokens", len(cfg.GithubTokens), "gemini_keys", len(cfg.GeminiAPIKeys))

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize application components
	ghClient := github.NewClient(cfg.GithubTokens, logger)
	prober := badge.NewProber(logger)
	agg := aggregator.New(ghClient, prober, cfg.RequiredStarRepo, logger)
	invoker := analysis.NewInvoker(cfg.GeminiAPIKeys, cfg.GeminiModel, logger)
	heatmapSvc := heatmap.NewService(ghClient, cache.NewTTL(), logger)

	router := api.NewRouter(api.Deps{
		Github:         ghClient,
		Aggregator:     agg,
		Analyzer:       invoker,
		Heatmap:        heatmapSvc,
		FrontendOrigin: cfg.FrontendOrigin,
		RequiredRepo:   cfg.RequiredStarRepo,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Start the server and wait for shutdown signal
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received. Exiting.")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
