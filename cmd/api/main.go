package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	statementhandler "github.com/fintrail/statement-ingest/internal/domain/statement/handler"
	"github.com/fintrail/statement-ingest/pkg/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to init dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background categorization worker
	if cfg.Ingest.WorkerEnabled {
		go deps.Worker.Run(ctx)
	}

	// Scheduled jobs: stale job sweep, config and keyword refresh
	if err := deps.Scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Scheduler.Stop()

	// Metrics on its own port, away from the public surface
	if cfg.Observability.MetricsEnabled {
		go serveMetrics(cfg.Observability.MetricsPort, deps, logger)
	}
	if cfg.Profiling.Enabled {
		go servePprof(cfg.Profiling.Port, logger)
	}

	mux := http.NewServeMux()
	statementhandler.Routes(mux, deps.StatementHandler, deps.AdminHandler)

	limited := statementhandler.RateLimit(
		float64(cfg.Server.RateLimitPerSecond),
		cfg.Server.RateLimitBurst,
		mux,
	)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.Server.BaseURL},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(limited)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

func serveMetrics(port int, deps *Dependencies, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", slog.Any("error", err))
	}
}

func servePprof(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	addr := fmt.Sprintf(":%d", port)
	logger.Info("pprof listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("pprof server stopped", slog.Any("error", err))
	}
}
