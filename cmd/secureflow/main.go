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

	"github.com/gin-gonic/gin"

	"secureflow/internal/api"
	"secureflow/internal/config"
	"secureflow/internal/domain"
	"secureflow/internal/logging"
	"secureflow/internal/processor"
	"secureflow/internal/repository"
	"secureflow/internal/repository/memory"
	"secureflow/internal/repository/sqlite"
	"secureflow/internal/service"
	"secureflow/pkg/crypto"
	"secureflow/pkg/metrics"
)

const (
	appName = "secureflow"

	alertQueueSize = 256
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("Starting application",
		slog.String("name", appName),
		slog.String("env", cfg.Env),
		slog.String("utc_offset", cfg.LocalOffset))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	history, users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	metricsCollector := metrics.NewMetricsCollector(logger)
	signer := crypto.NewSigner(cfg.SigningSecret, logger)
	alertService := service.NewAlertService(cfg.AlertWorkers, alertQueueSize, logger, service.NewLogSink(logger))

	engine := processor.NewRiskEngine(logger).WithLocation(cfg.Location)
	aggregator := processor.NewStatsAggregator(logger).WithLocation(cfg.Location)
	txProcessor := processor.NewTransactionProcessor(history, users, engine, aggregator, defaultProfile(cfg), logger).
		WithSigner(signer).
		WithAlerts(alertService).
		WithRecorder(metricsCollector)

	if err := txProcessor.EnsureSeeded(ctx); err != nil {
		_ = alertService.Shutdown(ctx)
		return fmt.Errorf("seed store: %w", err)
	}
	logger.Info("Risk engine ready", slog.Int("rules", engine.RulesEvaluated()))

	apiHandler := api.NewAPIHandler(txProcessor, metricsCollector, signer, logger, api.Options{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		StatsCacheTTL:  cfg.StatsCacheTTL,
	})

	metricsServer := metricsCollector.StartMetricsServer(cfg.MetricsAddr)
	httpServer, serverErr := startHTTPServer(":"+cfg.Port, apiHandler, logger)
	err = waitForShutdown(logger, serverErr, httpServer, metricsServer, alertService, metricsCollector)
	logger.Info("Application shutdown complete")
	return err
}

// openStore picks the sqlite store when a path is configured, memory otherwise.
func openStore(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (repository.HistoryRepository, repository.UserRepository, func(), error) {
	if cfg.DatabasePath == "" {
		logger.Info("Using in-memory store")
		return memory.NewHistoryRepository(), memory.NewUserRepository(nil), func() {}, nil
	}

	store, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", slog.String("error", err.Error()))
		}
	}
	return store, store, closeFn, nil
}

func defaultProfile(cfg *config.Config) domain.User {
	return domain.User{
		ID:              "user-" + domain.Handle(cfg.UserUPI),
		Name:            cfg.UserName,
		UPIID:           cfg.UserUPI,
		Balance:         cfg.InitialBalance,
		TrustedContacts: cfg.TrustedContacts,
	}
}

func startHTTPServer(addr string, apiHandler *api.APIHandler, logger *slog.Logger) (*http.Server, <-chan error) {
	server := &http.Server{
		Addr:         addr,
		Handler:      apiHandler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return server, serverErr
}

// waitForShutdown blocks until a signal arrives or the HTTP server fails,
// then stops everything. It returns the server failure, if any.
func waitForShutdown(
	logger *slog.Logger,
	serverErr <-chan error,
	httpServer *http.Server,
	metricsServer *http.Server,
	alertService *service.AlertService,
	metricsCollector *metrics.MetricsCollector,
) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var failure error
	select {
	case <-stop:
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.Error("HTTP server failed", slog.String("error", err.Error()))
		failure = fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := alertService.Shutdown(ctx); err != nil {
		logger.Error("Alert service shutdown failed", slog.String("error", err.Error()))
	}
	if err := metricsCollector.Shutdown(ctx); err != nil {
		logger.Error("Metrics collector shutdown failed", slog.String("error", err.Error()))
	}

	return failure
}
