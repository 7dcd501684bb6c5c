package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/educonnect/educonnect-client/config"
	"github.com/educonnect/educonnect-client/internal/api"
	"github.com/educonnect/educonnect-client/internal/offline"
	"github.com/educonnect/educonnect-client/internal/session"
	"github.com/educonnect/educonnect-client/pkg/httpclient"
	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/educonnect/educonnect-client/pkg/profiling"
	"github.com/educonnect/educonnect-client/pkg/tracing"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.API.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize tracing
	shutdownTracer, err := tracing.InitTracer(
		cfg.Observability.ServiceName,
		cfg.Observability.ServiceNamespace,
		cfg.Observability.ServiceVersion,
		cfg.Observability.ServiceInstanceID,
		cfg.API.AppEnv,
		cfg.Observability.ExporterEndpoint,
	)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Initialize profiling
	stopProfiler, err := profiling.InitProfiler(
		cfg.Profiling,
		cfg.Observability.ServiceName,
		cfg.Observability.ServiceNamespace,
		cfg.Observability.ServiceVersion,
		cfg.Observability.ServiceInstanceID,
		cfg.API.AppEnv,
	)
	if err != nil {
		logger.Fatal("Failed to initialize profiling", zap.Error(err))
	}
	defer stopProfiler()

	// Session store in the state directory
	stateDir := cfg.State.Dir
	if stateDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			logger.Fatal("Failed to resolve state directory", zap.Error(err))
		}
		stateDir = filepath.Join(base, "educonnect")
	}

	store, err := session.NewFileStore(stateDir)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.Error(err))
	}

	// Request client over a cookie-jarred transport; the jar carries the
	// refresh credential.
	transport := httpclient.NewCredentialedClient(
		time.Duration(cfg.API.RequestTimeoutSeconds) * time.Second,
	)
	client := api.NewClient(cfg.API.BaseURL, transport, store,
		api.WithRateLimit(cfg.API.RequestsPerSecond))

	// Boot-time session restoration gates everything that follows
	restorer := session.NewRestorer(store, client,
		time.Duration(cfg.API.RestoreTimeoutSeconds)*time.Second)
	if restorer.Restore(context.Background()) {
		logger.Info("Session restored, starting authenticated")
	} else {
		logger.Info("Starting unauthenticated")
	}

	// Offline shell gateway
	storage := offline.NewStorage()
	worker, err := offline.NewWorker(cfg.API.BaseURL, transport, storage)
	if err != nil {
		logger.Fatal("Failed to build offline worker", zap.Error(err))
	}
	shell := offline.NewShellServer(cfg.Shell.Addr, worker, cfg.Shell.AllowedOrigins)

	errCh := make(chan error, 1)
	go func() {
		errCh <- shell.Run(context.Background())
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Shell gateway failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := shell.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shell gateway shutdown failed", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
