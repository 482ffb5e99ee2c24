package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/config"
	"github.com/garyjia/erp-approvals/internal/container"
	"github.com/garyjia/erp-approvals/pkg/utils"
)

const version = "1.0.0"

func main() {
	// Secrets may come from a local .env file
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ERP approval service",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := container.NewContainer(cfg.ToContainerConfig(version), logger)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		closeErr := app.Close()
		return errors.Join(fmt.Errorf("start container: %w", err), closeErr)
	}

	// Start blocks until ctx is cancelled, then shuts the listener down gracefully
	serveErr := app.Server().Start(ctx)
	if serveErr != nil {
		serveErr = fmt.Errorf("http server: %w", serveErr)
	}

	logger.Info("Shutting down")
	return errors.Join(serveErr, app.Close())
}
