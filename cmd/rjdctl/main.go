package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rjdctl/internal/cli"
	"rjdctl/internal/config"
	"rjdctl/internal/errors"
)

func main() {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfigFile(os.Getenv(config.EnvPrefix + "_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := config.ApplyVaultSecrets(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Failed to load secrets")
		os.Exit(1)
	}

	logger.Info("Starting rjdctl",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"service", cfg.Service.BaseURL)

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Application execution failed")
		os.Exit(1)
	}
}
