package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
	"groundseg/pkg/logging"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceExecutionWorker,
		Short: "Execution worker for the Sentinel-2 processing chain",
		Long:  "Execution worker downloads job inputs, runs the processor and publishes the produced outputs",
		RunE:  run,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	earlyLog := logging.NewEarlyLog(constants.ServiceExecutionWorker)

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.InfowCtx(ctx, "Starting Execution Worker")

	app := NewApp(cfg, log)
	if err := app.Initialize(ctx); err != nil {
		log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
		_ = app.Shutdown(context.Background())
		return err
	}

	runErr := app.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.ErrorwCtx(ctx, "Shutdown failed", "error", err)
	}

	if runErr != nil && runErr != context.Canceled {
		log.ErrorwCtx(ctx, "Service stopped with error", "error", runErr)
		return runErr
	}
	log.InfowCtx(ctx, "Service shutdown complete")
	return nil
}
