package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"groundseg/internal/catalog"
	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
	"groundseg/pkg/logging"
)

var (
	configFile string
)

// @title        Preparation Worker Status API
// @version      1.0
// @description  Read-only view of datastrip completion tracking
// @BasePath     /api/v1

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServicePreparationWorker,
		Short: "Preparation worker for the Sentinel-2 processing chain",
		Long:  "Preparation worker classifies product notifications and tracks datastrip completion",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(earlyLog *logging.EarlyLog) (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the preparation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog(constants.ServicePreparationWorker)

			cfg, err := loadConfig(earlyLog)
			if err != nil {
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

			log.InfowCtx(ctx, "Starting Preparation Worker")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				_ = app.Shutdown(context.Background())
				return err
			}

			log.InfowCtx(ctx, "Service running")
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
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the metadata catalog",
	}
	cmd.AddCommand(catalogAuxCmd())
	cmd.AddCommand(catalogSessionCmd())
	return cmd
}

func newCatalogClient() (*catalog.Client, error) {
	cfg, err := loadConfig(logging.NewEarlyLog(constants.ServicePreparationWorker))
	if err != nil {
		return nil, err
	}
	return catalog.NewClient(cfg.Catalog, logger.NopLogger())
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func catalogAuxCmd() *cobra.Command {
	var (
		productType string
		satellite   string
		from        string
		to          string
		bandIndexID string
	)

	cmd := &cobra.Command{
		Use:   "aux",
		Short: "Print the latest auxiliary product valid over a time range",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			stop, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			client, err := newCatalogClient()
			if err != nil {
				return err
			}

			data, err := client.RetrieveLatestAuxData(cmd.Context(), productType, satellite, start, stop, bandIndexID)
			if err != nil {
				return err
			}
			return printJSON(cmd, data)
		},
	}

	cmd.Flags().StringVar(&productType, "product-type", "", "Auxiliary product type, e.g. AUX_UT1UTC")
	cmd.Flags().StringVar(&satellite, "satellite", "", "Satellite identifier, e.g. S2B")
	cmd.Flags().StringVar(&from, "from", "", "Validity start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "Validity stop (RFC3339)")
	cmd.Flags().StringVar(&bandIndexID, "band-index", "", "Optional band index filter")
	_ = cmd.MarkFlagRequired("product-type")
	_ = cmd.MarkFlagRequired("satellite")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func catalogSessionCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Print the catalog entries of an EDRS session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newCatalogClient()
			if err != nil {
				return err
			}

			data, err := client.RetrieveSessionData(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			return printJSON(cmd, data)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "EDRS session identifier")
	_ = cmd.MarkFlagRequired("session-id")

	return cmd
}
