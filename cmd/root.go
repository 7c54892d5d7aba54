package main

import (
	"fmt"
	"os"

	"facilityops/internal/config"
	"facilityops/internal/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "facilityops",
	Short: "Facility Ops",
	Long:  `Confined-space work orders, survey reports and user management.`,
	// serve is the default so the container entrypoint needs no arguments
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
}

// bootstrap reads configuration and builds the logger. Commands other than
// serve skip full validation.
func bootstrap(validate bool) (*config.Config, *zap.Logger, error) {
	load := config.Read
	if validate {
		load = config.Load
	}
	cfg, err := load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
