package main

import (
	"errors"

	"facilityops/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status|reset]",
	Short:     "Run the embedded SQL migrations",
	ValidArgs: []string{"up", "down", "status", "reset"},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE:      runMigration,
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	command := "up"
	if len(args) == 1 {
		command = args[0]
	}

	logger.Info("running migrations", zap.String("command", command))
	return database.Migrate(cmd.Context(), cfg.Database.URL, command, logger)
}
