package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"solstice/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tasks table if it does not exist",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFlags(cmd.Flags(), os.Getenv)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	repo, err := openRepository(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("schema ready", map[string]any{"driver": cfg.Database.Driver})
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.Database.Driver)
	return err
}
