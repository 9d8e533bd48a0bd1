package main

import (
	"fmt"

	"github.com/ondrasimku/media-pipeline/internal/config"
	"github.com/ondrasimku/media-pipeline/internal/database"
	"github.com/ondrasimku/media-pipeline/internal/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the media schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := log.NewLogger(cfg.Log.Level, cfg.Log.Format)

			db, err := database.Open(database.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := database.Migrate(db, logger); err != nil {
				return err
			}
			logger.Info("Schema migrated", "driver", cfg.Database.Driver)
			return nil
		},
	}
}
