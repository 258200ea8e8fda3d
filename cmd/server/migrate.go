package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mmynk/tontine/internal/config"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			logger := commonRun(cfg)

			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("Schema up to date", "driver", cfg.Database.Driver)
			return store.Close()
		},
	}
}
