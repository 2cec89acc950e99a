package main

import (
	"financebackup/internal/db"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := db.InitDB(cmd.Context(), cfg.DB)
			if err != nil {
				log.Error("Error initializing database", zap.Error(err))
				return err
			}
			defer store.Close()

			log.Info("Database tables initialized successfully")
			return nil
		},
	}
}
