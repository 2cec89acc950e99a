package main

import (
	"errors"

	"financebackup/internal/api"
	"financebackup/internal/db"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Create the schema if needed and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			log.Info("Starting Personal Finance Manager API")
			store, err := db.InitDB(cmd.Context(), cfg.DB)
			if err != nil {
				log.Error("Error initializing database", zap.Error(err))
				return err
			}
			defer store.Close()

			if err := prometheus.Register(collectors.NewDBStatsCollector(store.DB(), cfg.DB.Name)); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					log.Warn("Error registering database stats collector", zap.Error(err))
				}
			}

			server := api.NewServer(store, cfg.API, log)
			log.Info("API ready to accept requests")
			if err := server.Start(cmd.Context()); err != nil {
				log.Error("Error starting server", zap.Error(err))
				return err
			}
			log.Info("Server stopped")
			return nil
		},
	}
}
