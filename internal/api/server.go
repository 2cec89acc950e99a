package api

import (
	"context"
	"errors"
	"net/http"

	"financebackup/internal/config"
	"financebackup/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	serviceName    = "Personal Finance Manager API"
	serviceVersion = "1.0.0"
)

// Storage is what the handlers need from the database layer.
type Storage interface {
	Ping(ctx context.Context) error
	SaveBackup(ctx context.Context, data *models.BackupData) error
	Restore(ctx context.Context) (*models.RestoreResponse, error)
}

type Server struct {
	store  Storage
	router *chi.Mux
	logger *zap.Logger
	cfg    config.APIConfig
}

func NewServer(store Storage, cfg config.APIConfig, logger *zap.Logger) *Server {
	s := &Server{
		store:  store,
		logger: logger,
		cfg:    cfg,
	}
	s.router = s.RegisterRoutes()
	return s
}

// Handler returns the root handler with every route and middleware mounted.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then drains in-flight requests for at
// most the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
