package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"financebackup/internal/metrics"
	"financebackup/internal/middleware"
	"financebackup/internal/models"
	"financebackup/internal/utils"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, models.ServiceInfo{
		Message: serviceName,
		Version: serviceVersion,
		Status:  "running",
		Endpoints: map[string]string{
			"backup":  "/backup (POST)",
			"restore": "/restore (GET)",
			"health":  "/health (GET)",
		},
	})
}

func (s *Server) backup(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(zap.String("request_id", middleware.GetRequestID(r.Context())))

	var req models.BackupData
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := decodeJSON(body, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.Warn("Backup body too large", zap.Int64("limit", maxErr.Limit))
			utils.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		log.Warn("Error decoding backup JSON", zap.Error(err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		log.Warn("Invalid backup payload", zap.Error(err))
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.SaveBackup(r.Context(), &req); err != nil {
		metrics.BackupFailures.Inc()
		log.Error("Backup error", append(dbErrorFields(err), zap.Error(err))...)
		utils.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Backup failed: %v", err))
		return
	}

	metrics.RecordsBackedUp.WithLabelValues("transactions").Add(float64(len(req.Transactions)))
	metrics.RecordsBackedUp.WithLabelValues("budgets").Add(float64(len(req.Budgets)))
	metrics.RecordsBackedUp.WithLabelValues("categories").Add(float64(len(req.Categories)))

	log.Info("Backup successful",
		zap.Int("transactions", len(req.Transactions)),
		zap.Int("budgets", len(req.Budgets)),
		zap.Int("categories", len(req.Categories)),
	)

	utils.WriteJSON(w, http.StatusOK, models.BackupResult{
		Status:               "success",
		Message:              "Backup completed successfully",
		TransactionsBackedUp: len(req.Transactions),
		BudgetsBackedUp:      len(req.Budgets),
		CategoriesBackedUp:   len(req.Categories),
	})
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(zap.String("request_id", middleware.GetRequestID(r.Context())))

	resp, err := s.store.Restore(r.Context())
	if err != nil {
		log.Error("Restore error", append(dbErrorFields(err), zap.Error(err))...)
		utils.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Restore failed: %v", err))
		return
	}

	log.Info("Restore successful",
		zap.Int("transactions", len(resp.Transactions)),
		zap.Int("budgets", len(resp.Budgets)),
		zap.Int("categories", len(resp.Categories)),
	)
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		metrics.DatabaseUp.Set(0)
		s.logger.Error("Health check failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusServiceUnavailable, models.HealthStatus{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		})
		return
	}

	metrics.DatabaseUp.Set(1)
	utils.WriteJSON(w, http.StatusOK, models.HealthStatus{
		Status:   "healthy",
		Database: "connected",
		Message:  "API is running and database is accessible",
	})
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeJSON decodes exactly one JSON value from body; anything but
// whitespace after it is an error.
func decodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errTrailingData
	}
	return nil
}

// dbErrorFields pulls driver specific details out of err for logging.
func dbErrorFields(err error) []zap.Field {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return []zap.Field{
			zap.String("pg_code", string(pqErr.Code)),
			zap.String("pg_message", pqErr.Message),
			zap.String("pg_detail", pqErr.Detail),
		}
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return []zap.Field{
			zap.Int("sqlite_code", int(liteErr.Code)),
			zap.Int("sqlite_extended_code", int(liteErr.ExtendedCode)),
		}
	}
	return nil
}
