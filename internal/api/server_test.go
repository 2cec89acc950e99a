package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"financebackup/internal/config"
	"financebackup/internal/db"
	"financebackup/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testAPIConfig = config.APIConfig{
	Host:            "127.0.0.1",
	Port:            8000,
	MaxBodyBytes:    1 << 20,
	ShutdownTimeout: time.Second,
}

func setupTestServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()

	store, err := db.InitDB(context.Background(), config.DBConfig{
		Driver:            config.DriverSQLite,
		Name:              filepath.Join(t.TempDir(), "api.db"),
		ConnectionTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewServer(store, testAPIConfig, zap.NewNop()), store
}

// failingStore stands in for an unreachable database.
type failingStore struct {
	err error
}

func (f failingStore) Ping(context.Context) error { return f.err }

func (f failingStore) SaveBackup(context.Context, *models.BackupData) error { return f.err }

func (f failingStore) Restore(context.Context) (*models.RestoreResponse, error) { return nil, f.err }

func doRequest(t *testing.T, server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func samplePayload() models.BackupData {
	icon := "🚗"
	return models.BackupData{
		Transactions: []models.Transaction{
			{ID: "t-1", Date: "2024-05-02", Category: "Transport", Type: "expense",
				Amount: money("45.20"), Description: "Fuel",
				CreatedAt: "2024-05-02 08:00:00", UpdatedAt: "2024-05-02 08:00:00"},
			{ID: "t-2", Date: "2024-05-01", Category: "Salary", Type: "income",
				Amount: money("2500"), Description: "",
				CreatedAt: "2024-05-01 09:00:00", UpdatedAt: "2024-05-01 09:00:00"},
		},
		Budgets: []models.Budget{
			{ID: "b-1", Category: "Transport", MonthlyLimit: money("200"),
				CreatedAt: "2024-05-01 00:00:00", UpdatedAt: "2024-05-01 00:00:00"},
		},
		Categories: []models.Category{
			{ID: "c-1", Name: "Transport", Type: "expense", CreatedAt: "2024-05-01 00:00:00", Icon: &icon},
			{ID: "c-2", Name: "Salary", Type: "income", CreatedAt: "2024-05-01 00:00:00"},
		},
	}
}

func TestRoot(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info models.ServiceInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "Personal Finance Manager API", info.Message)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "running", info.Status)
	assert.Equal(t, "/backup (POST)", info.Endpoints["backup"])
}

func TestBackup(t *testing.T) {
	server, _ := setupTestServer(t)

	valid, err := json.Marshal(samplePayload())
	require.NoError(t, err)

	tests := []struct {
		name           string
		body           []byte
		expectedStatus int
	}{
		{
			name:           "Valid Backup",
			body:           valid,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Empty Lists",
			body:           []byte(`{"transactions": [], "budgets": [], "categories": []}`),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Malformed JSON",
			body:           []byte(`{"transactions": [`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Wrong Type",
			body:           []byte(`{"transactions": "nope", "budgets": [], "categories": []}`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing Lists",
			body:           []byte(`{"transactions": []}`),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "Transaction Missing ID",
			body:           []byte(`{"transactions": [{"date": "2024-01-01", "category": "x", "type": "expense", "amount": 1, "created_at": "a", "updated_at": "a"}], "budgets": [], "categories": []}`),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "Trailing Data",
			body:           []byte(`{"transactions": [], "budgets": [], "categories": []}garbage`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Second JSON Value",
			body:           []byte(`{"transactions": [], "budgets": [], "categories": []} {}`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Trailing Whitespace",
			body:           []byte("{\"transactions\": [], \"budgets\": [], \"categories\": []}\n\t "),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Transaction Missing Amount",
			body:           transactionBody(``),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "Null Amount",
			body:           transactionBody(`, "amount": null`),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "Amount Beyond Column",
			body:           transactionBody(`, "amount": 1e12`),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "Huge Exponent",
			body:           transactionBody(`, "amount": 1e60000000`),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "Budget Missing Limit",
			body:           []byte(`{"transactions": [], "budgets": [{"id": "b-1", "category": "x", "created_at": "a", "updated_at": "a"}], "categories": []}`),
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, http.MethodPost, "/backup", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus != http.StatusOK {
				var resp map[string]interface{}
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.NotEmpty(t, resp["detail"])
			}
		})
	}
}

// transactionBody wraps one otherwise valid transaction, with extra appended
// to its fields, in a backup payload.
func transactionBody(extra string) []byte {
	return []byte(`{"transactions": [{"id": "t-1", "date": "2024-01-01", "category": "x", "type": "expense", "created_at": "a", "updated_at": "a"` +
		extra + `}], "budgets": [], "categories": []}`)
}

func TestBackupResultCounts(t *testing.T) {
	server, _ := setupTestServer(t)

	body, err := json.Marshal(samplePayload())
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, "/backup", body)
	require.Equal(t, http.StatusOK, w.Code)

	var result models.BackupResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "Backup completed successfully", result.Message)
	assert.Equal(t, 2, result.TransactionsBackedUp)
	assert.Equal(t, 1, result.BudgetsBackedUp)
	assert.Equal(t, 2, result.CategoriesBackedUp)
}

func TestBackupThenRestore(t *testing.T) {
	server, _ := setupTestServer(t)

	payload := samplePayload()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, "/backup", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, server, http.MethodGet, "/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var restored models.RestoreResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&restored))

	require.Len(t, restored.Transactions, len(payload.Transactions))
	for i, want := range payload.Transactions {
		got := restored.Transactions[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Date, got.Date)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Type, got.Type)
		assert.True(t, want.Amount.Equal(*got.Amount), "amount %s != %s", want.Amount, got.Amount)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.CreatedAt, got.CreatedAt)
		assert.Equal(t, want.UpdatedAt, got.UpdatedAt)
		assert.Equal(t, 1, got.SyncedOrDefault())
	}

	require.Len(t, restored.Budgets, 1)
	assert.Equal(t, payload.Budgets[0].ID, restored.Budgets[0].ID)
	assert.Equal(t, payload.Budgets[0].Category, restored.Budgets[0].Category)
	assert.True(t, payload.Budgets[0].MonthlyLimit.Equal(*restored.Budgets[0].MonthlyLimit))

	assert.Equal(t, payload.Categories, restored.Categories)
}

func TestBackupRoundsAmountsToCents(t *testing.T) {
	server, _ := setupTestServer(t)

	body := `{"transactions": [{"id": "t-1", "date": "2024-01-01", "category": "Food", "type": "expense",
		"amount": 1.234, "created_at": "a", "updated_at": "a"}],
		"budgets": [{"id": "b-1", "category": "Food", "monthly_limit": 99999999.99, "created_at": "a", "updated_at": "a"}],
		"categories": []}`
	w := doRequest(t, server, http.MethodPost, "/backup", []byte(body))
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, server, http.MethodGet, "/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amount":1.23,`)
	assert.Contains(t, w.Body.String(), `"monthly_limit":99999999.99,`)
}

func TestRestoreEmpty(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transactions": [], "budgets": [], "categories": []}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	t.Run("Connected", func(t *testing.T) {
		server, _ := setupTestServer(t)

		w := doRequest(t, server, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var status models.HealthStatus
		require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "connected", status.Database)
	})

	t.Run("Closed Database", func(t *testing.T) {
		server, store := setupTestServer(t)
		require.NoError(t, store.Close())

		w := doRequest(t, server, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var status models.HealthStatus
		require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, "disconnected", status.Database)
		assert.NotEmpty(t, status.Error)
	})
}

func TestDatabaseFailures(t *testing.T) {
	server := NewServer(failingStore{err: errors.New("connection refused")}, testAPIConfig, zap.NewNop())

	body, err := json.Marshal(samplePayload())
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, "/backup", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail": "Backup failed: connection refused"}`, w.Body.String())

	w = doRequest(t, server, http.MethodGet, "/restore", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail": "Restore failed: connection refused"}`, w.Body.String())

	w = doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBackupBodyTooLarge(t *testing.T) {
	cfg := testAPIConfig
	cfg.MaxBodyBytes = 64
	server := NewServer(failingStore{}, cfg, zap.NewNop())

	body := `{"transactions": [], "budgets": [], "categories": [], "padding": "` + strings.Repeat("x", 128) + `"}`
	w := doRequest(t, server, http.MethodPost, "/backup", []byte(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/backup", nil)
	req.Header.Set("Origin", "http://localhost:19006")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:19006", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSAllowsEveryMethod(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, method := range []string{http.MethodHead, http.MethodPatch, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/restore", nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", method)
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), method)
		})
	}
}

func TestCORSSimpleRequestWithCredentials(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://192.168.1.20:8081")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://192.168.1.20:8081", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	doRequest(t, server, http.MethodGet, "/health", nil)
	w := doRequest(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "finance_http_requests_total")
	assert.Contains(t, w.Body.String(), "finance_database_up")
}
