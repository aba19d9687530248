package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/auth"
	"ledgersync/internal/autosync"
	"ledgersync/internal/currency"
	"ledgersync/internal/logger"
	"ledgersync/internal/models"
	"ledgersync/internal/rates"
	"ledgersync/internal/services"
	"ledgersync/internal/sheets"
	"ledgersync/internal/storage"
	"ledgersync/internal/testutil"
	"ledgersync/internal/validator"
)

const (
	testAPIKey    = "test-api-key"
	testJWTSecret = "test-jwt-secret-that-is-long-enough"
	testSecret    = "test-credentials-secret-long-enough"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

type staticRates struct{}

func (staticRates) Fetch(context.Context, []currency.Code) (rates.Table, error) {
	return rates.Table{rates.Pair(currency.USD, currency.COP): 4000}, nil
}

// testApp holds the full application stack.
type testApp struct {
	Router    *gin.Engine
	Workbook  string
	ExportDir string
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	settings := storage.NewSettingsStore(db)
	configs := storage.NewAutoSyncConfigStore(settings)
	history := services.NewSyncHistoryService(storage.NewSyncLogStore(db), services.DefaultHistoryLimit)
	workbook := filepath.Join(t.TempDir(), "ledger.xlsx")
	exportDir := filepath.Join(t.TempDir(), "exports")
	connector := sheets.NewWorkbookConnector(workbook)

	provider, err := auth.NewProvider(settings, testSecret, auth.Options{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	// A long debounce keeps background pushes out of the way of manual ones.
	orch := autosync.New(services.NewRemotePusher(connector, 5*time.Second), configs, provider, autosync.Options{
		Debounce: time.Hour,
		OnResult: func(r autosync.Result) {
			history.Record(models.SyncOperationPush, r.Outcome, "", r.Err, 0, r.Duration)
		},
	})
	t.Cleanup(orch.Close)

	cache := rates.NewCache(staticRates{}, rates.CacheOptions{})
	ledger := services.NewLedgerService(storage.NewLocalStore(db), services.LedgerOptions{
		Notifier:    orch,
		Credentials: provider,
		Rates:       cache,
	})
	if err := ledger.LoadFromLocal(context.Background()); err != nil {
		t.Fatalf("failed to load ledger: %v", err)
	}
	sync := services.NewSyncService(ledger, services.SyncOptions{
		Connector:     connector,
		Configs:       configs,
		Credentials:   provider,
		Orchestrator:  orch,
		History:       history,
		RemoteTimeout: 5 * time.Second,
		ExportDir:     exportDir,
	})

	router := NewRouter(Dependencies{
		Ledger:      ledger,
		Sync:        sync,
		Credentials: provider,
		Rates:       cache,
		JWTSecret:   testJWTSecret,
		TokenTTL:    time.Hour,
		APIKey:      testAPIKey,
	})
	return &testApp{Router: router, Workbook: workbook, ExportDir: exportDir}
}

// request sends a request with an optional bearer token.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// keyed sends a request carrying the API key.
func (app *testApp) keyed(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) token(t *testing.T) string {
	t.Helper()
	rec := app.keyed("POST", "/api/v1/auth/token", `{"subject":"test"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("token issuance failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["token"].(string)
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	app := setupApp(t)
	rec := app.request("GET", "/api/health", "", "")
	expectStatus(t, rec, http.StatusOK)
	result := parseJSON(t, rec)
	if result["status"] != "ok" {
		t.Errorf("unexpected health body %v", result)
	}
	if _, ok := result["sync"]; !ok {
		t.Error("expected sync status in health body")
	}

	rec = app.request("GET", "/api/v2/nothing", "", "")
	expectStatus(t, rec, http.StatusNotFound)
	if _, ok := parseJSON(t, rec)["error"]; !ok {
		t.Errorf("expected JSON error body, got %s", rec.Body.String())
	}
}

func TestAuthGuards(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/v1/accounts", "", "")
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = app.request("GET", "/api/v1/accounts", "", "not-a-jwt")
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = app.request("POST", "/api/v1/auth/token", `{"subject":"x"}`, "")
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = app.request("GET", "/api/v1/credentials", "", app.token(t))
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = app.request("GET", "/api/v1/accounts", "", app.token(t))
	expectStatus(t, rec, http.StatusOK)
}

func TestLedgerFlow(t *testing.T) {
	app := setupApp(t)
	token := app.token(t)

	rec := app.request("POST", "/api/v1/institutions", `{"nombre":"Bancolombia","tipo":"banco"}`, token)
	expectStatus(t, rec, http.StatusCreated)
	instID := parseJSON(t, rec)["institution"].(map[string]interface{})["id"].(string)

	rec = app.request("POST", "/api/v1/accounts",
		fmt.Sprintf(`{"nombre":"Ahorros","tipo":"ahorros","moneda":"COP","saldoInicial":1000,"institucionId":%q}`, instID), token)
	expectStatus(t, rec, http.StatusCreated)
	acctID := parseJSON(t, rec)["account"].(map[string]interface{})["id"].(string)

	rec = app.request("POST", "/api/v1/accounts", `{"nombre":"Dólares","tipo":"ahorros","moneda":"USD","saldoInicial":10}`, token)
	expectStatus(t, rec, http.StatusCreated)

	rec = app.request("POST", "/api/v1/transactions",
		fmt.Sprintf(`{"fecha":"2024-11-01","tipo":"deposito","cuentaDestinoId":%q,"monto":500}`, acctID), token)
	expectStatus(t, rec, http.StatusCreated)

	rec = app.request("GET", "/api/v1/accounts/"+acctID+"/balance", "", token)
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["balance"]; got != float64(1500) {
		t.Errorf("expected balance 1500, got %v", got)
	}

	rec = app.request("GET", "/api/v1/summary/net-worth", "", token)
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["total"]; got != float64(41500) {
		t.Errorf("expected net worth 41500, got %v", got)
	}

	rec = app.request("GET", "/api/v1/transactions?account_id="+acctID, "", token)
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["total_items"]; got != float64(1) {
		t.Errorf("expected 1 transaction, got %v", got)
	}

	rec = app.request("GET", "/api/v1/document", "", token)
	expectStatus(t, rec, http.StatusOK)
	exported := rec.Body.String()

	rec = app.request("POST", "/api/v1/document/reset", "", token)
	expectStatus(t, rec, http.StatusOK)
	rec = app.request("GET", "/api/v1/accounts", "", token)
	if got := parseJSON(t, rec)["total_items"]; got != float64(0) {
		t.Fatalf("expected no accounts after reset, got %v", got)
	}

	rec = app.request("POST", "/api/v1/document/import", exported, token)
	expectStatus(t, rec, http.StatusOK)
	rec = app.request("GET", "/api/v1/accounts", "", token)
	if got := parseJSON(t, rec)["total_items"]; got != float64(2) {
		t.Errorf("expected 2 accounts after import, got %v", got)
	}

	rec = app.request("DELETE", "/api/v1/accounts/missing", "", token)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestSyncFlow(t *testing.T) {
	app := setupApp(t)
	token := app.token(t)

	rec := app.request("POST", "/api/v1/accounts", `{"nombre":"Ahorros","tipo":"ahorros","moneda":"COP","saldoInicial":1000}`, token)
	expectStatus(t, rec, http.StatusCreated)

	// Nothing configured yet.
	rec = app.request("POST", "/api/v1/sync/push", "", token)
	expectStatus(t, rec, http.StatusPreconditionFailed)

	rec = app.request("POST", "/api/v1/sync/enable", `{"spreadsheet_id":"1AbCdEfGhIjKlMnOp"}`, token)
	expectStatus(t, rec, http.StatusOK)

	rec = app.request("POST", "/api/v1/sync/push", "", token)
	expectStatus(t, rec, http.StatusUnauthorized)

	exp := time.Now().Add(time.Hour).UnixMilli()
	rec = app.keyed("PUT", "/api/v1/credentials", fmt.Sprintf(`{"access_token":"ya29.test","expires_at":%d}`, exp))
	expectStatus(t, rec, http.StatusOK)

	rec = app.request("POST", "/api/v1/sync/push", "", token)
	expectStatus(t, rec, http.StatusOK)
	if _, err := os.Stat(app.Workbook); err != nil {
		t.Fatalf("expected workbook to be written: %v", err)
	}

	rec = app.request("GET", "/api/v1/sync/detect", "", token)
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["format"]; got != "tabular" {
		t.Errorf("expected tabular, got %v", got)
	}

	rec = app.request("POST", "/api/v1/sync/pull", "", token)
	expectStatus(t, rec, http.StatusOK)

	rec = app.request("GET", "/api/v1/accounts", "", token)
	if got := parseJSON(t, rec)["total_items"]; got != float64(1) {
		t.Errorf("expected 1 account after pull, got %v", got)
	}

	rec = app.request("GET", "/api/v1/sync/status", "", token)
	expectStatus(t, rec, http.StatusOK)
	status := parseJSON(t, rec)
	if status["enabled"] != true || status["authenticated"] != true || status["pushes"] != float64(1) {
		t.Errorf("unexpected status %v", status)
	}

	rec = app.request("GET", "/api/v1/sync/history", "", token)
	expectStatus(t, rec, http.StatusOK)
	// Two skipped pushes, one successful push and the pull.
	if got := parseJSON(t, rec)["total_items"]; got != float64(4) {
		t.Errorf("expected 4 history entries, got %v: %s", got, rec.Body.String())
	}
}

func TestExportWorkbook(t *testing.T) {
	app := setupApp(t)
	token := app.token(t)

	rec := app.request("POST", "/api/v1/sync/export-xlsx", `{"file_name":"ledger-copy.xlsx"}`, token)
	expectStatus(t, rec, http.StatusOK)
	if _, err := os.Stat(filepath.Join(app.ExportDir, "ledger-copy.xlsx")); err != nil {
		t.Errorf("expected the export inside the export directory: %v", err)
	}

	escaped := filepath.Join(filepath.Dir(app.ExportDir), "escaped.xlsx")
	rec = app.request("POST", "/api/v1/sync/export-xlsx", `{"file_name":"../escaped.xlsx"}`, token)
	expectStatus(t, rec, http.StatusBadRequest)
	if _, err := os.Stat(escaped); !os.IsNotExist(err) {
		t.Errorf("traversal must not write %s, stat = %v", escaped, err)
	}

	rec = app.request("POST", "/api/v1/sync/export-xlsx", fmt.Sprintf(`{"file_name":%q}`, escaped), token)
	expectStatus(t, rec, http.StatusBadRequest)
}
