package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ledgersync/internal/auth"
	"ledgersync/internal/currency"
	"ledgersync/internal/models"
	"ledgersync/internal/pagination"
	"ledgersync/internal/rates"
	"ledgersync/internal/remote"
	"ledgersync/internal/services"
	"ledgersync/internal/validator"
)

// --- mock services ---

// mockLedger overrides the ledger methods a test needs. Calling any other
// method panics on the nil embedded interface.
type mockLedger struct {
	services.LedgerServicer

	createInstitutionFn  func(in models.Institution) (*models.Institution, error)
	createAccountFn      func(in models.Account) (*models.Account, error)
	getAccountFn         func(id string) (*models.Account, error)
	updateAccountFn      func(id string, patch services.AccountPatch) (*models.Account, error)
	deleteAccountFn      func(id string) (int, error)
	accountBalanceFn     func(id string) (float64, error)
	createTransactionFn  func(in models.Transaction) (*models.Transaction, error)
	listTransactionsFn   func(accountID string, page pagination.PageRequest) *pagination.PageResponse[models.Transaction]
	getPreferencesFn     func() models.Preferences
	updatePreferencesFn  func(patch services.PreferencesPatch) (*models.Preferences, error)
	exportFn             func() ([]byte, error)
	importFn             func(raw []byte) (*models.Document, error)
	netWorthFn           func() (*services.NetWorth, error)
	totalsByClassFn      func() (map[models.AssetClass]float64, error)
	topAccountsFn        func(limit int) ([]services.AccountSummary, error)
	recentTransactionsFn func(limit int) []models.Transaction
}

func (m *mockLedger) CreateInstitution(_ context.Context, in models.Institution) (*models.Institution, error) {
	if m.createInstitutionFn != nil {
		return m.createInstitutionFn(in)
	}
	return &in, nil
}

func (m *mockLedger) CreateAccount(_ context.Context, in models.Account) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(in)
	}
	return &in, nil
}

func (m *mockLedger) GetAccount(id string) (*models.Account, error) {
	if m.getAccountFn != nil {
		return m.getAccountFn(id)
	}
	return &models.Account{ID: id}, nil
}

func (m *mockLedger) UpdateAccount(_ context.Context, id string, patch services.AccountPatch) (*models.Account, error) {
	if m.updateAccountFn != nil {
		return m.updateAccountFn(id, patch)
	}
	return &models.Account{ID: id}, nil
}

func (m *mockLedger) DeleteAccount(_ context.Context, id string) (int, error) {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(id)
	}
	return 0, nil
}

func (m *mockLedger) AccountBalance(id string) (float64, error) {
	if m.accountBalanceFn != nil {
		return m.accountBalanceFn(id)
	}
	return 0, nil
}

func (m *mockLedger) CreateTransaction(_ context.Context, in models.Transaction) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(in)
	}
	return &in, nil
}

func (m *mockLedger) ListTransactions(accountID string, page pagination.PageRequest) *pagination.PageResponse[models.Transaction] {
	if m.listTransactionsFn != nil {
		return m.listTransactionsFn(accountID, page)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, page.Page, page.PageSize, 0)
	return &resp
}

func (m *mockLedger) GetPreferences() models.Preferences {
	if m.getPreferencesFn != nil {
		return m.getPreferencesFn()
	}
	return models.Preferences{BaseCurrency: currency.COP, Timezone: "America/Bogota"}
}

func (m *mockLedger) UpdatePreferences(_ context.Context, patch services.PreferencesPatch) (*models.Preferences, error) {
	if m.updatePreferencesFn != nil {
		return m.updatePreferencesFn(patch)
	}
	return &models.Preferences{}, nil
}

func (m *mockLedger) Export() ([]byte, error) {
	if m.exportFn != nil {
		return m.exportFn()
	}
	return []byte(`{}`), nil
}

func (m *mockLedger) Import(_ context.Context, raw []byte) (*models.Document, error) {
	if m.importFn != nil {
		return m.importFn(raw)
	}
	return &models.Document{}, nil
}

func (m *mockLedger) NetWorth(context.Context) (*services.NetWorth, error) {
	if m.netWorthFn != nil {
		return m.netWorthFn()
	}
	return &services.NetWorth{}, nil
}

func (m *mockLedger) TotalsByClass(context.Context) (map[models.AssetClass]float64, error) {
	if m.totalsByClassFn != nil {
		return m.totalsByClassFn()
	}
	return map[models.AssetClass]float64{}, nil
}

func (m *mockLedger) TopAccounts(_ context.Context, limit int) ([]services.AccountSummary, error) {
	if m.topAccountsFn != nil {
		return m.topAccountsFn(limit)
	}
	return nil, nil
}

func (m *mockLedger) RecentTransactions(limit int) []models.Transaction {
	if m.recentTransactionsFn != nil {
		return m.recentTransactionsFn(limit)
	}
	return nil
}

type mockSync struct {
	pushNowFn        func() error
	pullFn           func() (*services.PullResult, error)
	detectFormatFn   func() (remote.Format, error)
	migrateFn        func() (*services.MigrateResult, error)
	exportWorkbookFn func(name string) error
	enableFn         func(spreadsheetID string) error
	disableFn        func() error
	statusFn         func() (*services.SyncStatus, error)
	historyFn        func(op models.SyncOperation, page pagination.PageRequest) (*pagination.PageResponse[models.SyncLog], error)
}

func (m *mockSync) PushNow(context.Context) error {
	if m.pushNowFn != nil {
		return m.pushNowFn()
	}
	return nil
}

func (m *mockSync) Pull(context.Context) (*services.PullResult, error) {
	if m.pullFn != nil {
		return m.pullFn()
	}
	return &services.PullResult{}, nil
}

func (m *mockSync) DetectFormat(context.Context) (remote.Format, error) {
	if m.detectFormatFn != nil {
		return m.detectFormatFn()
	}
	return remote.FormatEmpty, nil
}

func (m *mockSync) Migrate(context.Context) (*services.MigrateResult, error) {
	if m.migrateFn != nil {
		return m.migrateFn()
	}
	return &services.MigrateResult{}, nil
}

func (m *mockSync) ExportWorkbook(_ context.Context, name string) error {
	if m.exportWorkbookFn != nil {
		return m.exportWorkbookFn(name)
	}
	return nil
}

func (m *mockSync) Enable(_ context.Context, spreadsheetID string) error {
	if m.enableFn != nil {
		return m.enableFn(spreadsheetID)
	}
	return nil
}

func (m *mockSync) Disable(context.Context) error {
	if m.disableFn != nil {
		return m.disableFn()
	}
	return nil
}

func (m *mockSync) Status(context.Context) (*services.SyncStatus, error) {
	if m.statusFn != nil {
		return m.statusFn()
	}
	return &services.SyncStatus{}, nil
}

func (m *mockSync) History(_ context.Context, op models.SyncOperation, page pagination.PageRequest) (*pagination.PageResponse[models.SyncLog], error) {
	if m.historyFn != nil {
		return m.historyFn(op, page)
	}
	resp := pagination.NewPageResponse([]models.SyncLog{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

type mockCredentials struct {
	record  *auth.Record
	setErr  error
	cleared bool
}

func (m *mockCredentials) Current() (auth.Record, bool) {
	if m.record == nil {
		return auth.Record{}, false
	}
	return *m.record, true
}

func (m *mockCredentials) Set(_ context.Context, rec auth.Record) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.record = &rec
	return nil
}

func (m *mockCredentials) Clear(context.Context) error {
	m.record = nil
	m.cleared = true
	return nil
}

type mockRates struct {
	snap      rates.Snapshot
	refreshed bool
}

func (m *mockRates) Rates(context.Context) rates.Snapshot { return m.snap }

func (m *mockRates) Refresh(context.Context) rates.Snapshot {
	m.refreshed = true
	return m.snap
}

func (m *mockRates) Convert(_ context.Context, amount float64, from, to currency.Code) float64 {
	return rates.Convert(m.snap.Rates, amount, from, to)
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
