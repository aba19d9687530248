package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ledgersync/internal/currency"
	"ledgersync/internal/models"
	"ledgersync/internal/pagination"
	"ledgersync/internal/storage"
	"ledgersync/internal/testutil"
)

var ledgerNow = time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	docs []*models.Document
}

func (n *recordingNotifier) Notify(doc *models.Document) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.docs = append(n.docs, doc)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.docs)
}

type fakeCredentials struct {
	cleared int
}

func (c *fakeCredentials) Clear(context.Context) error {
	c.cleared++
	return nil
}

// unitRates values one unit of each code in COP.
type unitRates map[currency.Code]float64

func (r unitRates) Convert(_ context.Context, amount float64, from, to currency.Code) float64 {
	return amount * r[from] / r[to]
}

var testRates = unitRates{currency.COP: 1, currency.USD: 4000, currency.BTC: 10}

type failingStore struct {
	DocumentStore
}

func (failingStore) Save(context.Context, *models.Document) error {
	return errors.New("disk full")
}

type ledgerHarness struct {
	svc      LedgerServicer
	store    *storage.LocalStore
	notifier *recordingNotifier
	creds    *fakeCredentials
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()
	h := &ledgerHarness{
		store:    storage.NewLocalStore(testutil.SetupTestDB(t)),
		notifier: &recordingNotifier{},
		creds:    &fakeCredentials{},
	}
	h.svc = NewLedgerService(h.store, LedgerOptions{
		Notifier:    h.notifier,
		Credentials: h.creds,
		Rates:       testRates,
		Now:         func() time.Time { return ledgerNow },
	})
	return h
}

func (h *ledgerHarness) seed(t *testing.T, doc *models.Document) {
	t.Helper()
	testutil.AssertNoError(t, h.svc.Replace(context.Background(), doc))
}

func ptr[T any](v T) *T { return &v }

func TestLedgerService_Institutions(t *testing.T) {
	ctx := context.Background()

	t.Run("create_persists_and_notifies", func(t *testing.T) {
		h := newLedgerHarness(t)

		inst, err := h.svc.CreateInstitution(ctx, models.Institution{Name: "  Bancolombia ", Kind: models.InstitutionKindBank})
		testutil.AssertNoError(t, err)

		if inst.ID == "" {
			t.Fatal("expected an id to be assigned")
		}
		if inst.Name != "Bancolombia" {
			t.Errorf("expected trimmed name, got %q", inst.Name)
		}

		stored, err := h.store.Load(ctx)
		testutil.AssertNoError(t, err)
		if stored == nil || len(stored.Institutions) != 1 {
			t.Fatalf("expected the institution to be persisted, got %+v", stored)
		}
		if stored.LastUpdated != models.FormatTimestamp(ledgerNow) {
			t.Errorf("expected lastUpdated %s, got %s", models.FormatTimestamp(ledgerNow), stored.LastUpdated)
		}
		if h.notifier.count() != 1 {
			t.Errorf("expected 1 notification, got %d", h.notifier.count())
		}
	})

	t.Run("name_required", func(t *testing.T) {
		h := newLedgerHarness(t)
		_, err := h.svc.CreateInstitution(ctx, models.Institution{Name: "   "})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		if h.notifier.count() != 0 {
			t.Error("rejected mutation must not notify")
		}
	})

	t.Run("update_applies_patch", func(t *testing.T) {
		h := newLedgerHarness(t)
		inst, err := h.svc.CreateInstitution(ctx, models.Institution{Name: "Nu", Kind: models.InstitutionKindBank})
		testutil.AssertNoError(t, err)

		updated, err := h.svc.UpdateInstitution(ctx, inst.ID, InstitutionPatch{Kind: ptr(models.InstitutionKindBroker)})
		testutil.AssertNoError(t, err)
		if updated.Name != "Nu" || updated.Kind != models.InstitutionKindBroker {
			t.Errorf("unexpected institution %+v", updated)
		}
	})

	t.Run("unknown_id", func(t *testing.T) {
		h := newLedgerHarness(t)
		_, err := h.svc.GetInstitution("missing")
		testutil.AssertAppError(t, err, "INSTITUTION_NOT_FOUND")
		testutil.AssertAppError(t, h.svc.DeleteInstitution(ctx, "missing"), "INSTITUTION_NOT_FOUND")
	})

	t.Run("failed_save_keeps_state", func(t *testing.T) {
		notifier := &recordingNotifier{}
		svc := NewLedgerService(failingStore{}, LedgerOptions{Notifier: notifier, Now: func() time.Time { return ledgerNow }})

		_, err := svc.CreateInstitution(ctx, models.Institution{Name: "Davivienda"})
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")
		if n := len(svc.Snapshot().Institutions); n != 0 {
			t.Errorf("expected no institutions after a failed save, got %d", n)
		}
		if notifier.count() != 0 {
			t.Error("failed save must not notify")
		}
	})
}

func TestLedgerService_Accounts(t *testing.T) {
	ctx := context.Background()

	t.Run("institution_must_exist", func(t *testing.T) {
		h := newLedgerHarness(t)
		acct := testutil.NewAccount("missing", "COP", 0)
		_, err := h.svc.CreateAccount(ctx, acct)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unsupported_currency", func(t *testing.T) {
		h := newLedgerHarness(t)
		acct := testutil.NewAccount("", "XAU", 0)
		_, err := h.svc.CreateAccount(ctx, acct)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("term_deposit_fields_cleared_for_other_kinds", func(t *testing.T) {
		h := newLedgerHarness(t)
		acct := testutil.NewAccount("", "COP", 0)
		acct.InterestRate = models.Some(0.11)
		acct.MaturityDate = "2025-01-01"

		created, err := h.svc.CreateAccount(ctx, acct)
		testutil.AssertNoError(t, err)
		if created.InterestRate.Valid() || created.MaturityDate != "" {
			t.Errorf("expected term deposit fields cleared, got %+v", created)
		}

		updated, err := h.svc.UpdateAccount(ctx, created.ID, AccountPatch{
			Kind:         ptr(models.AccountKindTermDeposit),
			InterestRate: ptr(0.11),
		})
		testutil.AssertNoError(t, err)
		if rate, ok := updated.InterestRate.Get(); !ok || rate != 0.11 {
			t.Errorf("expected interest rate 0.11, got %+v", updated.InterestRate)
		}
	})

	t.Run("delete_cascades_to_assets", func(t *testing.T) {
		h := newLedgerHarness(t)
		doc := testutil.SampleDocument()
		h.seed(t, doc)
		usd := doc.Accounts[1]

		removed, err := h.svc.DeleteAccount(ctx, usd.ID)
		testutil.AssertNoError(t, err)
		if removed != 1 {
			t.Errorf("expected 1 removed asset, got %d", removed)
		}
		snap := h.svc.Snapshot()
		if len(snap.Accounts) != 1 || len(snap.Assets) != 0 {
			t.Errorf("expected 1 account and 0 assets, got %d and %d", len(snap.Accounts), len(snap.Assets))
		}

		_, err = h.svc.DeleteAccount(ctx, usd.ID)
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("list_paginates", func(t *testing.T) {
		h := newLedgerHarness(t)
		h.seed(t, testutil.SampleDocument())

		page := h.svc.ListAccounts(pagination.PageRequest{Page: 2, PageSize: 1})
		if len(page.Data) != 1 || page.TotalItems != 2 || page.TotalPages != 2 {
			t.Errorf("unexpected page %+v", page)
		}
	})
}

func TestLedgerService_AccountBalance(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	a, err := h.svc.CreateAccount(ctx, testutil.NewAccount("", "COP", 1000))
	testutil.AssertNoError(t, err)
	b, err := h.svc.CreateAccount(ctx, testutil.NewAccount("", "COP", 0))
	testutil.AssertNoError(t, err)

	_, err = h.svc.CreateTransaction(ctx, testutil.NewDeposit(a.ID, "2024-10-01", 200))
	testutil.AssertNoError(t, err)
	_, err = h.svc.CreateTransaction(ctx, models.Transaction{
		Date:            "2024-10-02",
		Kind:            models.TransactionKindTransfer,
		SourceAccountID: a.ID,
		DestAccountID:   b.ID,
		Amount:          models.Some(300.0),
		Fee:             models.Some(5.0),
	})
	testutil.AssertNoError(t, err)

	tests := []struct {
		name string
		id   string
		want float64
	}{
		{"source_pays_amount_and_fee", a.ID, 895},
		{"destination_receives_amount", b.ID, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.svc.AccountBalance(tt.id)
			testutil.AssertNoError(t, err)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("unknown_account", func(t *testing.T) {
		_, err := h.svc.AccountBalance("missing")
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})
}

func TestLedgerService_Transactions(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)
	doc := testutil.SampleDocument()
	h.seed(t, doc)
	cop := doc.Accounts[0]

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			tx   models.Transaction
		}{
			{"bad_date", models.Transaction{Date: "yesterday", Kind: models.TransactionKindDeposit, DestAccountID: cop.ID}},
			{"unknown_kind", models.Transaction{Date: "2024-10-01", Kind: "regalo", DestAccountID: cop.ID}},
			{"unknown_account", models.Transaction{Date: "2024-10-01", Kind: models.TransactionKindDeposit, DestAccountID: "missing"}},
			{"transfer_to_self", models.Transaction{Date: "2024-10-01", Kind: models.TransactionKindTransfer, SourceAccountID: cop.ID, DestAccountID: cop.ID}},
			{"withdrawal_without_source", models.Transaction{Date: "2024-10-01", Kind: models.TransactionKindWithdrawal}},
			{"negative_amount", models.Transaction{Date: "2024-10-01", Kind: models.TransactionKindDeposit, DestAccountID: cop.ID, Amount: models.Some(-1.0)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := h.svc.CreateTransaction(ctx, tt.tx)
				testutil.AssertAppError(t, err, "INVALID_INPUT")
			})
		}
	})

	t.Run("tags_are_trimmed", func(t *testing.T) {
		tx := testutil.NewDeposit(cop.ID, "2024-10-03", 10)
		tx.Tags = []string{" salario ", "", "  "}
		created, err := h.svc.CreateTransaction(ctx, tx)
		testutil.AssertNoError(t, err)
		if len(created.Tags) != 1 || created.Tags[0] != "salario" {
			t.Errorf("expected [salario], got %v", created.Tags)
		}
	})

	t.Run("recent_newest_first", func(t *testing.T) {
		recent := h.svc.RecentTransactions(2)
		if len(recent) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(recent))
		}
		if recent[0].Date != "2024-10-03" || recent[1].Date != "2024-09-15" {
			t.Errorf("unexpected order: %s, %s", recent[0].Date, recent[1].Date)
		}
	})

	t.Run("list_filters_by_account", func(t *testing.T) {
		page := h.svc.ListTransactions(cop.ID, pagination.PageRequest{})
		if page.TotalItems != 2 {
			t.Errorf("expected 2 transactions for %s, got %d", cop.ID, page.TotalItems)
		}
	})
}

func TestLedgerService_FxRates(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	t.Run("date_defaults_to_today", func(t *testing.T) {
		rate, err := h.svc.CreateFxRate(ctx, models.FxRate{From: "USD", To: "COP", Rate: 4100})
		testutil.AssertNoError(t, err)
		if rate.Date != "2024-11-05" {
			t.Errorf("expected 2024-11-05, got %s", rate.Date)
		}
	})

	t.Run("same_currency", func(t *testing.T) {
		_, err := h.svc.CreateFxRate(ctx, models.FxRate{From: "USD", To: "USD", Rate: 1})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("non_positive_rate", func(t *testing.T) {
		_, err := h.svc.CreateFxRate(ctx, models.FxRate{From: "EUR", To: "COP", Rate: 0})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestLedgerService_Preferences(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)

	prefs, err := h.svc.UpdatePreferences(ctx, PreferencesPatch{BaseCurrency: ptr(currency.USD)})
	testutil.AssertNoError(t, err)
	if prefs.BaseCurrency != currency.USD || prefs.Timezone != models.DefaultTimezone {
		t.Errorf("unexpected preferences %+v", prefs)
	}

	_, err = h.svc.UpdatePreferences(ctx, PreferencesPatch{Timezone: ptr("Mars/Olympus")})
	testutil.AssertAppError(t, err, "INVALID_INPUT")
	if h.svc.GetPreferences().Timezone != models.DefaultTimezone {
		t.Error("rejected update must not change preferences")
	}
}

func TestLedgerService_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("fills_missing_fields", func(t *testing.T) {
		h := newLedgerHarness(t)
		_, err := h.svc.UpdatePreferences(ctx, PreferencesPatch{BaseCurrency: ptr(currency.EUR)})
		testutil.AssertNoError(t, err)

		doc, err := h.svc.Import(ctx, []byte(`{"cuentas":[{"id":"c1","nombre":"Ahorros","tipo":"ahorros","moneda":"COP","saldoInicial":10}]}`))
		testutil.AssertNoError(t, err)

		if len(doc.Accounts) != 1 || len(doc.Institutions) != 0 || doc.Institutions == nil {
			t.Errorf("unexpected collections %+v", doc)
		}
		if doc.Preferences.BaseCurrency != currency.EUR {
			t.Errorf("expected current preferences kept, got %+v", doc.Preferences)
		}
		if doc.Version != models.InitialVersion {
			t.Errorf("expected version %d, got %d", models.InitialVersion, doc.Version)
		}
		if doc.LastUpdated != models.FormatTimestamp(ledgerNow) {
			t.Errorf("expected lastUpdated now, got %s", doc.LastUpdated)
		}
	})

	t.Run("round_trips_export", func(t *testing.T) {
		h := newLedgerHarness(t)
		h.seed(t, testutil.SampleDocument())
		exported, err := h.svc.Export()
		testutil.AssertNoError(t, err)

		other := newLedgerHarness(t)
		doc, err := other.svc.Import(ctx, exported)
		testutil.AssertNoError(t, err)
		if len(doc.Transactions) != 2 || len(doc.FxRates) != 1 {
			t.Errorf("unexpected import %+v", doc)
		}
	})

	t.Run("rejects_invalid", func(t *testing.T) {
		tests := []struct {
			name string
			raw  string
		}{
			{"not_json", `{`},
			{"not_object", `[1,2]`},
			{"wrong_collection_type", `{"cuentas":{}}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newLedgerHarness(t)
				_, err := h.svc.Import(ctx, []byte(tt.raw))
				testutil.AssertAppError(t, err, "INVALID_DOCUMENT")
			})
		}
	})
}

func TestLedgerService_ResetAndClear(t *testing.T) {
	ctx := context.Background()

	t.Run("replace_keeps_timestamp_without_notifying", func(t *testing.T) {
		h := newLedgerHarness(t)
		doc := testutil.SampleDocument()
		h.seed(t, doc)
		if got := h.svc.Snapshot().LastUpdated; got != doc.LastUpdated {
			t.Errorf("expected lastUpdated %s, got %s", doc.LastUpdated, got)
		}
		if h.notifier.count() != 0 {
			t.Error("replace must not notify")
		}
	})

	t.Run("reset", func(t *testing.T) {
		h := newLedgerHarness(t)
		h.seed(t, testutil.SampleDocument())

		doc, err := h.svc.Reset(ctx)
		testutil.AssertNoError(t, err)
		if len(doc.Accounts) != 0 || doc.Preferences != models.DefaultPreferences() {
			t.Errorf("expected a default document, got %+v", doc)
		}
		if h.notifier.count() != 0 {
			t.Error("reset must not notify")
		}
	})

	t.Run("clear_all", func(t *testing.T) {
		h := newLedgerHarness(t)
		h.seed(t, testutil.SampleDocument())

		testutil.AssertNoError(t, h.svc.ClearAll(ctx))
		stored, err := h.store.Load(ctx)
		testutil.AssertNoError(t, err)
		if stored != nil {
			t.Error("expected the local copy to be removed")
		}
		if h.creds.cleared != 1 {
			t.Errorf("expected the credential to be cleared once, got %d", h.creds.cleared)
		}
		if len(h.svc.Snapshot().Accounts) != 0 {
			t.Error("expected an empty ledger")
		}
	})

	t.Run("load_from_local", func(t *testing.T) {
		h := newLedgerHarness(t)
		doc := testutil.SampleDocument()
		testutil.AssertNoError(t, h.store.Save(ctx, doc))

		testutil.AssertNoError(t, h.svc.LoadFromLocal(ctx))
		if len(h.svc.Snapshot().Accounts) != 2 {
			t.Error("expected the stored ledger to be loaded")
		}
		size, err := h.svc.StorageSize(ctx)
		testutil.AssertNoError(t, err)
		raw, _ := json.Marshal(doc)
		if size != len(raw) {
			t.Errorf("expected size %d, got %d", len(raw), size)
		}
	})
}

func TestLedgerService_Analytics(t *testing.T) {
	ctx := context.Background()
	h := newLedgerHarness(t)
	doc := testutil.SampleDocument()
	h.seed(t, doc)

	t.Run("net_worth", func(t *testing.T) {
		nw, err := h.svc.NetWorth(ctx)
		testutil.AssertNoError(t, err)
		// COP 1,250,000 + USD 600 at 4000 + 0.01 BTC at cost 60000, valued at 10 COP per BTC unit.
		if nw.Accounts != 3_650_000 || nw.Assets != 6000 || nw.Total != 3_656_000 {
			t.Errorf("unexpected net worth %+v", nw)
		}
		if nw.BaseCurrency != currency.COP {
			t.Errorf("expected base COP, got %s", nw.BaseCurrency)
		}
	})

	t.Run("totals_by_class", func(t *testing.T) {
		totals, err := h.svc.TotalsByClass(ctx)
		testutil.AssertNoError(t, err)
		if totals[models.AssetClassCrypto] != 6000 || totals[models.AssetClassCash] != 3_650_000 {
			t.Errorf("unexpected totals %v", totals)
		}
	})

	t.Run("negative_cash_is_omitted", func(t *testing.T) {
		neg := newLedgerHarness(t)
		d := testutil.EmptyDocument()
		d.Accounts = []models.Account{testutil.NewAccount("", "COP", -50)}
		neg.seed(t, d)

		totals, err := neg.svc.TotalsByClass(ctx)
		testutil.AssertNoError(t, err)
		if _, ok := totals[models.AssetClassCash]; ok {
			t.Errorf("expected no efectivo entry, got %v", totals)
		}
	})

	t.Run("top_accounts", func(t *testing.T) {
		top, err := h.svc.TopAccounts(ctx, 1)
		testutil.AssertNoError(t, err)
		if len(top) != 1 {
			t.Fatalf("expected 1 account, got %d", len(top))
		}
		if top[0].Account.ID != doc.Accounts[1].ID || top[0].Balance != 600 || top[0].BaseBalance != 2_400_000 {
			t.Errorf("unexpected top account %+v", top[0])
		}

		_, err = h.svc.TopAccounts(ctx, 0)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
