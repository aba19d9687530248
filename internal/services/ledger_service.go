package services

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/currency"
	apperrors "ledgersync/internal/errors"
	"ledgersync/internal/logger"
	"ledgersync/internal/models"
	"ledgersync/internal/pagination"
	"ledgersync/internal/uuid"
)

// LedgerOptions holds the optional collaborators of the ledger service.
type LedgerOptions struct {
	Notifier    ChangeNotifier
	Credentials CredentialClearer
	Rates       RateConverter
	Now         func() time.Time
}

// ledgerService owns the in-memory Document. Every committed mutation is
// persisted to the local store before the caller sees it.
type ledgerService struct {
	mu    sync.RWMutex
	doc   *models.Document
	store DocumentStore

	notifier ChangeNotifier
	creds    CredentialClearer
	rates    RateConverter
	now      func() time.Time
}

// NewLedgerService creates a new LedgerServicer holding an empty document.
func NewLedgerService(store DocumentStore, opts LedgerOptions) LedgerServicer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ledgerService{
		doc:      models.DefaultDocument(opts.Now()),
		store:    store,
		notifier: opts.Notifier,
		creds:    opts.Credentials,
		rates:    opts.Rates,
		now:      opts.Now,
	}
}

// LoadFromLocal replaces the in-memory document with the persisted one, if any.
func (s *ledgerService) LoadFromLocal(ctx context.Context) error {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if doc == nil {
		return nil
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	logger.Get().Infow("Loaded ledger from local store", "version", doc.Version, "last_updated", doc.LastUpdated)
	return nil
}

// Snapshot returns a deep copy of the current document.
func (s *ledgerService) Snapshot() *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

func (s *ledgerService) StorageSize(ctx context.Context) (int, error) {
	n, err := s.store.ApproximateSizeBytes(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return n, nil
}

// mutate applies fn to a copy of the document, stamps and persists it, and
// only then makes it current. A failed fn or save leaves the ledger untouched.
func (s *ledgerService) mutate(ctx context.Context, fn func(doc *models.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	return s.commitLocked(ctx, next, true)
}

func (s *ledgerService) commitLocked(ctx context.Context, next *models.Document, notify bool) error {
	next.Touch(s.now())
	if err := s.store.Save(ctx, next); err != nil {
		logger.Get().Errorw("Failed to persist ledger", "error", err)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s.doc = next
	if notify && s.notifier != nil {
		s.notifier.Notify(next.Clone())
	}
	return nil
}

// ---- Institutions ----

func (s *ledgerService) CreateInstitution(ctx context.Context, in models.Institution) (*models.Institution, error) {
	if in.ID == "" {
		in.ID = uuid.New()
	}
	if err := validateInstitution(&in); err != nil {
		return nil, err
	}
	err := s.mutate(ctx, func(doc *models.Document) error {
		if find(doc.Institutions, in.ID) >= 0 {
			return invalidf("institution %s already exists", in.ID)
		}
		doc.Institutions = append(doc.Institutions, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *ledgerService) ListInstitutions(page pagination.PageRequest) *pagination.PageResponse[models.Institution] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := pagination.Slice(slices.Clone(s.doc.Institutions), page)
	return &resp
}

func (s *ledgerService) GetInstitution(id string) (*models.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := find(s.doc.Institutions, id)
	if i < 0 {
		return nil, apperrors.ErrInstitutionNotFound
	}
	out := s.doc.Institutions[i]
	return &out, nil
}

func (s *ledgerService) UpdateInstitution(ctx context.Context, id string, patch InstitutionPatch) (*models.Institution, error) {
	var out models.Institution
	err := s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.Institutions, id)
		if i < 0 {
			return apperrors.ErrInstitutionNotFound
		}
		inst := doc.Institutions[i]
		if patch.Name != nil {
			inst.Name = *patch.Name
		}
		if patch.Kind != nil {
			inst.Kind = *patch.Kind
		}
		if err := validateInstitution(&inst); err != nil {
			return err
		}
		doc.Institutions[i] = inst
		out = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInstitution removes the institution. Accounts that referenced it keep
// the dangling id.
func (s *ledgerService) DeleteInstitution(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.Institutions, id)
		if i < 0 {
			return apperrors.ErrInstitutionNotFound
		}
		doc.Institutions = slices.Delete(doc.Institutions, i, i+1)
		return nil
	})
}

// ---- Accounts ----

func (s *ledgerService) CreateAccount(ctx context.Context, in models.Account) (*models.Account, error) {
	if in.ID == "" {
		in.ID = uuid.New()
	}
	err := s.mutate(ctx, func(doc *models.Document) error {
		if find(doc.Accounts, in.ID) >= 0 {
			return invalidf("account %s already exists", in.ID)
		}
		if err := validateAccount(doc, &in); err != nil {
			return err
		}
		doc.Accounts = append(doc.Accounts, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *ledgerService) ListAccounts(page pagination.PageRequest) *pagination.PageResponse[models.Account] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := pagination.Slice(slices.Clone(s.doc.Accounts), page)
	return &resp
}

func (s *ledgerService) GetAccount(id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.doc.FindAccount(id)
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	return &acct, nil
}

func (s *ledgerService) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*models.Account, error) {
	var out models.Account
	err := s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.Accounts, id)
		if i < 0 {
			return apperrors.ErrAccountNotFound
		}
		acct := doc.Accounts[i]
		if patch.Name != nil {
			acct.Name = *patch.Name
		}
		if patch.InstitutionID != nil {
			acct.InstitutionID = *patch.InstitutionID
		}
		if patch.Kind != nil {
			acct.Kind = *patch.Kind
		}
		if patch.Currency != nil {
			acct.Currency = *patch.Currency
		}
		if patch.OpeningBalance != nil {
			acct.OpeningBalance = *patch.OpeningBalance
		}
		if patch.OpeningDate != nil {
			acct.OpeningDate = *patch.OpeningDate
		}
		if patch.InterestRate != nil {
			acct.InterestRate = models.FromPtr(patch.InterestRate)
		}
		if patch.MaturityDate != nil {
			acct.MaturityDate = *patch.MaturityDate
		}
		if patch.AutoRenew != nil {
			acct.AutoRenew = models.FromPtr(patch.AutoRenew)
		}
		if err := validateAccount(doc, &acct); err != nil {
			return err
		}
		doc.Accounts[i] = acct
		out = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAccount removes the account and every asset held in it.
func (s *ledgerService) DeleteAccount(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.mutate(ctx, func(doc *models.Document) error {
		n, ok := doc.RemoveAccount(id)
		if !ok {
			return apperrors.ErrAccountNotFound
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Get().Infow("Deleted account with assets", "account_id", id, "assets", removed)
	}
	return removed, nil
}

// AccountBalance returns the opening balance plus incoming amounts, minus
// outgoing amounts and the fees charged to the account.
func (s *ledgerService) AccountBalance(id string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.doc.FindAccount(id)
	if !ok {
		return 0, apperrors.ErrAccountNotFound
	}
	return balanceOf(s.doc, acct), nil
}

func balanceOf(doc *models.Document, acct models.Account) float64 {
	total := decimal.NewFromFloat(acct.OpeningBalance)
	for _, tx := range doc.Transactions {
		if amount, ok := tx.Amount.Get(); ok {
			if tx.DestAccountID == acct.ID {
				total = total.Add(decimal.NewFromFloat(amount))
			}
			if tx.SourceAccountID == acct.ID {
				total = total.Sub(decimal.NewFromFloat(amount))
			}
		}
		if fee, ok := tx.Fee.Get(); ok && tx.SourceAccountID == acct.ID {
			total = total.Sub(decimal.NewFromFloat(fee))
		}
	}
	return total.InexactFloat64()
}

// ---- Assets ----

func (s *ledgerService) CreateAsset(ctx context.Context, in models.Asset) (*models.Asset, error) {
	if in.ID == "" {
		in.ID = uuid.New()
	}
	err := s.mutate(ctx, func(doc *models.Document) error {
		if find(doc.Assets, in.ID) >= 0 {
			return invalidf("asset %s already exists", in.ID)
		}
		if err := validateAsset(doc, &in); err != nil {
			return err
		}
		doc.Assets = append(doc.Assets, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// ListAssets pages the assets, optionally only those held in accountID.
func (s *ledgerService) ListAssets(accountID string, page pagination.PageRequest) *pagination.PageResponse[models.Asset] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Asset, 0, len(s.doc.Assets))
	for _, a := range s.doc.Assets {
		if accountID == "" || a.AccountID == accountID {
			items = append(items, a)
		}
	}
	resp := pagination.Slice(items, page)
	return &resp
}

func (s *ledgerService) GetAsset(id string) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := find(s.doc.Assets, id)
	if i < 0 {
		return nil, apperrors.ErrAssetNotFound
	}
	out := s.doc.Assets[i]
	return &out, nil
}

func (s *ledgerService) UpdateAsset(ctx context.Context, id string, patch AssetPatch) (*models.Asset, error) {
	var out models.Asset
	err := s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.Assets, id)
		if i < 0 {
			return apperrors.ErrAssetNotFound
		}
		asset := doc.Assets[i]
		if patch.Class != nil {
			asset.Class = *patch.Class
		}
		if patch.Ticker != nil {
			asset.Ticker = *patch.Ticker
		}
		if patch.Currency != nil {
			asset.Currency = *patch.Currency
		}
		if patch.Quantity != nil {
			asset.Quantity = *patch.Quantity
		}
		if patch.AverageCost != nil {
			asset.AverageCost = models.FromPtr(patch.AverageCost)
		}
		if patch.AccountID != nil {
			asset.AccountID = *patch.AccountID
		}
		if err := validateAsset(doc, &asset); err != nil {
			return err
		}
		doc.Assets[i] = asset
		out = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ledgerService) DeleteAsset(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.Assets, id)
		if i < 0 {
			return apperrors.ErrAssetNotFound
		}
		doc.Assets = slices.Delete(doc.Assets, i, i+1)
		return nil
	})
}

// ---- Transactions ----

func (s *ledgerService) CreateTransaction(ctx context.Context, in models.Transaction) (*models.Transaction, error) {
	if in.ID == "" {
		in.ID = uuid.New()
	}
	err := s.mutate(ctx, func(doc *models.Document) error {
		if find(doc.Transactions, in.ID) >= 0 {
			return invalidf("transaction %s already exists", in.ID)
		}
		if err := validateTransaction(doc, &in); err != nil {
			return err
		}
		doc.Transactions = append(doc.Transactions, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// ListTransactions pages the transactions newest first, optionally only those
// touching accountID.
func (s *ledgerService) ListTransactions(accountID string, page pagination.PageRequest) *pagination.PageResponse[models.Transaction] {
	s.mu.RLock()
	items := make([]models.Transaction, 0, len(s.doc.Transactions))
	for _, tx := range s.doc.Transactions {
		if accountID == "" || tx.SourceAccountID == accountID || tx.DestAccountID == accountID {
			items = append(items, tx)
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(items)
	resp := pagination.Slice(items, page)
	return &resp
}

func (s *ledgerService) GetTransaction(id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := find(s.doc.Transactions, id)
	if i < 0 {
		return nil, apperrors.ErrTransactionNotFound
	}
	out := s.doc.Transactions[i]
	out.Tags = slices.Clone(out.Tags)
	return &out, nil
}

func (s *ledgerService) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) (*models.Transaction, error) {
	var out models.Transaction
	err := s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.Transactions, id)
		if i < 0 {
			return apperrors.ErrTransactionNotFound
		}
		tx := doc.Transactions[i]
		if patch.Date != nil {
			tx.Date = *patch.Date
		}
		if patch.Kind != nil {
			tx.Kind = *patch.Kind
		}
		if patch.SourceAccountID != nil {
			tx.SourceAccountID = *patch.SourceAccountID
		}
		if patch.DestAccountID != nil {
			tx.DestAccountID = *patch.DestAccountID
		}
		if patch.AssetID != nil {
			tx.AssetID = *patch.AssetID
		}
		if patch.Amount != nil {
			tx.Amount = models.FromPtr(patch.Amount)
		}
		if patch.Quantity != nil {
			tx.Quantity = models.FromPtr(patch.Quantity)
		}
		if patch.Price != nil {
			tx.Price = models.FromPtr(patch.Price)
		}
		if patch.Fee != nil {
			tx.Fee = models.FromPtr(patch.Fee)
		}
		if patch.Memo != nil {
			tx.Memo = *patch.Memo
		}
		if patch.Tags != nil {
			tx.Tags = slices.Clone(*patch.Tags)
		}
		if err := validateTransaction(doc, &tx); err != nil {
			return err
		}
		doc.Transactions[i] = tx
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Tags = slices.Clone(out.Tags)
	return &out, nil
}

func (s *ledgerService) DeleteTransaction(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.Transactions, id)
		if i < 0 {
			return apperrors.ErrTransactionNotFound
		}
		doc.Transactions = slices.Delete(doc.Transactions, i, i+1)
		return nil
	})
}

// ---- FX rates ----

func (s *ledgerService) CreateFxRate(ctx context.Context, in models.FxRate) (*models.FxRate, error) {
	if in.ID == "" {
		in.ID = uuid.New()
	}
	if in.Date == "" {
		in.Date = s.now().Format(time.DateOnly)
	}
	if err := validateFxRate(&in); err != nil {
		return nil, err
	}
	err := s.mutate(ctx, func(doc *models.Document) error {
		if find(doc.FxRates, in.ID) >= 0 {
			return invalidf("fx rate %s already exists", in.ID)
		}
		doc.FxRates = append(doc.FxRates, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *ledgerService) ListFxRates(page pagination.PageRequest) *pagination.PageResponse[models.FxRate] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := pagination.Slice(slices.Clone(s.doc.FxRates), page)
	return &resp
}

func (s *ledgerService) GetFxRate(id string) (*models.FxRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := find(s.doc.FxRates, id)
	if i < 0 {
		return nil, apperrors.ErrFxRateNotFound
	}
	out := s.doc.FxRates[i]
	return &out, nil
}

func (s *ledgerService) UpdateFxRate(ctx context.Context, id string, patch FxRatePatch) (*models.FxRate, error) {
	var out models.FxRate
	err := s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.FxRates, id)
		if i < 0 {
			return apperrors.ErrFxRateNotFound
		}
		rate := doc.FxRates[i]
		if patch.From != nil {
			rate.From = *patch.From
		}
		if patch.To != nil {
			rate.To = *patch.To
		}
		if patch.Rate != nil {
			rate.Rate = *patch.Rate
		}
		if patch.Date != nil {
			rate.Date = *patch.Date
		}
		if err := validateFxRate(&rate); err != nil {
			return err
		}
		doc.FxRates[i] = rate
		out = rate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ledgerService) DeleteFxRate(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc *models.Document) error {
		i := find(doc.FxRates, id)
		if i < 0 {
			return apperrors.ErrFxRateNotFound
		}
		doc.FxRates = slices.Delete(doc.FxRates, i, i+1)
		return nil
	})
}

// ---- Preferences ----

func (s *ledgerService) GetPreferences() models.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Preferences
}

func (s *ledgerService) UpdatePreferences(ctx context.Context, patch PreferencesPatch) (*models.Preferences, error) {
	var out models.Preferences
	err := s.mutate(ctx, func(doc *models.Document) error {
		prefs := doc.Preferences
		if patch.BaseCurrency != nil {
			prefs.BaseCurrency = *patch.BaseCurrency
		}
		if patch.Timezone != nil {
			prefs.Timezone = *patch.Timezone
		}
		if !currency.IsSupported(string(prefs.BaseCurrency)) {
			return invalidf("unsupported base currency %q", prefs.BaseCurrency)
		}
		if _, err := time.LoadLocation(prefs.Timezone); prefs.Timezone == "" || err != nil {
			return invalidf("unknown timezone %q", prefs.Timezone)
		}
		doc.Preferences = prefs
		out = prefs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- Document ----

func (s *ledgerService) Export() ([]byte, error) {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return data, nil
}

var importedCollections = []string{
	models.CollectionInstitutions,
	models.CollectionAccounts,
	models.CollectionAssets,
	models.CollectionTransactions,
	models.CollectionFxRates,
}

// Import replaces the ledger with raw. Missing collections import as empty,
// missing preferences keep the current ones, and lastUpdated is set to now.
func (s *ledgerService) Import(ctx context.Context, raw []byte) (*models.Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidDocument, "import must be a JSON object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range importedCollections {
		if v, ok := fields[name]; !ok || string(v) == "null" {
			fields[name] = json.RawMessage("[]")
		}
	}
	if v, ok := fields["prefs"]; !ok || string(v) == "null" {
		prefs, err := json.Marshal(s.doc.Preferences)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		fields["prefs"] = prefs
	}
	if _, ok := fields["version"]; !ok {
		fields["version"] = json.RawMessage(strconv.Itoa(models.InitialVersion))
	}
	stamp, err := json.Marshal(models.FormatTimestamp(s.now()))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	fields["lastUpdated"] = stamp

	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	doc, err := models.ParseDocument(normalized)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidDocument, err.Error())
	}
	if err := s.commitLocked(ctx, doc, true); err != nil {
		return nil, err
	}
	logger.Get().Infow("Imported ledger",
		"accounts", len(doc.Accounts),
		"transactions", len(doc.Transactions),
	)
	return doc.Clone(), nil
}

// Replace installs doc as the ledger as is, keeping its lastUpdated. It is
// used after a pull and does not schedule a push.
func (s *ledgerService) Replace(ctx context.Context, doc *models.Document) error {
	if err := models.Validate(doc); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidDocument, err.Error())
	}
	next := doc.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(ctx, next); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s.doc = next
	return nil
}

// Reset replaces the ledger with an empty one. The remote is left alone.
func (s *ledgerService) Reset(ctx context.Context) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := models.DefaultDocument(s.now())
	if err := s.commitLocked(ctx, doc, false); err != nil {
		return nil, err
	}
	logger.Get().Warnw("Ledger reset")
	return doc.Clone(), nil
}

// ClearAll resets the ledger, removes the local copy and forgets the remote
// credential.
func (s *ledgerService) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	s.doc = models.DefaultDocument(s.now())
	if s.creds != nil {
		if err := s.creds.Clear(ctx); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	logger.Get().Warnw("Cleared all local data")
	return nil
}

// ---- Analytics ----

func (s *ledgerService) convert(ctx context.Context, amount float64, from, to currency.Code) float64 {
	if s.rates == nil || from == to {
		return amount
	}
	return s.rates.Convert(ctx, amount, from, to)
}

// NetWorth sums every account balance and asset book value in the base
// currency.
func (s *ledgerService) NetWorth(ctx context.Context) (*NetWorth, error) {
	doc := s.Snapshot()
	base := doc.Preferences.BaseCurrency

	accounts := decimal.Zero
	for _, acct := range doc.Accounts {
		v := s.convert(ctx, balanceOf(doc, acct), acct.Currency, base)
		accounts = accounts.Add(decimal.NewFromFloat(v))
	}
	assets := decimal.Zero
	for _, asset := range doc.Assets {
		v := s.convert(ctx, asset.BookValue(), asset.Currency, base)
		assets = assets.Add(decimal.NewFromFloat(v))
	}

	return &NetWorth{
		BaseCurrency: base,
		Accounts:     currency.Round(accounts, base).InexactFloat64(),
		Assets:       currency.Round(assets, base).InexactFloat64(),
		Total:        currency.Round(accounts.Add(assets), base).InexactFloat64(),
	}, nil
}

// TotalsByClass groups asset values by class in the base currency. Account
// balances are reported under efectivo when their total is positive.
func (s *ledgerService) TotalsByClass(ctx context.Context) (map[models.AssetClass]float64, error) {
	doc := s.Snapshot()
	base := doc.Preferences.BaseCurrency

	sums := make(map[models.AssetClass]decimal.Decimal)
	for _, asset := range doc.Assets {
		v := s.convert(ctx, asset.BookValue(), asset.Currency, base)
		sums[asset.Class] = sums[asset.Class].Add(decimal.NewFromFloat(v))
	}

	cash := decimal.Zero
	for _, acct := range doc.Accounts {
		v := s.convert(ctx, balanceOf(doc, acct), acct.Currency, base)
		cash = cash.Add(decimal.NewFromFloat(v))
	}
	if cash.IsPositive() {
		sums[models.AssetClassCash] = cash
	}

	out := make(map[models.AssetClass]float64, len(sums))
	for class, v := range sums {
		out[class] = currency.Round(v, base).InexactFloat64()
	}
	return out, nil
}

// TopAccounts returns up to limit accounts ordered by balance in the base
// currency, largest first.
func (s *ledgerService) TopAccounts(ctx context.Context, limit int) ([]AccountSummary, error) {
	if limit <= 0 {
		return nil, invalidf("limit must be positive")
	}
	doc := s.Snapshot()
	base := doc.Preferences.BaseCurrency

	out := make([]AccountSummary, 0, len(doc.Accounts))
	for _, acct := range doc.Accounts {
		bal := balanceOf(doc, acct)
		out = append(out, AccountSummary{
			Account:     acct,
			Balance:     bal,
			BaseBalance: s.convert(ctx, bal, acct.Currency, base),
		})
	}
	slices.SortStableFunc(out, func(a, b AccountSummary) int {
		return cmp.Compare(b.BaseBalance, a.BaseBalance)
	})
	return out[:min(limit, len(out))], nil
}

// RecentTransactions returns up to limit transactions, newest date first.
func (s *ledgerService) RecentTransactions(limit int) []models.Transaction {
	txs := s.Snapshot().Transactions
	sortNewestFirst(txs)
	return txs[:max(0, min(limit, len(txs)))]
}

func sortNewestFirst(txs []models.Transaction) {
	slices.SortStableFunc(txs, func(a, b models.Transaction) int {
		return b.Time().Compare(a.Time())
	})
}

// ---- Validation ----

func find[E models.Entity](items []E, id string) int {
	return slices.IndexFunc(items, func(e E) bool { return e.EntityID() == id })
}

func invalidf(format string, args ...any) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validDate(s string) bool {
	_, ok := models.ParseTimestamp(s)
	return ok
}

func validateInstitution(inst *models.Institution) error {
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.Name == "" {
		return invalidf("institution name is required")
	}
	if inst.Kind != "" && !inst.Kind.Valid() {
		return invalidf("unknown institution kind %q", inst.Kind)
	}
	return nil
}

func validateAccount(doc *models.Document, acct *models.Account) error {
	acct.Name = strings.TrimSpace(acct.Name)
	if acct.Name == "" {
		return invalidf("account name is required")
	}
	if !acct.Kind.Valid() {
		return invalidf("unknown account kind %q", acct.Kind)
	}
	if !currency.IsSupported(string(acct.Currency)) {
		return invalidf("unsupported currency %q", acct.Currency)
	}
	if acct.InstitutionID != "" && find(doc.Institutions, acct.InstitutionID) < 0 {
		return invalidf("institution %s does not exist", acct.InstitutionID)
	}
	if acct.OpeningDate != "" && !validDate(acct.OpeningDate) {
		return invalidf("invalid opening date %q", acct.OpeningDate)
	}
	if acct.MaturityDate != "" && !validDate(acct.MaturityDate) {
		return invalidf("invalid maturity date %q", acct.MaturityDate)
	}
	acct.ClearTermDepositFields()
	return nil
}

func validateAsset(doc *models.Document, asset *models.Asset) error {
	asset.Ticker = strings.TrimSpace(asset.Ticker)
	if !asset.Class.Valid() {
		return invalidf("unknown asset class %q", asset.Class)
	}
	if !currency.IsSupported(string(asset.Currency)) {
		return invalidf("unsupported currency %q", asset.Currency)
	}
	if asset.Quantity < 0 {
		return invalidf("quantity cannot be negative")
	}
	if cost, ok := asset.AverageCost.Get(); ok && cost < 0 {
		return invalidf("average cost cannot be negative")
	}
	if find(doc.Accounts, asset.AccountID) < 0 {
		return invalidf("account %s does not exist", asset.AccountID)
	}
	return nil
}

func validateTransaction(doc *models.Document, tx *models.Transaction) error {
	if !validDate(tx.Date) {
		return invalidf("invalid transaction date %q", tx.Date)
	}
	if !tx.Kind.Valid() {
		return invalidf("unknown transaction kind %q", tx.Kind)
	}
	for _, id := range []string{tx.SourceAccountID, tx.DestAccountID} {
		if id != "" && find(doc.Accounts, id) < 0 {
			return invalidf("account %s does not exist", id)
		}
	}
	if tx.AssetID != "" && find(doc.Assets, tx.AssetID) < 0 {
		return invalidf("asset %s does not exist", tx.AssetID)
	}

	switch tx.Kind {
	case models.TransactionKindTransfer:
		if tx.SourceAccountID == "" || tx.DestAccountID == "" {
			return invalidf("a transfer needs a source and a destination account")
		}
		if tx.SourceAccountID == tx.DestAccountID {
			return invalidf("a transfer cannot target its source account")
		}
	case models.TransactionKindDeposit, models.TransactionKindYield:
		if tx.DestAccountID == "" {
			return invalidf("%s needs a destination account", tx.Kind)
		}
	case models.TransactionKindWithdrawal, models.TransactionKindFee:
		if tx.SourceAccountID == "" {
			return invalidf("%s needs a source account", tx.Kind)
		}
	}

	for _, field := range []struct {
		name  string
		value models.Optional[float64]
	}{
		{"amount", tx.Amount}, {"quantity", tx.Quantity}, {"price", tx.Price}, {"fee", tx.Fee},
	} {
		if f, ok := field.value.Get(); ok && f < 0 {
			return invalidf("%s cannot be negative", field.name)
		}
	}

	tags := tx.Tags[:0:0]
	for _, tag := range tx.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		tags = nil
	}
	tx.Tags = tags
	tx.Memo = strings.TrimSpace(tx.Memo)
	return nil
}

func validateFxRate(rate *models.FxRate) error {
	if !currency.IsSupported(string(rate.From)) || !currency.IsSupported(string(rate.To)) {
		return invalidf("unsupported currency pair %s", rate.Pair())
	}
	if rate.From == rate.To {
		return invalidf("fx rate needs two different currencies")
	}
	if rate.Rate <= 0 {
		return invalidf("fx rate must be positive")
	}
	if !validDate(rate.Date) {
		return invalidf("invalid fx date %q", rate.Date)
	}
	return nil
}
