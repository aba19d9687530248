package services

import (
	"context"
	"time"

	"ledgersync/internal/autosync"
	"ledgersync/internal/currency"
	"ledgersync/internal/merge"
	"ledgersync/internal/models"
	"ledgersync/internal/pagination"
	"ledgersync/internal/remote"
)

// DocumentStore persists the ledger locally.
type DocumentStore interface {
	Load(ctx context.Context) (*models.Document, error)
	Save(ctx context.Context, doc *models.Document) error
	Clear(ctx context.Context) error
	ApproximateSizeBytes(ctx context.Context) (int, error)
}

// ChangeNotifier is told about every committed mutation.
type ChangeNotifier interface {
	Notify(doc *models.Document)
}

// CredentialClearer drops the stored remote credential.
type CredentialClearer interface {
	Clear(ctx context.Context) error
}

// RateConverter converts amounts between currencies.
type RateConverter interface {
	Convert(ctx context.Context, amount float64, from, to currency.Code) float64
}

// Patch types carry only the fields a caller wants to change.
type (
	InstitutionPatch struct {
		Name *string
		Kind *models.InstitutionKind
	}

	AccountPatch struct {
		Name           *string
		InstitutionID  *string
		Kind           *models.AccountKind
		Currency       *currency.Code
		OpeningBalance *float64
		OpeningDate    *string
		InterestRate   *float64
		MaturityDate   *string
		AutoRenew      *bool
	}

	AssetPatch struct {
		Class       *models.AssetClass
		Ticker      *string
		Currency    *currency.Code
		Quantity    *float64
		AverageCost *float64
		AccountID   *string
	}

	TransactionPatch struct {
		Date            *string
		Kind            *models.TransactionKind
		SourceAccountID *string
		DestAccountID   *string
		AssetID         *string
		Amount          *float64
		Quantity        *float64
		Price           *float64
		Fee             *float64
		Memo            *string
		Tags            *[]string
	}

	FxRatePatch struct {
		From *currency.Code
		To   *currency.Code
		Rate *float64
		Date *string
	}

	PreferencesPatch struct {
		BaseCurrency *currency.Code
		Timezone     *string
	}
)

// AccountSummary pairs an account with its balance in its own currency and
// in the base currency.
type AccountSummary struct {
	Account     models.Account `json:"account"`
	Balance     float64        `json:"balance"`
	BaseBalance float64        `json:"base_balance"`
}

// NetWorth is the ledger total in the base currency.
type NetWorth struct {
	BaseCurrency currency.Code `json:"base_currency"`
	Accounts     float64       `json:"accounts"`
	Assets       float64       `json:"assets"`
	Total        float64       `json:"total"`
}

// LedgerServicer defines the contract for the in-memory ledger.
type LedgerServicer interface {
	LoadFromLocal(ctx context.Context) error
	Snapshot() *models.Document
	StorageSize(ctx context.Context) (int, error)

	CreateInstitution(ctx context.Context, in models.Institution) (*models.Institution, error)
	ListInstitutions(page pagination.PageRequest) *pagination.PageResponse[models.Institution]
	GetInstitution(id string) (*models.Institution, error)
	UpdateInstitution(ctx context.Context, id string, patch InstitutionPatch) (*models.Institution, error)
	DeleteInstitution(ctx context.Context, id string) error

	CreateAccount(ctx context.Context, in models.Account) (*models.Account, error)
	ListAccounts(page pagination.PageRequest) *pagination.PageResponse[models.Account]
	GetAccount(id string) (*models.Account, error)
	UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) (removedAssets int, err error)
	AccountBalance(id string) (float64, error)

	CreateAsset(ctx context.Context, in models.Asset) (*models.Asset, error)
	ListAssets(accountID string, page pagination.PageRequest) *pagination.PageResponse[models.Asset]
	GetAsset(id string) (*models.Asset, error)
	UpdateAsset(ctx context.Context, id string, patch AssetPatch) (*models.Asset, error)
	DeleteAsset(ctx context.Context, id string) error

	CreateTransaction(ctx context.Context, in models.Transaction) (*models.Transaction, error)
	ListTransactions(accountID string, page pagination.PageRequest) *pagination.PageResponse[models.Transaction]
	GetTransaction(id string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	CreateFxRate(ctx context.Context, in models.FxRate) (*models.FxRate, error)
	ListFxRates(page pagination.PageRequest) *pagination.PageResponse[models.FxRate]
	GetFxRate(id string) (*models.FxRate, error)
	UpdateFxRate(ctx context.Context, id string, patch FxRatePatch) (*models.FxRate, error)
	DeleteFxRate(ctx context.Context, id string) error

	GetPreferences() models.Preferences
	UpdatePreferences(ctx context.Context, patch PreferencesPatch) (*models.Preferences, error)

	Export() ([]byte, error)
	Import(ctx context.Context, raw []byte) (*models.Document, error)
	Replace(ctx context.Context, doc *models.Document) error
	Reset(ctx context.Context) (*models.Document, error)
	ClearAll(ctx context.Context) error

	NetWorth(ctx context.Context) (*NetWorth, error)
	TotalsByClass(ctx context.Context) (map[models.AssetClass]float64, error)
	TopAccounts(ctx context.Context, limit int) ([]AccountSummary, error)
	RecentTransactions(limit int) []models.Transaction
}

// PullResult reports what a pull changed.
type PullResult struct {
	Format    remote.Format    `json:"format"`
	Strategy  merge.Strategy   `json:"strategy"`
	Conflicts []merge.Conflict `json:"conflicts"`
	Messages  []string         `json:"messages"`
	Document  *models.Document `json:"-"`
}

// MigrateResult reports the outcome of a blob-to-tabular migration.
type MigrateResult struct {
	Migrated bool          `json:"migrated"`
	Format   remote.Format `json:"format"`
}

// SyncStatus combines the orchestrator status with the configured target.
type SyncStatus struct {
	autosync.Status
	SpreadsheetID string `json:"spreadsheet_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// SyncServicer defines the contract for remote replication.
type SyncServicer interface {
	PushNow(ctx context.Context) error
	Pull(ctx context.Context) (*PullResult, error)
	DetectFormat(ctx context.Context) (remote.Format, error)
	Migrate(ctx context.Context) (*MigrateResult, error)
	ExportWorkbook(ctx context.Context, name string) error
	Enable(ctx context.Context, spreadsheetID string) error
	Disable(ctx context.Context) error
	Status(ctx context.Context) (*SyncStatus, error)
	History(ctx context.Context, operation models.SyncOperation, page pagination.PageRequest) (*pagination.PageResponse[models.SyncLog], error)
}

// SyncHistoryServicer records sync outcomes.
type SyncHistoryServicer interface {
	Record(operation models.SyncOperation, outcome models.SyncOutcome, format string, err error, conflicts int, duration time.Duration)
	List(ctx context.Context, operation models.SyncOperation, page pagination.PageRequest) (*pagination.PageResponse[models.SyncLog], error)
}
