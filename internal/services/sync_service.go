package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"ledgersync/internal/autosync"
	apperrors "ledgersync/internal/errors"
	"ledgersync/internal/logger"
	"ledgersync/internal/merge"
	"ledgersync/internal/models"
	"ledgersync/internal/pagination"
	"ledgersync/internal/remote"
	"ledgersync/internal/sheets"
)

// SyncOrchestrator is the subset of the auto-sync orchestrator the sync
// service drives.
type SyncOrchestrator interface {
	Notify(doc *models.Document)
	PushNow(ctx context.Context, doc *models.Document) error
	Enable(ctx context.Context, spreadsheetID string) error
	Disable(ctx context.Context) error
	Status() autosync.Status
}

// remotePusher writes documents to the remote store named by each target.
type remotePusher struct {
	connector sheets.Connector
	timeout   time.Duration
}

// NewRemotePusher returns the autosync.Pusher that saves through connector.
func NewRemotePusher(connector sheets.Connector, timeout time.Duration) autosync.Pusher {
	return &remotePusher{connector: connector, timeout: timeout}
}

func (p *remotePusher) Push(ctx context.Context, target sheets.Target, doc *models.Document) error {
	backend, err := p.connector.Connect(ctx, target)
	if err != nil {
		return err
	}
	return remote.New(backend, p.timeout).Save(ctx, doc)
}

// DefaultExportDir holds xlsx exports when no directory is configured.
const DefaultExportDir = "exports"

// SyncOptions holds the collaborators of the sync service.
type SyncOptions struct {
	Connector     sheets.Connector
	Configs       autosync.ConfigStore
	Credentials   autosync.Credentials
	Orchestrator  SyncOrchestrator
	History       SyncHistoryServicer
	RemoteTimeout time.Duration
	ExportDir     string
	Now           func() time.Time
}

// syncService handles pulls, pushes and migrations against the remote store.
type syncService struct {
	ledger    LedgerServicer
	connector sheets.Connector
	configs   autosync.ConfigStore
	creds     autosync.Credentials
	orch      SyncOrchestrator
	history   SyncHistoryServicer
	timeout   time.Duration
	exportDir string
	now       func() time.Time
}

// NewSyncService creates a new SyncServicer.
func NewSyncService(ledger LedgerServicer, opts SyncOptions) SyncServicer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = DefaultExportDir
	}
	return &syncService{
		ledger:    ledger,
		connector: opts.Connector,
		configs:   opts.Configs,
		creds:     opts.Credentials,
		orch:      opts.Orchestrator,
		history:   opts.History,
		timeout:   opts.RemoteTimeout,
		exportDir: opts.ExportDir,
		now:       opts.Now,
	}
}

// adapter opens the configured spreadsheet with the current credential.
func (s *syncService) adapter(ctx context.Context) (*remote.Adapter, error) {
	cfg, err := s.configs.LoadAutoSyncConfig(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !cfg.HasTarget() {
		return nil, apperrors.ErrSyncNotConfigured
	}
	token, ok := s.creds.AccessToken()
	if !ok {
		return nil, apperrors.ErrNotAuthenticated
	}
	backend, err := s.connector.Connect(ctx, sheets.Target{SpreadsheetID: cfg.SpreadsheetID, AccessToken: token})
	if err != nil {
		return nil, toAppError(err)
	}
	return remote.New(backend, s.timeout), nil
}

func (s *syncService) record(op models.SyncOperation, format remote.Format, err error, conflicts int, started time.Time) {
	if s.history == nil {
		return
	}
	outcome := models.SyncOutcomeSuccess
	switch {
	case err == nil:
	case sheets.IsAuthError(err):
		outcome = models.SyncOutcomeAuthFailed
	case errors.Is(err, apperrors.ErrSyncNotConfigured), errors.Is(err, apperrors.ErrNotAuthenticated),
		errors.Is(err, apperrors.ErrRemoteEmpty):
		outcome = models.SyncOutcomeSkipped
	default:
		outcome = models.SyncOutcomeFailed
	}
	s.history.Record(op, outcome, string(format), err, conflicts, s.now().Sub(started))
}

// PushNow pushes the current ledger immediately.
func (s *syncService) PushNow(ctx context.Context) error {
	if err := s.orch.PushNow(ctx, s.ledger.Snapshot()); err != nil {
		return toAppError(err)
	}
	return nil
}

// Pull reads the remote ledger, merges it with the local one and installs the
// result. A result that differs from the remote is scheduled for pushing.
func (s *syncService) Pull(ctx context.Context) (result *PullResult, err error) {
	started := s.now()
	var format remote.Format
	defer func() {
		conflicts := 0
		if result != nil {
			conflicts = len(result.Conflicts)
		}
		s.record(models.SyncOperationPull, format, err, conflicts, started)
	}()

	adapter, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	remoteDoc, format, err := adapter.Load(ctx)
	if err != nil {
		return nil, toAppError(err)
	}
	if remoteDoc == nil {
		return nil, apperrors.ErrRemoteEmpty
	}

	merged, err := merge.Merge(s.ledger.Snapshot(), remoteDoc, s.now())
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidDocument, err.Error())
	}
	if err := s.ledger.Replace(ctx, merged.Document); err != nil {
		return nil, err
	}

	log := logger.Get()
	for _, c := range merged.Conflicts {
		log.Warnw("Pull conflict", "collection", c.Collection, "id", c.ID)
	}
	log.Infow("Pulled", "format", format, "strategy", merged.Strategy, "conflicts", len(merged.Conflicts))

	if merged.Strategy != merge.StrategyRemote && s.orch != nil {
		s.orch.Notify(merged.Document.Clone())
	}

	return &PullResult{
		Format:    format,
		Strategy:  merged.Strategy,
		Conflicts: merged.Conflicts,
		Messages:  merged.Messages(),
		Document:  merged.Document,
	}, nil
}

func (s *syncService) DetectFormat(ctx context.Context) (remote.Format, error) {
	adapter, err := s.adapter(ctx)
	if err != nil {
		return "", err
	}
	format, err := adapter.DetectFormat(ctx)
	if err != nil {
		return "", toAppError(err)
	}
	return format, nil
}

// Migrate converts a blob spreadsheet to the tabular layout.
func (s *syncService) Migrate(ctx context.Context) (result *MigrateResult, err error) {
	started := s.now()
	defer func() {
		var format remote.Format
		if result != nil {
			format = result.Format
		}
		s.record(models.SyncOperationMigrate, format, err, 0, started)
	}()

	adapter, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	migrated, err := adapter.Migrate(ctx)
	if err != nil {
		return nil, toAppError(err)
	}
	if migrated {
		return &MigrateResult{Migrated: true, Format: remote.FormatTabular}, nil
	}
	format, err := adapter.DetectFormat(ctx)
	if err != nil {
		return nil, toAppError(err)
	}
	return &MigrateResult{Migrated: false, Format: format}, nil
}

// ExportWorkbook writes the ledger in tabular form to the xlsx file name
// inside the export directory. name must not carry a directory part.
func (s *syncService) ExportWorkbook(ctx context.Context, name string) error {
	if !sheets.ValidWorkbookName(name) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "export name must be a plain "+sheets.WorkbookExt+" file name")
	}
	if err := os.MkdirAll(s.exportDir, 0o750); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	path := filepath.Join(s.exportDir, name)
	adapter := remote.New(sheets.NewWorkbookBackend(path), s.timeout)
	if err := adapter.SaveTabular(ctx, s.ledger.Snapshot()); err != nil {
		logger.Get().Errorw("Workbook export failed", "path", path, "error", err)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	logger.Get().Infow("Exported workbook", "path", path)
	return nil
}

func (s *syncService) Enable(ctx context.Context, spreadsheetID string) error {
	if err := s.orch.Enable(ctx, spreadsheetID); err != nil {
		return toAppError(err)
	}
	return nil
}

func (s *syncService) Disable(ctx context.Context) error {
	if err := s.orch.Disable(ctx); err != nil {
		return toAppError(err)
	}
	return nil
}

func (s *syncService) Status(ctx context.Context) (*SyncStatus, error) {
	cfg, err := s.configs.LoadAutoSyncConfig(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	_, authenticated := s.creds.AccessToken()
	return &SyncStatus{
		Status:        s.orch.Status(),
		SpreadsheetID: cfg.SpreadsheetID,
		Authenticated: authenticated,
	}, nil
}

func (s *syncService) History(ctx context.Context, operation models.SyncOperation, page pagination.PageRequest) (*pagination.PageResponse[models.SyncLog], error) {
	if s.history == nil {
		resp := pagination.NewPageResponse[models.SyncLog](nil, 1, 1, 0)
		return &resp, nil
	}
	return s.history.List(ctx, operation, page)
}

// toAppError maps lower-layer sync failures onto AppError sentinels.
func toAppError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, autosync.ErrNotConfigured):
		return apperrors.Wrap(apperrors.ErrSyncNotConfigured, err)
	case errors.Is(err, autosync.ErrNoCredential):
		return apperrors.Wrap(apperrors.ErrNotAuthenticated, err)
	case errors.Is(err, autosync.ErrInProgress):
		return apperrors.Wrap(apperrors.ErrSyncInProgress, err)
	case errors.Is(err, autosync.ErrClosed):
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	case errors.Is(err, remote.ErrMigrationRequired):
		return apperrors.Wrap(apperrors.ErrMigrationRequired, err)
	case errors.Is(err, models.ErrInvalidStructure):
		return apperrors.WithMessage(apperrors.ErrInvalidDocument, err.Error())
	case sheets.IsAuthError(err):
		return apperrors.Wrap(apperrors.ErrNotAuthenticated, err)
	default:
		return apperrors.Wrap(apperrors.ErrRemote, err)
	}
}
