// Package remote stores the ledger Document in a cell-grid backend, either as a
// single JSON blob in a hidden sheet or as one readable sheet per collection.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"ledgersync/internal/logger"
	"ledgersync/internal/models"
	"ledgersync/internal/sheets"
	"ledgersync/internal/tabular"
)

// Format is the on-the-wire layout found in a spreadsheet.
type Format string

const (
	FormatBlob    Format = "json"
	FormatTabular Format = "tabular"
	FormatEmpty   Format = "empty"
)

// Sheet names.
const (
	BlobSheet         = "__data"
	SheetInstitutions = "Instituciones"
	SheetAccounts     = "Cuentas"
	SheetAssets       = "Activos"
	SheetTransactions = "Transacciones"
	SheetFxRates      = "FX"
	SheetPreferences  = "Preferencias"
)

const (
	blobCell   = "A1"
	anchorCell = "A1"
)

// ErrMigrationRequired is returned by Save when the remote still holds the
// single-blob format.
var ErrMigrationRequired = errors.New("remote uses the blob format, migrate it first")

// DefaultTimeout bounds each backend call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// TabularSheets lists the per-collection sheets in write order.
var TabularSheets = []string{
	SheetInstitutions, SheetAccounts, SheetAssets,
	SheetTransactions, SheetFxRates, SheetPreferences,
}

// Adapter translates Document reads and writes into backend primitives. Every
// backend call runs under its own timeout.
type Adapter struct {
	backend sheets.Backend
	timeout time.Duration
	log     *zap.SugaredLogger
}

// New wraps backend. A non-positive timeout selects DefaultTimeout.
func New(backend sheets.Backend, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{backend: backend, timeout: timeout, log: logger.Named("remote")}
}

func (a *Adapter) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Adapter) listSheets(ctx context.Context) ([]string, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	return a.backend.ListSheets(ctx)
}

func (a *Adapter) readRange(ctx context.Context, name, bounds string) (tabular.Grid, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	return a.backend.ReadRange(ctx, name, bounds)
}

func (a *Adapter) do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	return fn(ctx)
}

// DetectFormat inspects the sheet names. The blob sheet wins over any
// tabular sheet so a half-migrated spreadsheet is still read from the blob.
func (a *Adapter) DetectFormat(ctx context.Context) (Format, error) {
	names, err := a.listSheets(ctx)
	if err != nil {
		return "", fmt.Errorf("detecting format: %w", err)
	}
	return detect(names), nil
}

func detect(names []string) Format {
	if slices.Contains(names, BlobSheet) {
		return FormatBlob
	}
	for _, n := range TabularSheets {
		if slices.Contains(names, n) {
			return FormatTabular
		}
	}
	return FormatEmpty
}

// LoadBlob returns the Document stored in the blob cell, or nil when the
// sheet or cell is missing.
func (a *Adapter) LoadBlob(ctx context.Context) (*models.Document, error) {
	grid, err := a.readRange(ctx, BlobSheet, blobCell)
	if err != nil {
		return nil, fmt.Errorf("loading blob: %w", err)
	}
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, nil
	}
	raw, ok := grid[0][0].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	doc, err := models.ParseDocument([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("loading blob: %w", err)
	}
	return doc, nil
}

// SaveBlob writes the Document as JSON into the hidden blob sheet.
func (a *Adapter) SaveBlob(ctx context.Context, doc *models.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("saving blob: %w", err)
	}
	names, err := a.listSheets(ctx)
	if err != nil {
		return fmt.Errorf("saving blob: %w", err)
	}
	if !slices.Contains(names, BlobSheet) {
		if err := a.do(ctx, func(ctx context.Context) error {
			return a.backend.CreateSheet(ctx, BlobSheet, true)
		}); err != nil {
			return fmt.Errorf("saving blob: %w", err)
		}
	}
	if err := a.do(ctx, func(ctx context.Context) error {
		return a.backend.WriteRange(ctx, BlobSheet, blobCell, tabular.Grid{{string(raw)}})
	}); err != nil {
		return fmt.Errorf("saving blob: %w", err)
	}
	a.log.Infow("Blob saved", "bytes", len(raw))
	return nil
}

// SaveTabular writes every collection to its own sheet: create if missing,
// clear, write, then style the header row.
func (a *Adapter) SaveTabular(ctx context.Context, doc *models.Document) error {
	tables, err := tabular.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("saving tabular: %w", err)
	}
	names, err := a.listSheets(ctx)
	if err != nil {
		return fmt.Errorf("saving tabular: %w", err)
	}

	grids := map[string]tabular.Grid{
		SheetInstitutions: tables.Institutions,
		SheetAccounts:     tables.Accounts,
		SheetAssets:       tables.Assets,
		SheetTransactions: tables.Transactions,
		SheetFxRates:      tables.FxRates,
		SheetPreferences:  tables.Preferences,
	}
	for _, name := range TabularSheets {
		if err := a.saveSheet(ctx, name, grids[name], slices.Contains(names, name)); err != nil {
			return fmt.Errorf("saving tabular: %w", err)
		}
	}
	a.log.Infow("Tabular saved",
		"institutions", len(doc.Institutions),
		"accounts", len(doc.Accounts),
		"assets", len(doc.Assets),
		"transactions", len(doc.Transactions),
		"fx", len(doc.FxRates),
	)
	return nil
}

func (a *Adapter) saveSheet(ctx context.Context, name string, grid tabular.Grid, exists bool) error {
	if !exists {
		if err := a.do(ctx, func(ctx context.Context) error {
			return a.backend.CreateSheet(ctx, name, false)
		}); err != nil {
			return err
		}
	}
	if err := a.do(ctx, func(ctx context.Context) error {
		return a.backend.ClearRange(ctx, name, sheets.DefaultBounds)
	}); err != nil {
		return err
	}
	if err := a.do(ctx, func(ctx context.Context) error {
		return a.backend.WriteRange(ctx, name, anchorCell, grid)
	}); err != nil {
		return err
	}
	if err := a.do(ctx, func(ctx context.Context) error {
		return a.backend.ApplyHeaderStyle(ctx, name)
	}); err != nil {
		a.log.Warnw("Header style failed", "sheet", name, "error", err)
	}
	return nil
}

// LoadTabular reads the per-collection sheets. It returns nil when none of
// the institution, account, or asset sheets exist.
func (a *Adapter) LoadTabular(ctx context.Context) (*models.Document, error) {
	var t tabular.Tables
	targets := []struct {
		name string
		dst  *tabular.Grid
	}{
		{SheetInstitutions, &t.Institutions},
		{SheetAccounts, &t.Accounts},
		{SheetAssets, &t.Assets},
		{SheetTransactions, &t.Transactions},
		{SheetFxRates, &t.FxRates},
		{SheetPreferences, &t.Preferences},
	}
	for _, tg := range targets {
		grid, err := a.readRange(ctx, tg.name, sheets.DefaultBounds)
		if err != nil {
			return nil, fmt.Errorf("loading tabular: %w", err)
		}
		*tg.dst = grid
	}
	if t.Institutions == nil && t.Accounts == nil && t.Assets == nil {
		return nil, nil
	}

	doc, err := tabular.DecodeDocument(&t)
	if err != nil {
		return nil, fmt.Errorf("loading tabular: %w: %w", models.ErrInvalidStructure, err)
	}
	if err := models.Validate(doc); err != nil {
		return nil, fmt.Errorf("loading tabular: %w", err)
	}
	return doc, nil
}

// DeleteBlobSheet removes the blob sheet and reports whether it existed.
func (a *Adapter) DeleteBlobSheet(ctx context.Context) (bool, error) {
	var deleted bool
	err := a.do(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = a.backend.DeleteSheet(ctx, BlobSheet)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("deleting blob sheet: %w", err)
	}
	return deleted, nil
}

// Migrate converts a blob spreadsheet to tabular. It reports false when no
// blob exists. The blob sheet is only deleted after the tabular write
// succeeded.
func (a *Adapter) Migrate(ctx context.Context) (bool, error) {
	doc, err := a.LoadBlob(ctx)
	if err != nil {
		return false, fmt.Errorf("migrating: %w", err)
	}
	if doc == nil {
		a.log.Warnw("No blob to migrate")
		return false, nil
	}
	if err := a.SaveTabular(ctx, doc); err != nil {
		return false, fmt.Errorf("migrating: %w", err)
	}
	if _, err := a.DeleteBlobSheet(ctx); err != nil {
		return false, fmt.Errorf("migrating: %w", err)
	}
	a.log.Infow("Migrated blob to tabular")
	return true, nil
}

// Save pushes doc in tabular form. A blob remote is left untouched and Save
// fails with ErrMigrationRequired: the blob may hold entries doc lacks, and
// only Migrate may retire it.
func (a *Adapter) Save(ctx context.Context, doc *models.Document) error {
	format, err := a.DetectFormat(ctx)
	if err != nil {
		return err
	}
	if format == FormatBlob {
		a.log.Warnw("Push refused, remote still uses the blob format")
		return fmt.Errorf("saving: %w", ErrMigrationRequired)
	}
	return a.SaveTabular(ctx, doc)
}

// Load reads the remote Document through the path matching its format. It
// returns nil when the spreadsheet holds no ledger.
func (a *Adapter) Load(ctx context.Context) (*models.Document, Format, error) {
	format, err := a.DetectFormat(ctx)
	if err != nil {
		return nil, "", err
	}
	var doc *models.Document
	switch format {
	case FormatBlob:
		doc, err = a.LoadBlob(ctx)
	case FormatTabular:
		doc, err = a.LoadTabular(ctx)
	}
	if err != nil {
		return nil, format, err
	}
	return doc, format, nil
}
