package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ledgersync/internal/logger"
	"ledgersync/internal/tabular"
)

const (
	lockRetryDelay  = 50 * time.Millisecond
	headerFill      = "334D66"
	headerFontColor = "FFFFFF"
)

// WorkbookBackend keeps the remote copy in a local xlsx file. Every call opens
// the file under a file lock; mutating calls save before releasing it.
type WorkbookBackend struct {
	path string
	mu   sync.Mutex
	log  *zap.SugaredLogger
}

// NewWorkbookBackend returns a backend for the workbook at path. The file is
// created on the first write.
func NewWorkbookBackend(path string) *WorkbookBackend {
	return &WorkbookBackend{path: path, log: logger.Named("sheets.workbook")}
}

// WorkbookExt is the extension of workbook files.
const WorkbookExt = ".xlsx"

// ValidWorkbookName reports whether name is a bare xlsx file name, with no
// directory part and no parent reference.
func ValidWorkbookName(name string) bool {
	if len(name) <= len(WorkbookExt) || strings.ContainsAny(name, `/\:`) || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name && strings.EqualFold(filepath.Ext(name), WorkbookExt)
}

// Path returns the workbook location.
func (b *WorkbookBackend) Path() string { return b.path }

// view runs fn against the saved workbook. found is false when the file does
// not exist yet.
func (b *WorkbookBackend) view(ctx context.Context, fn func(f *excelize.File) error) (found bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock := flock.New(b.path + ".lock")
	if _, err := lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return false, fmt.Errorf("locking workbook: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := os.Stat(b.path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return false, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	return true, fn(f)
}

// update runs fn against the workbook, creating it if needed, and saves it
// when fn succeeds. fresh reports that the file was just created.
func (b *WorkbookBackend) update(ctx context.Context, fn func(f *excelize.File, fresh bool) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock := flock.New(b.path + ".lock")
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("locking workbook: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	var f *excelize.File
	fresh := false
	if _, err := os.Stat(b.path); errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		fresh = true
	} else {
		opened, err := excelize.OpenFile(b.path)
		if err != nil {
			return fmt.Errorf("opening workbook: %w", err)
		}
		f = opened
	}
	defer func() { _ = f.Close() }()

	if err := fn(f, fresh); err != nil {
		return err
	}
	if err := f.SaveAs(b.path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func (b *WorkbookBackend) ListSheets(ctx context.Context) ([]string, error) {
	var names []string
	_, err := b.view(ctx, func(f *excelize.File) error {
		names = f.GetSheetList()
		return nil
	})
	if err != nil {
		return nil, &RemoteError{Op: "list sheets", Err: err}
	}
	return names, nil
}

func (b *WorkbookBackend) SheetExists(ctx context.Context, name string) (bool, error) {
	names, err := b.ListSheets(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// CreateSheet adds a sheet with a frozen header row. In a new workbook the
// default sheet is renamed instead so the file holds no stray empty sheet.
func (b *WorkbookBackend) CreateSheet(ctx context.Context, name string, hidden bool) error {
	err := b.update(ctx, func(f *excelize.File, fresh bool) error {
		if idx, _ := f.GetSheetIndex(name); idx >= 0 {
			return nil
		}
		list := f.GetSheetList()
		if fresh && len(list) == 1 && !hidden {
			if err := f.SetSheetName(list[0], name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if hidden {
			if err := f.SetSheetVisible(name, false); err != nil {
				return err
			}
		}
		return f.SetPanes(name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	})
	if err != nil {
		return &RemoteError{Op: "create sheet", Sheet: name, Err: err}
	}
	b.log.Debugw("Sheet created", "sheet", name, "hidden", hidden, "path", b.path)
	return nil
}

// ReadRange returns raw cell values inside bounds. Cells come back as text;
// the tabular decoder coerces them by column kind.
func (b *WorkbookBackend) ReadRange(ctx context.Context, name, bounds string) (tabular.Grid, error) {
	bx, err := parseBounds(bounds)
	if err != nil {
		return nil, &RemoteError{Op: "read range", Sheet: name, Range: bounds, Err: err}
	}

	var grid tabular.Grid
	_, err = b.view(ctx, func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return nil
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return err
		}
		grid = bx.crop(rows)
		return nil
	})
	if err != nil {
		return nil, &RemoteError{Op: "read range", Sheet: name, Range: bounds, Err: err}
	}
	return grid, nil
}

func (b *WorkbookBackend) WriteRange(ctx context.Context, name, bounds string, grid tabular.Grid) error {
	bx, err := parseBounds(bounds)
	if err != nil {
		return &RemoteError{Op: "write range", Sheet: name, Range: bounds, Err: err}
	}
	err = b.update(ctx, func(f *excelize.File, _ bool) error {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return fmt.Errorf("sheet %q not found", name)
		}
		for i, row := range grid {
			cell, err := excelize.CoordinatesToCellName(bx.col1, bx.row1+i)
			if err != nil {
				return err
			}
			values := []interface{}(row)
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &RemoteError{Op: "write range", Sheet: name, Range: bounds, Err: err}
	}
	return nil
}

// ClearRange blanks every populated cell inside bounds.
func (b *WorkbookBackend) ClearRange(ctx context.Context, name, bounds string) error {
	bx, err := parseBounds(bounds)
	if err != nil {
		return &RemoteError{Op: "clear range", Sheet: name, Range: bounds, Err: err}
	}
	err = b.update(ctx, func(f *excelize.File, _ bool) error {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return fmt.Errorf("sheet %q not found", name)
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return err
		}
		for r := bx.row1; r <= bx.row2 && r <= len(rows); r++ {
			for c := bx.col1; c <= bx.col2 && c <= len(rows[r-1]); c++ {
				cell, err := excelize.CoordinatesToCellName(c, r)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(name, cell, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return &RemoteError{Op: "clear range", Sheet: name, Range: bounds, Err: err}
	}
	return nil
}

func (b *WorkbookBackend) DeleteSheet(ctx context.Context, name string) (bool, error) {
	deleted := false
	err := b.update(ctx, func(f *excelize.File, _ bool) error {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return nil
		}
		if err := f.DeleteSheet(name); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, &RemoteError{Op: "delete sheet", Sheet: name, Err: err}
	}
	if deleted {
		b.log.Debugw("Sheet deleted", "sheet", name, "path", b.path)
	}
	return deleted, nil
}

// ApplyHeaderStyle styles the populated cells of row 1.
func (b *WorkbookBackend) ApplyHeaderStyle(ctx context.Context, name string) error {
	err := b.update(ctx, func(f *excelize.File, _ bool) error {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return fmt.Errorf("sheet %q not found", name)
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return err
		}
		width := 1
		if len(rows) > 0 && len(rows[0]) > 0 {
			width = len(rows[0])
		}
		last, err := excelize.CoordinatesToCellName(width, 1)
		if err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Color: headerFontColor},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		})
		if err != nil {
			return err
		}
		return f.SetCellStyle(name, "A1", last, style)
	})
	if err != nil {
		return &RemoteError{Op: "style header", Sheet: name, Err: err}
	}
	return nil
}

// box is a parsed A1 range with 1-based inclusive corners.
type box struct {
	col1, row1, col2, row2 int
}

func parseBounds(bounds string) (box, error) {
	if bounds == "" {
		bounds = DefaultBounds
	}
	start, end, found := strings.Cut(bounds, ":")
	c1, r1, err := excelize.CellNameToCoordinates(start)
	if err != nil {
		return box{}, err
	}
	if !found {
		return box{c1, r1, c1, r1}, nil
	}
	c2, r2, err := excelize.CellNameToCoordinates(end)
	if err != nil {
		return box{}, err
	}
	return box{min(c1, c2), min(r1, r2), max(c1, c2), max(r1, r2)}, nil
}

// crop cuts rows to the box. An empty result is reported as absent.
func (bx box) crop(rows [][]string) tabular.Grid {
	var grid tabular.Grid
	for r := bx.row1; r <= bx.row2 && r <= len(rows); r++ {
		src := rows[r-1]
		row := make([]any, 0, bx.col2-bx.col1+1)
		for c := bx.col1; c <= bx.col2 && c <= len(src); c++ {
			row = append(row, src[c-1])
		}
		grid = append(grid, row)
	}
	for len(grid) > 0 && blankRow(grid[len(grid)-1]) {
		grid = grid[:len(grid)-1]
	}
	if len(grid) == 0 {
		return nil
	}
	return grid
}

func blankRow(row []any) bool {
	for _, cell := range row {
		if s, _ := cell.(string); s != "" {
			return false
		}
	}
	return true
}

var _ Backend = (*WorkbookBackend)(nil)
