// Package sheets provides cell-grid backends for the remote ledger copy: the
// Google Sheets API and a local xlsx workbook exposing the same primitives.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ledgersync/internal/tabular"
)

// DefaultBounds is the A1 range read and written for every logical sheet.
const DefaultBounds = "A1:Z1000"

// Backend is a spreadsheet addressed by one container id and credential.
// ReadRange returns a nil grid when the sheet or range does not exist.
type Backend interface {
	ListSheets(ctx context.Context) ([]string, error)
	SheetExists(ctx context.Context, name string) (bool, error)
	CreateSheet(ctx context.Context, name string, hidden bool) error
	ReadRange(ctx context.Context, name, bounds string) (tabular.Grid, error)
	WriteRange(ctx context.Context, name, bounds string, grid tabular.Grid) error
	ClearRange(ctx context.Context, name, bounds string) error
	DeleteSheet(ctx context.Context, name string) (bool, error)
	ApplyHeaderStyle(ctx context.Context, name string) error
}

// RemoteError is returned for every failed backend call. It names the
// operation and the sheet and range involved.
type RemoteError struct {
	Op         string
	Sheet      string
	Range      string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("sheets: ")
	b.WriteString(e.Op)
	if e.Sheet != "" {
		b.WriteString(" ")
		b.WriteString(A1(e.Sheet, e.Range))
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is a credential rejection: a 401 or 403
// status, or a message mentioning "unauthorized".
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		if re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unauthorized")
}

// A1 joins a sheet name and bounds into an A1 range such as "Cuentas!A1:Z1000".
func A1(sheet, bounds string) string {
	if bounds == "" {
		return sheet
	}
	return sheet + "!" + bounds
}

// Target identifies the remote spreadsheet and the bearer credential used to
// reach it.
type Target struct {
	SpreadsheetID string
	AccessToken   string
}

// Connector builds a Backend for a Target.
type Connector interface {
	Connect(ctx context.Context, target Target) (Backend, error)
}
