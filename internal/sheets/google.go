package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"ledgersync/internal/logger"
	"ledgersync/internal/tabular"
)

const (
	valueRenderUnformatted = "UNFORMATTED_VALUE"
	valueInputRaw          = "RAW"
	headerStyleFields      = "userEnteredFormat(backgroundColor,textFormat)"
)

// GoogleBackend talks to one spreadsheet through the Sheets v4 API.
type GoogleBackend struct {
	svc           *gsheets.Service
	spreadsheetID string
	log           *zap.SugaredLogger
}

// NewGoogleBackend creates a backend for the given spreadsheet. Extra client
// options (endpoint, HTTP client) are appended after the bearer token source.
func NewGoogleBackend(ctx context.Context, target Target, opts ...option.ClientOption) (*GoogleBackend, error) {
	if target.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: target.AccessToken, TokenType: "Bearer"})
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := gsheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheets: creating service: %w", err)
	}
	return &GoogleBackend{
		svc:           svc,
		spreadsheetID: target.SpreadsheetID,
		log:           logger.Named("sheets.google"),
	}, nil
}

func (b *GoogleBackend) properties(ctx context.Context) ([]*gsheets.SheetProperties, error) {
	ss, err := b.svc.Spreadsheets.Get(b.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, remoteError("list sheets", "", "", err)
	}
	out := make([]*gsheets.SheetProperties, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			out = append(out, s.Properties)
		}
	}
	return out, nil
}

func (b *GoogleBackend) sheetID(ctx context.Context, name string) (int64, bool, error) {
	props, err := b.properties(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, p := range props {
		if p.Title == name {
			return p.SheetId, true, nil
		}
	}
	return 0, false, nil
}

// ListSheets returns the titles of every sheet in the spreadsheet.
func (b *GoogleBackend) ListSheets(ctx context.Context) ([]string, error) {
	props, err := b.properties(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Title
	}
	return names, nil
}

func (b *GoogleBackend) SheetExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := b.sheetID(ctx, name)
	return ok, err
}

// CreateSheet adds a sheet with a frozen header row.
func (b *GoogleBackend) CreateSheet(ctx context.Context, name string, hidden bool) error {
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title:          name,
					Hidden:         hidden,
					GridProperties: &gsheets.GridProperties{FrozenRowCount: 1},
				},
			},
		}},
	}
	if _, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return remoteError("create sheet", name, "", err)
	}
	b.log.Debugw("Sheet created", "sheet", name, "hidden", hidden)
	return nil
}

// ReadRange reads unformatted values. The API answers 400 for a range on a
// missing sheet, which is reported as absent.
func (b *GoogleBackend) ReadRange(ctx context.Context, name, bounds string) (tabular.Grid, error) {
	vr, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, A1(name, bounds)).
		ValueRenderOption(valueRenderUnformatted).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			return nil, nil
		}
		return nil, remoteError("read range", name, bounds, err)
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}
	return tabular.Grid(vr.Values), nil
}

func (b *GoogleBackend) WriteRange(ctx context.Context, name, bounds string, grid tabular.Grid) error {
	rng := A1(name, bounds)
	vr := &gsheets.ValueRange{Range: rng, MajorDimension: "ROWS", Values: [][]interface{}(grid)}
	if _, err := b.svc.Spreadsheets.Values.Update(b.spreadsheetID, rng, vr).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do(); err != nil {
		return remoteError("write range", name, bounds, err)
	}
	return nil
}

func (b *GoogleBackend) ClearRange(ctx context.Context, name, bounds string) error {
	if _, err := b.svc.Spreadsheets.Values.Clear(b.spreadsheetID, A1(name, bounds), &gsheets.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return remoteError("clear range", name, bounds, err)
	}
	return nil
}

// DeleteSheet removes the sheet and reports whether it existed.
func (b *GoogleBackend) DeleteSheet(ctx context.Context, name string) (bool, error) {
	id, ok, err := b.sheetID(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteSheet: &gsheets.DeleteSheetRequest{SheetId: id, ForceSendFields: []string{"SheetId"}},
		}},
	}
	if _, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, remoteError("delete sheet", name, "", err)
	}
	b.log.Debugw("Sheet deleted", "sheet", name)
	return true, nil
}

// ApplyHeaderStyle paints row 1 with a dark background and bold white text.
func (b *GoogleBackend) ApplyHeaderStyle(ctx context.Context, name string) error {
	id, ok, err := b.sheetID(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return &RemoteError{Op: "style header", Sheet: name, Err: fmt.Errorf("sheet not found")}
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range: &gsheets.GridRange{
					SheetId:         id,
					StartRowIndex:   0,
					EndRowIndex:     1,
					ForceSendFields: []string{"SheetId", "StartRowIndex"},
				},
				Cell: &gsheets.CellData{
					UserEnteredFormat: &gsheets.CellFormat{
						BackgroundColor: &gsheets.Color{Red: 0.2, Green: 0.3, Blue: 0.4},
						TextFormat: &gsheets.TextFormat{
							Bold:            true,
							ForegroundColor: &gsheets.Color{Red: 1, Green: 1, Blue: 1},
						},
					},
				},
				Fields: headerStyleFields,
			},
		}},
	}
	if _, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return remoteError("style header", name, "", err)
	}
	return nil
}

func remoteError(op, sheet, bounds string, err error) error {
	re := &RemoteError{Op: op, Sheet: sheet, Range: bounds, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		re.StatusCode = gerr.Code
	}
	return re
}

var _ Backend = (*GoogleBackend)(nil)
