package sheets

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
)

// Backend kinds selectable through configuration.
const (
	KindGoogle   = "google"
	KindWorkbook = "workbook"
)

// GoogleConnector opens a GoogleBackend per target.
type GoogleConnector struct {
	// Endpoint overrides the Sheets API base URL when set.
	Endpoint string
	// HTTPClient replaces the default authenticated client when set.
	HTTPClient *http.Client
}

func (c GoogleConnector) Connect(ctx context.Context, target Target) (Backend, error) {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	return NewGoogleBackend(ctx, target, opts...)
}

// WorkbookConnector serves every target from the same local workbook.
type WorkbookConnector struct {
	backend *WorkbookBackend
}

// NewWorkbookConnector returns a connector backed by the workbook at path.
func NewWorkbookConnector(path string) *WorkbookConnector {
	return &WorkbookConnector{backend: NewWorkbookBackend(path)}
}

func (c *WorkbookConnector) Connect(_ context.Context, _ Target) (Backend, error) {
	return c.backend, nil
}

// NewConnector picks a connector by backend kind.
func NewConnector(kind, endpoint, workbookPath string) (Connector, error) {
	switch kind {
	case "", KindGoogle:
		return GoogleConnector{Endpoint: endpoint}, nil
	case KindWorkbook:
		return NewWorkbookConnector(workbookPath), nil
	default:
		return nil, fmt.Errorf("sheets: unknown backend %q", kind)
	}
}
