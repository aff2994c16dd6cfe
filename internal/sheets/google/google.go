package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"termosifoni/internal/core"
	ports "termosifoni/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// valuesAPI is the subset of the Sheets values service the client uses.
type valuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) (string, error)
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string
}

var (
	_ ports.Mirror       = (*Client)(nil)
	_ ports.MirrorReader = (*Client)(nil)
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account. The
// credentials come from cfg, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Letture"
	}

	creds, err := credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", sheetName)

	return &Client{
		values:        serviceValues{svc: svc},
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account file", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// MirrorReadings replaces the sheet contents with the derived table.
func (c *Client) MirrorReadings(ctx context.Context, d core.Derivation) (string, error) {
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}

	if err := c.values.Clear(ctx, c.spreadsheetID, c.sheetName+"!A:Z"); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", c.sheetName, err)
	}

	ref, err := c.values.Update(ctx, c.spreadsheetID, c.sheetName+"!A1", ports.Table(d))
	if err != nil {
		return "", fmt.Errorf("update sheet %s: %w", c.sheetName, err)
	}
	return ref, nil
}

// ReadReadings reads back the mirrored months. Derived columns are ignored.
func (c *Client) ReadReadings(ctx context.Context) (core.Collection, error) {
	if c.values == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.sheetName + "!A:Z"
	values, err := c.values.Get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseTable(values)
}

// serviceValues adapts the generated Sheets API to valuesAPI.
type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Clear(ctx context.Context, id, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(id, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s serviceValues) Update(ctx context.Context, id, rng string, values [][]any) (string, error) {
	resp, err := s.svc.Spreadsheets.Values.Update(id, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.UpdatedRange, nil
}

func (s serviceValues) Get(ctx context.Context, id, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(id, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}
