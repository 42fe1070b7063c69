package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cashplan/internal/export"
	ports "cashplan/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// requestTimeout bounds each Sheets API call.
const requestTimeout = 30 * time.Second

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var _ ports.SnapshotWriter = (*Client)(nil)

// Config selects the target spreadsheet and the service account used to
// reach it. ServiceAccountJSON wins over ServiceAccountFile.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentialsJSON, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// WriteSnapshot writes the three scenario tables to their own tabs. Missing
// tabs are created; existing ones are cleared first so a shorter snapshot
// leaves no stale rows behind.
func (c *Client) WriteSnapshot(ctx context.Context, d export.Data) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	start := time.Now()

	tables := export.Tables(d)
	titles := make([]string, len(tables))
	for i, t := range tables {
		titles[i] = ports.TabTitle(d.Scenario.Name, t.Name)
	}

	existing, err := c.sheetTitles(ctx)
	if err != nil {
		return "", err
	}

	var add []*gsheet.Request
	var clear []string
	for _, title := range titles {
		if existing[title] {
			clear = append(clear, a1(title, "A:Z"))
			continue
		}
		add = append(add, &gsheet.Request{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		})
	}

	if len(add) > 0 {
		cctx, cancel := context.WithTimeout(ctx, requestTimeout)
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: add}).
			Context(cctx).Do()
		cancel()
		if err != nil {
			return "", fmt.Errorf("add snapshot tabs: %w", err)
		}
	}
	if len(clear) > 0 {
		cctx, cancel := context.WithTimeout(ctx, requestTimeout)
		_, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: clear}).
			Context(cctx).Do()
		cancel()
		if err != nil {
			return "", fmt.Errorf("clear snapshot tabs: %w", err)
		}
	}

	data := make([]*gsheet.ValueRange, len(tables))
	for i, t := range tables {
		data[i] = &gsheet.ValueRange{Range: a1(titles[i], "A1"), Values: t.Rows}
	}
	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(cctx).Do()
	if err != nil {
		return "", fmt.Errorf("write snapshot values: %w", err)
	}

	slog.InfoContext(ctx, "Scenario snapshot written to Google Sheets",
		"scenario_id", d.Scenario.ID,
		"tabs_created", len(add),
		"tabs_cleared", len(clear),
		"updated_cells", resp.TotalUpdatedCells,
		"duration", time.Since(start))
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s", c.spreadsheetID), nil
}

func (c *Client) sheetTitles(ctx context.Context) (map[string]bool, error) {
	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(cctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}
	titles := make(map[string]bool, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles[sh.Properties.Title] = true
		}
	}
	return titles, nil
}

// a1 quotes a tab title for use in an A1 range.
func a1(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}
