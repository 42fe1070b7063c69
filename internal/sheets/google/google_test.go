package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cashplan/internal/core"
	"cashplan/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{ServiceAccountJSON: "{}"})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr string
	}{
		{"inline wins", Config{ServiceAccountJSON: ` {"inline":true} `, ServiceAccountFile: path}, `{"inline":true}`, ""},
		{"file", Config{ServiceAccountFile: path}, `{"type":"service_account"}`, ""},
		{"missing file", Config{ServiceAccountFile: filepath.Join(dir, "nope.json")}, "", "read service account file"},
		{"nothing", Config{}, "", "missing service account credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadCredentials(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestA1QuotesTitles(t *testing.T) {
	if got := a1("Base - Weekly Summary", "A1"); got != "'Base - Weekly Summary'!A1" {
		t.Errorf("got %q", got)
	}
	if got := a1("it's", "A:Z"); got != "'it''s'!A:Z" {
		t.Errorf("got %q", got)
	}
}

// fakeSheets answers the three Sheets endpoints the client uses and records
// the request bodies.
type fakeSheets struct {
	mu       sync.Mutex
	existing []string
	calls    map[string][]byte
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string][]byte{}
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		f.calls["get"] = body
		sheets := make([]map[string]any, 0, len(f.existing))
		for _, title := range f.existing {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1", "sheets": sheets})
	case strings.HasSuffix(r.URL.Path, "/values:batchClear"):
		f.calls["clear"] = body
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
	case strings.HasSuffix(r.URL.Path, "/values:batchUpdate"):
		f.calls["values"] = body
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1","totalUpdatedCells":42}`)
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		f.calls["structure"] = body
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1","replies":[]}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-1")
}

func snapshotData() export.Data {
	start := core.NewDate(2024, 1, 1)
	return export.Data{
		Scenario: core.Scenario{ID: "sc-1", Name: "Base", StartDate: start, EndDate: start.AddDays(6)},
		Weeks:    core.BuildWeeklySummary(start, start.AddDays(6), nil),
		Balance:  []core.BalancePoint{{Date: start, Balance: core.Money{Cents: 1050}}},
	}
}

func TestWriteSnapshot_CreatesMissingTabs(t *testing.T) {
	fake := &fakeSheets{existing: []string{"Base - Weekly Summary"}}
	c := newTestClient(t, fake)

	ref, err := c.WriteSnapshot(context.Background(), snapshotData())
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if ref != "https://docs.google.com/spreadsheets/d/sheet-1" {
		t.Errorf("ref = %q", ref)
	}

	var structure gsheet.BatchUpdateSpreadsheetRequest
	if err := json.Unmarshal(fake.calls["structure"], &structure); err != nil {
		t.Fatalf("decode structure request: %v", err)
	}
	var added []string
	for _, req := range structure.Requests {
		added = append(added, req.AddSheet.Properties.Title)
	}
	want := []string{"Base - Transactions", "Base - Running Balance"}
	if strings.Join(added, "|") != strings.Join(want, "|") {
		t.Errorf("added tabs = %v, want %v", added, want)
	}

	var clear gsheet.BatchClearValuesRequest
	if err := json.Unmarshal(fake.calls["clear"], &clear); err != nil {
		t.Fatalf("decode clear request: %v", err)
	}
	if len(clear.Ranges) != 1 || clear.Ranges[0] != "'Base - Weekly Summary'!A:Z" {
		t.Errorf("cleared ranges = %v", clear.Ranges)
	}

	var values gsheet.BatchUpdateValuesRequest
	if err := json.Unmarshal(fake.calls["values"], &values); err != nil {
		t.Fatalf("decode values request: %v", err)
	}
	if values.ValueInputOption != "RAW" {
		t.Errorf("value input option = %q", values.ValueInputOption)
	}
	if len(values.Data) != 3 {
		t.Fatalf("got %d value ranges, want 3", len(values.Data))
	}
	balance := values.Data[2]
	if balance.Range != "'Base - Running Balance'!A1" {
		t.Errorf("balance range = %q", balance.Range)
	}
	if len(balance.Values) != 2 || balance.Values[1][5] != 10.5 {
		t.Errorf("balance values = %v", balance.Values)
	}
}

func TestWriteSnapshot_AllTabsExist(t *testing.T) {
	fake := &fakeSheets{existing: []string{"Base - Weekly Summary", "Base - Transactions", "Base - Running Balance"}}
	c := newTestClient(t, fake)

	if _, err := c.WriteSnapshot(context.Background(), snapshotData()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, ok := fake.calls["structure"]; ok {
		t.Error("no tabs should be added when all exist")
	}
	if _, ok := fake.calls["values"]; !ok {
		t.Error("values were not written")
	}
}

func TestWriteSnapshot_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "sheet-1"}
	if _, err := c.WriteSnapshot(context.Background(), snapshotData()); err == nil {
		t.Fatal("expected error with nil service")
	}
}
