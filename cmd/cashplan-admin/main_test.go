package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"cashplan/internal/auth"
	"cashplan/internal/core"
	"cashplan/internal/services"
	"cashplan/internal/storage"
)

const testSecret = "admin-test-secret-0123456789"

const sampleCSV = `date,amount,direction,counterparty
2024-01-01,"5,000.00",IB,Opening
2024-01-03,250.00,INFLOW,Client
2024-01-09,100.00,OUTFLOW,Supplier
2024-01-10,n/a,OUTFLOW,Broken
`

const sampleMapping = `{"date":"date","amount":"amount","direction":"direction","counterparty":"counterparty","default_currency":"PLN","amount_format":"en"}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "admin.db"))
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestMigrateReportsVersion(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "dirty=false")
	assert.NotContains(t, out, "schema version 0 ")

	out, err = run(t, "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version")
}

func TestTokenIsAcceptedByAuth(t *testing.T) {
	setupEnv(t)

	tok, err := run(t, "token", "alice", "--ttl", "10m")
	require.NoError(t, err)

	user, err := auth.NewService(testSecret, time.Hour).ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestTokenRequiresSecret(t *testing.T) {
	setupEnv(t)
	t.Setenv("AUTH_JWT_SECRET", "short")

	_, err := run(t, "token", "alice")
	assert.Error(t, err)
}

func TestCompanyImportAndExport(t *testing.T) {
	dir := setupEnv(t)

	companyID, err := run(t, "company", "create", "Acme", "--owner", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, companyID)

	_, err = run(t, "member", "add", companyID, "bob", "--as", "alice")
	require.NoError(t, err)

	list, err := run(t, "company", "list", "--user", "bob")
	require.NoError(t, err)
	assert.Contains(t, list, "Acme")
	assert.Contains(t, list, "member")

	csvPath := filepath.Join(dir, "bank.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o600))

	out, err := run(t, "import", csvPath, "--as", "bob", "--company", companyID, "--mapping", sampleMapping)
	require.NoError(t, err)
	assert.Contains(t, out, "completed: 3 valid, 1 invalid of 4 rows")
	assert.Contains(t, out, "row 5")

	importID := strings.Fields(out)[1]

	repo, err := storage.NewSQLiteRepository(os.Getenv("SQLITE_DB_PATH"))
	require.NoError(t, err)
	sc, err := services.NewScenarioService(repo, nil, nil).Create(context.Background(), "bob", companyID, services.ScenarioInput{
		ImportID:  importID,
		Name:      "Q1",
		StartDate: core.MustDate("2024-01-01"),
		EndDate:   core.MustDate("2024-03-31"),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	xlsx := filepath.Join(dir, "q1.xlsx")
	out, err = run(t, "export", sc.ID, "--as", "alice", "--company", companyID, "-o", xlsx)
	require.NoError(t, err)
	assert.Equal(t, xlsx, out)

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 3)
}

func TestImportRejectsNonMember(t *testing.T) {
	dir := setupEnv(t)

	companyID, err := run(t, "company", "create", "Acme", "--owner", "alice")
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "bank.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o600))

	_, err = run(t, "import", csvPath, "--as", "mallory", "--company", companyID, "--mapping", sampleMapping)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindForbidden), "got %v", err)
}

func TestLoadMapping(t *testing.T) {
	m, err := loadMapping(sampleMapping, "")
	require.NoError(t, err)
	assert.Equal(t, "PLN", m.DefaultCurrency)

	_, err = loadMapping(`{"unknown":"x"}`, "")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleMapping), 0o600))
	m, err = loadMapping("", path)
	require.NoError(t, err)
	assert.Equal(t, "date", m.Date)
}

func TestSnapshotNeedsSpreadsheet(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "snapshot", "sc-1", "--as", "alice", "--company", "c-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SPREADSHEET_ID")
}
