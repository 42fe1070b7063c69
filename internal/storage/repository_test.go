package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cashplan/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo     *SQLiteRepository
	company  core.Company
	imp      core.Import
	outflow  core.Transaction
	scenario core.Scenario
}

var fixedNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// seed stores one company with a completed import: an IB row, seven
// inflows in week 1, one outflow in week 2 and one outflow after the range.
func seed(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	repo := newTestRepo(t)

	company := core.Company{ID: "c1", Name: "Acme", CreatedAt: fixedNow}
	require.NoError(t, repo.CreateCompany(ctx, company, "alice"))

	imp := core.Import{ID: "i1", CompanyID: "c1", FileName: "jan.csv", Status: core.ImportPending, CreatedBy: "alice", CreatedAt: fixedNow}
	require.NoError(t, repo.CreateImport(ctx, imp))

	tx := func(id string, dir core.Direction, cents int64, date string) core.Transaction {
		return core.Transaction{
			ID: id, CompanyID: "c1", ImportID: "i1", Direction: dir, Amount: core.Money{Cents: cents},
			Currency: "PLN", DueDate: core.MustDate(date), Counterparty: "cp-" + id, CreatedAt: fixedNow,
		}
	}
	txs := []core.Transaction{tx("ib", core.Initial, 100000, "2023-12-31")}
	for i := 1; i <= 7; i++ {
		txs = append(txs, tx(fmt.Sprintf("in%d", i), core.Inflow, int64(i*100), "2024-01-02"))
	}
	outflow := tx("out1", core.Outflow, 5000, "2024-01-09")
	txs = append(txs, outflow, tx("late", core.Outflow, 999, "2024-02-15"))

	completed := fixedNow.Add(time.Minute)
	imp.Status = core.ImportCompleted
	imp.TotalRows, imp.ValidRows, imp.InvalidRows = len(txs)+1, len(txs), 1
	imp.CompletedAt = &completed
	require.NoError(t, repo.FinishImport(ctx, imp, txs, []core.ImportRowError{{Row: 4, Field: "amount", Message: "invalid amount"}}))

	scenario := core.Scenario{
		ID: "s1", CompanyID: "c1", ImportID: "i1", Name: "Base", Status: core.ScenarioDraft,
		StartDate: core.MustDate("2024-01-01"), EndDate: core.MustDate("2024-01-31"),
		CreatedBy: "alice", CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}
	require.NoError(t, repo.CreateScenario(ctx, scenario))

	return fixture{repo: repo, company: company, imp: imp, outflow: outflow, scenario: scenario}
}

func TestCompanyMembership(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	role, err := f.repo.MemberRole(ctx, "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, core.RoleOwner, role)

	_, err = f.repo.MemberRole(ctx, "c1", "mallory")
	assert.True(t, core.IsKind(err, core.KindNotFound))

	require.NoError(t, f.repo.AddMember(ctx, "c1", "bob", core.RoleMember, fixedNow))
	err = f.repo.AddMember(ctx, "c1", "bob", core.RoleMember, fixedNow)
	assert.True(t, core.IsKind(err, core.KindConflict))

	companies, err := f.repo.ListCompaniesForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, core.RoleMember, companies[0].Role)
}

func TestFinishImportStoresRowsAndErrors(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	imp, err := f.repo.GetImport(ctx, "c1", "i1")
	require.NoError(t, err)
	assert.Equal(t, core.ImportCompleted, imp.Status)
	assert.Equal(t, 10, imp.ValidRows)
	require.NotNil(t, imp.CompletedAt)

	rowErrs, err := f.repo.ListImportErrors(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []core.ImportRowError{{Row: 4, Field: "amount", Message: "invalid amount"}}, rowErrs)

	page, err := f.repo.ListTransactions(ctx, "i1", core.NewPage(2, 4))
	require.NoError(t, err)
	assert.Equal(t, 10, page.Total)
	assert.Len(t, page.Items, 4)

	_, err = f.repo.GetImport(ctx, "other", "i1")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestScenarioNameUniqueAmongLive(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	dup := f.scenario
	dup.ID = "s2"
	err := f.repo.CreateScenario(ctx, dup)
	assert.True(t, core.IsKind(err, core.KindConflict))

	require.NoError(t, f.repo.SoftDeleteScenario(ctx, "c1", "s1", fixedNow))
	require.NoError(t, f.repo.CreateScenario(ctx, dup), "deleted scenarios release their name")

	_, err = f.repo.GetScenario(ctx, "c1", "s1")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestWeeklyAggregatesTopFiveAndOther(t *testing.T) {
	f := seed(t)
	rows, err := f.repo.WeeklyAggregates(context.Background(), "s1")
	require.NoError(t, err)

	weeks := core.BuildWeeklySummary(f.scenario.StartDate, f.scenario.EndDate, rows)
	require.Len(t, weeks, 6)

	assert.Equal(t, int64(100000), weeks[0].Initial.Total.Cents)

	w1 := weeks[1].Inflow
	require.Len(t, w1.Top, core.TopFlowsPerWeek)
	assert.Equal(t, "in7", w1.Top[0].FlowID)
	assert.Equal(t, int64(300), w1.Other.Cents)
	assert.Equal(t, 2, w1.OtherCount)
	assert.Equal(t, int64(2800), w1.Total.Cents)

	assert.Equal(t, int64(5000), weeks[2].Outflow.Total.Cents)
	for _, w := range weeks[3:] {
		assert.Zero(t, w.Outflow.Count, "flows after the range are excluded")
	}
}

func TestRunningBalanceWithOverride(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	points, err := f.repo.RunningBalance(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, core.MustDate("2024-01-01"), points[0].Date)
	assert.Equal(t, int64(100000), points[0].Balance.Cents)
	assert.Equal(t, int64(102800), points[1].Balance.Cents)
	assert.Equal(t, int64(97800), points[2].Balance.Cents)

	amount := core.Money{Cents: 6000}
	_, err = f.repo.UpsertOverride(ctx, "c1", core.Override{
		ID: "o1", ScenarioID: "s1", FlowID: "out1",
		OriginalDate: f.outflow.DueDate, OriginalAmount: f.outflow.Amount,
		NewAmount: &amount, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})
	require.NoError(t, err)

	points, err = f.repo.RunningBalance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(96800), points[2].Balance.Cents)
}

func TestUpsertOverridePreservesOriginals(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	first := core.Money{Cents: 6000}
	o, err := f.repo.UpsertOverride(ctx, "c1", core.Override{
		ID: "o1", ScenarioID: "s1", FlowID: "out1",
		OriginalDate: f.outflow.DueDate, OriginalAmount: f.outflow.Amount,
		NewAmount: &first, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), o.OriginalAmount.Cents)

	moved := core.MustDate("2024-01-20")
	later := fixedNow.Add(time.Hour)
	o, err = f.repo.UpsertOverride(ctx, "c1", core.Override{
		ID: "o2", ScenarioID: "s1", FlowID: "out1",
		OriginalDate: core.MustDate("1999-01-01"), OriginalAmount: core.Money{Cents: 1},
		NewDate: &moved, Note: "pushed", CreatedAt: later, UpdatedAt: later,
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, f.outflow.DueDate, o.OriginalDate)
	assert.Equal(t, int64(5000), o.OriginalAmount.Cents)
	assert.Nil(t, o.NewAmount)
	require.NotNil(t, o.NewDate)
	assert.Equal(t, moved, *o.NewDate)
	assert.Equal(t, fixedNow, o.CreatedAt)

	flows, err := f.repo.ScenarioFlows(ctx, "s1", 100, 0)
	require.NoError(t, err)
	var found bool
	for _, fl := range flows {
		if fl.FlowID == "out1" {
			found = true
			assert.True(t, fl.Overridden)
			assert.Equal(t, moved, fl.EffectiveDate)
			assert.Equal(t, 3, fl.WeekIndex)
		}
	}
	assert.True(t, found)
}

func TestLockedScenarioRejectsWrites(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	require.NoError(t, f.repo.LockScenario(ctx, "c1", "s1", fixedNow))
	err := f.repo.LockScenario(ctx, "c1", "s1", fixedNow)
	assert.True(t, core.IsKind(err, core.KindConflict))

	amount := core.Money{Cents: 1}
	_, err = f.repo.UpsertOverride(ctx, "c1", core.Override{
		ID: "o1", ScenarioID: "s1", FlowID: "out1", OriginalDate: f.outflow.DueDate,
		NewAmount: &amount, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})
	assert.True(t, core.IsKind(err, core.KindConflict))

	s := f.scenario
	s.Name = "Renamed"
	assert.True(t, core.IsKind(f.repo.UpdateScenario(ctx, s), core.KindConflict))

	err = f.repo.DeleteOverride(ctx, "c1", "s1", "out1")
	assert.True(t, core.IsKind(err, core.KindConflict))
}

func TestDuplicateCopiesOverridesAndBlocksDelete(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	amount := core.Money{Cents: 4200}
	_, err := f.repo.UpsertOverride(ctx, "c1", core.Override{
		ID: "o1", ScenarioID: "s1", FlowID: "out1",
		OriginalDate: f.outflow.DueDate, OriginalAmount: f.outflow.Amount,
		NewAmount: &amount, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	})
	require.NoError(t, err)

	dup := f.scenario
	dup.ID, dup.Name, dup.BaseScenarioID = "s2", "Base (copy)", "s1"
	require.NoError(t, f.repo.DuplicateScenario(ctx, dup))

	copied, err := f.repo.ListOverrides(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.NotEqual(t, "o1", copied[0].ID)
	assert.Equal(t, int64(5000), copied[0].OriginalAmount.Cents)
	assert.Equal(t, int64(4200), copied[0].NewAmount.Cents)

	err = f.repo.SoftDeleteScenario(ctx, "c1", "s1", fixedNow)
	assert.True(t, core.IsKind(err, core.KindConflict))

	require.NoError(t, f.repo.SoftDeleteScenario(ctx, "c1", "s2", fixedNow))
	require.NoError(t, f.repo.SoftDeleteScenario(ctx, "c1", "s1", fixedNow))

	rows, err := f.repo.WeeklyAggregates(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rows, "deleted scenarios disappear from the views")
}

func TestScenarioFlowsPaging(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	total, err := f.repo.CountScenarioFlows(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 9, total)

	var all []core.ScenarioFlow
	for offset := 0; ; offset += 4 {
		page, err := f.repo.ScenarioFlows(ctx, "s1", 4, offset)
		require.NoError(t, err)
		all = append(all, page...)
		if len(page) < 4 {
			break
		}
	}
	require.Len(t, all, 9)
	assert.Equal(t, core.Initial, all[0].Direction)
	assert.Equal(t, 0, all[0].WeekIndex)
}

func TestRecordAuditEventIsIdempotent(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	e := core.AuditEvent{
		MessageID: "m1", EventType: "scenario.locked", CompanyID: "c1", ScenarioID: "s1",
		Actor: "alice", Payload: `{}`, OccurredAt: fixedNow, RecordedAt: fixedNow,
	}
	inserted, err := f.repo.RecordAuditEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = f.repo.RecordAuditEvent(ctx, e)
	require.NoError(t, err)
	assert.False(t, inserted)

	page, err := f.repo.ListAuditEvents(ctx, "c1", core.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "s1", page.Items[0].ScenarioID)
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	require.NoError(t, RunMigrations(path))
	version, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
