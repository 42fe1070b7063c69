package export

import (
	"bytes"
	"testing"
	"time"

	"cashplan/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleData() Data {
	start, end := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 14)
	rows := []core.WeeklyAggregateRow{
		{WeekIndex: 0, Direction: core.Initial, FlowID: "ib", Amount: core.Money{Cents: 100000}, ItemCount: 1, Rank: 1},
		{WeekIndex: 1, Direction: core.Inflow, FlowID: "f1", Counterparty: "Client A", Amount: core.Money{Cents: 123456}, ItemCount: 1, Rank: 1},
		{WeekIndex: 2, Direction: core.Outflow, FlowID: "f2", Counterparty: "Landlord", Amount: core.Money{Cents: 50000}, ItemCount: 1, Rank: 1},
	}
	return Data{
		Scenario: core.Scenario{Name: "Q1 plan", StartDate: start, EndDate: end},
		Weeks:    core.BuildWeeklySummary(start, end, rows),
		Flows: []core.ScenarioFlow{
			{FlowID: "f1", Direction: core.Inflow, Currency: "PLN", Counterparty: "Client A",
				OriginalDate: core.NewDate(2024, 1, 3), EffectiveDate: core.NewDate(2024, 1, 3),
				OriginalAmount: core.Money{Cents: 100000}, EffectiveAmount: core.Money{Cents: 123456}, Overridden: true, WeekIndex: 1},
		},
		Balance: []core.BalancePoint{
			{Date: start, Initial: core.Money{Cents: 100000}, Net: core.Money{Cents: 100000}, Balance: core.Money{Cents: 100000}},
			{Date: core.NewDate(2024, 1, 3), Inflow: core.Money{Cents: 123456}, Net: core.Money{Cents: 123456}, Balance: core.Money{Cents: 223456}},
		},
	}
}

func readBack(t *testing.T, d Data) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func raw(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}

func TestWorkbookHasThreeSheets(t *testing.T) {
	f := readBack(t, sampleData())
	assert.Equal(t, []string{SheetWeekly, SheetTransactions, SheetBalance}, f.GetSheetList())
}

func TestWeeklySheetUsesMajorUnits(t *testing.T) {
	f := readBack(t, sampleData())

	rows, err := f.GetRows(SheetWeekly)
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus IB, W1, W2")

	assert.Equal(t, "Initial Balance", raw(t, f, SheetWeekly, "A2"))
	assert.Equal(t, "1000", raw(t, f, SheetWeekly, "C2"))
	assert.Equal(t, "W1 (2024-01-01)", raw(t, f, SheetWeekly, "A3"))
	assert.Equal(t, "1234.56", raw(t, f, SheetWeekly, "D3"))
	assert.Equal(t, "Client A 1234.56", raw(t, f, SheetWeekly, "H3"))
	assert.Equal(t, "W2 (2024-01-08)", raw(t, f, SheetWeekly, "A4"))
	assert.Equal(t, "-500", raw(t, f, SheetWeekly, "F4"))
	assert.Equal(t, "1734.56", raw(t, f, SheetWeekly, "G4"))
}

func TestTransactionsAndBalanceSheets(t *testing.T) {
	f := readBack(t, sampleData())

	assert.Equal(t, "W1", raw(t, f, SheetTransactions, "A2"))
	assert.Equal(t, "1000", raw(t, f, SheetTransactions, "I2"))
	assert.Equal(t, "1234.56", raw(t, f, SheetTransactions, "J2"))
	assert.Equal(t, "Yes", raw(t, f, SheetTransactions, "K2"))

	assert.Equal(t, "2024-01-03", raw(t, f, SheetBalance, "A3"))
	assert.Equal(t, "2234.56", raw(t, f, SheetBalance, "F3"))
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Q1_plan_20240305.xlsx", FileName("Q1 plan", at))
	assert.Equal(t, "Budget_2024_copy_20240305.xlsx", FileName("Budget/2024 (copy)", at))
	assert.Equal(t, "scenario_20240305.xlsx", FileName("???", at))
}

func TestTablesShareWorkbookLayout(t *testing.T) {
	tables := Tables(sampleData())
	require.Len(t, tables, 3)

	assert.Equal(t, SheetWeekly, tables[0].Name)
	assert.Len(t, tables[0].Rows, 4)
	assert.Equal(t, "Week", tables[0].Rows[0][0])

	assert.Equal(t, SheetTransactions, tables[1].Name)
	require.Len(t, tables[1].Rows, 2)
	assert.Equal(t, 1234.56, tables[1].Rows[1][9])

	assert.Equal(t, SheetBalance, tables[2].Name)
	assert.Len(t, tables[2].Rows, 3)
}
