// Package export renders scenario projections as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"cashplan/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	SheetWeekly       = "Weekly Summary"
	SheetTransactions = "Transactions"
	SheetBalance      = "Running Balance"

	// numFmtAmount is the built-in "#,##0.00" format.
	numFmtAmount = 4
)

// Data is everything a workbook shows for one scenario.
type Data struct {
	Scenario core.Scenario
	Weeks    []core.WeekSummary
	Flows    []core.ScenarioFlow
	Balance  []core.BalancePoint
}

var (
	weeklyHeader = []interface{}{
		"Week", "Week Start", "Initial Balance", "Inflows", "Outflows", "Net", "Cumulative",
		"Top Inflows", "Other Inflows", "Top Outflows", "Other Outflows",
	}
	transactionsHeader = []interface{}{
		"Week", "Direction", "Counterparty", "Description", "Category", "Currency",
		"Original Date", "Effective Date", "Original Amount", "Effective Amount", "Overridden", "Flow ID",
	}
	balanceHeader = []interface{}{"Date", "Initial Balance", "Inflow", "Outflow", "Net", "Balance"}
)

// Build lays out the three sheets. Amounts are written in major units.
func Build(d Data) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetWeekly); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTransactions, SheetBalance} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create amount style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for _, t := range Tables(d) {
		if err := writeTable(f, t); err != nil {
			f.Close()
			return nil, err
		}
	}

	steps := []func() error{
		func() error { return styleSheet(f, SheetWeekly, len(weeklyHeader), headerStyle, amountStyle, "C", "G") },
		func() error { return styleSheet(f, SheetTransactions, len(transactionsHeader), headerStyle, amountStyle, "I", "J") },
		func() error { return styleSheet(f, SheetBalance, len(balanceHeader), headerStyle, amountStyle, "B", "F") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, d Data) error {
	f, err := Build(d)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Table is one sheet worth of rows, header first.
type Table struct {
	Name string
	Rows [][]interface{}
}

// Tables returns the three sheets of a scenario in workbook order.
func Tables(d Data) []Table {
	return []Table{
		{Name: SheetWeekly, Rows: WeeklyRows(d)},
		{Name: SheetTransactions, Rows: TransactionRows(d.Flows)},
		{Name: SheetBalance, Rows: BalanceRows(d.Balance)},
	}
}

// WeeklyRows lays out one row per week with a cumulative net column.
func WeeklyRows(d Data) [][]interface{} {
	rows := make([][]interface{}, 0, len(d.Weeks)+1)
	rows = append(rows, weeklyHeader)
	var cumulative core.Money
	for _, w := range d.Weeks {
		cumulative = cumulative.Add(w.Net)
		rows = append(rows, []interface{}{
			core.WeekLabelLong(d.Scenario.StartDate, w.Index),
			w.StartDate.String(),
			w.Initial.Total.Float(),
			w.Inflow.Total.Float(),
			w.Outflow.Total.Float(),
			w.Net.Float(),
			cumulative.Float(),
			describeTop(w.Inflow.Top),
			w.Inflow.Other.Float(),
			describeTop(w.Outflow.Top),
			w.Outflow.Other.Float(),
		})
	}
	return rows
}

func TransactionRows(flows []core.ScenarioFlow) [][]interface{} {
	rows := make([][]interface{}, 0, len(flows)+1)
	rows = append(rows, transactionsHeader)
	for _, fl := range flows {
		overridden := "No"
		if fl.Overridden {
			overridden = "Yes"
		}
		rows = append(rows, []interface{}{
			core.WeekLabel(fl.WeekIndex),
			string(fl.Direction),
			fl.Counterparty,
			fl.Description,
			fl.Category,
			fl.Currency,
			fl.OriginalDate.String(),
			fl.EffectiveDate.String(),
			fl.OriginalAmount.Float(),
			fl.EffectiveAmount.Float(),
			overridden,
			fl.FlowID,
		})
	}
	return rows
}

func BalanceRows(points []core.BalancePoint) [][]interface{} {
	rows := make([][]interface{}, 0, len(points)+1)
	rows = append(rows, balanceHeader)
	for _, p := range points {
		rows = append(rows, []interface{}{
			p.Date.String(),
			p.Initial.Float(),
			p.Inflow.Float(),
			p.Outflow.Float(),
			p.Net.Float(),
			p.Balance.Float(),
		})
	}
	return rows
}

func writeTable(f *excelize.File, t Table) error {
	for i, row := range t.Rows {
		if err := setRow(f, t.Name, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleSheet(f *excelize.File, sheet string, columns, headerStyle, amountStyle int, firstAmount, lastAmount string) error {
	lastCol, err := excelize.ColumnNumberToName(columns)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := f.SetColStyle(sheet, firstAmount+":"+lastAmount, amountStyle); err != nil {
		return fmt.Errorf("style %s amounts: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func describeTop(items []core.FlowItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := it.Counterparty
		if name == "" {
			name = it.Description
		}
		if name == "" {
			name = it.FlowID
		}
		parts = append(parts, fmt.Sprintf("%s %s", name, it.Amount.Major()))
	}
	return strings.Join(parts, "; ")
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns "<scenario-name>_<YYYYMMDD>.xlsx" with unsafe characters
// replaced by underscores.
func FileName(scenarioName string, at time.Time) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(scenarioName, "_"), "_.")
	if name == "" {
		name = "scenario"
	}
	return fmt.Sprintf("%s_%s.xlsx", name, at.Format("20060102"))
}
