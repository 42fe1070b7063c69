package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"cashplan/internal/core"
)

const (
	maxTextLength = 500
	maxRowErrors  = 1000
)

// Row is one valid CSV record converted to transaction fields.
type Row struct {
	Line         int
	Direction    core.Direction
	Amount       core.Money
	Currency     string
	DueDate      core.Date
	Counterparty string
	Description  string
	Category     string
}

// Result holds the outcome of parsing a whole file.
type Result struct {
	Headers   []string
	Delimiter rune
	Rows      []Row
	Errors    []core.ImportRowError
	TotalRows int
	// InvalidRows counts rows with at least one error.
	InvalidRows int
}

type columns struct {
	date, amount, direction, currency, counterparty, description, category int
}

// Parse reads every record of r. Rows that fail validation are reported in
// Result.Errors and left out of Result.Rows. Header-level problems (unknown
// columns, unreadable file) return a Validation error.
func Parse(r io.Reader, m Mapping) (Result, error) {
	var res Result
	if err := m.Validate(); err != nil {
		return res, err
	}

	br := bufio.NewReader(r)
	delim, err := m.delimiter()
	if err != nil {
		return res, err
	}
	if delim == 0 {
		if delim, err = detectDelimiter(br); err != nil {
			return res, err
		}
	}
	res.Delimiter = delim

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return res, core.Validation("file is empty", core.FieldError{Field: "file", Message: "no header row"})
	}
	if err != nil {
		return res, core.Validation("cannot read CSV header", core.FieldError{Field: "file", Message: err.Error()})
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	res.Headers = header

	cols, err := resolveColumns(header, m)
	if err != nil {
		return res, err
	}

	amountFormat, _ := core.ParseAmountFormat(m.AmountFormat)
	defaultCurrency := ""
	if m.DefaultCurrency != "" {
		defaultCurrency, _ = core.NormalizeCurrency(m.DefaultCurrency)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				res.TotalRows++
				res.InvalidRows++
				res.addError(core.ImportRowError{Row: pe.StartLine, Field: "row", Message: pe.Err.Error()})
				continue
			}
			return res, fmt.Errorf("read csv: %w", err)
		}
		// Row numbers are file lines so users can find them in a spreadsheet.
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		res.TotalRows++

		row, rowErrs := parseRecord(record, line, cols, m.dateLayout(), amountFormat, defaultCurrency)
		if len(rowErrs) > 0 {
			res.InvalidRows++
			for _, e := range rowErrs {
				res.addError(e)
			}
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// Preview parses r and keeps only the first limit valid rows.
func Preview(r io.Reader, m Mapping, limit int) (Result, error) {
	res, err := Parse(r, m)
	if err != nil {
		return res, err
	}
	if limit > 0 && len(res.Rows) > limit {
		res.Rows = res.Rows[:limit]
	}
	return res, nil
}

func (r *Result) addError(e core.ImportRowError) {
	if len(r.Errors) < maxRowErrors {
		r.Errors = append(r.Errors, e)
	}
}

// detectDelimiter picks the most frequent of ',', ';' and tab on the header
// line without consuming it.
func detectDelimiter(br *bufio.Reader) (rune, error) {
	peek, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(peek, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best, nil
}

func resolveColumns(header []string, m Mapping) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var fe core.FieldErrors
	lookup := func(field, name string, required bool) int {
		name = strings.TrimSpace(name)
		if name == "" {
			if required {
				fe.Add("mapping."+field, field+" column is required")
			}
			return -1
		}
		i, ok := index[strings.ToLower(name)]
		if !ok {
			fe.Add("mapping."+field, fmt.Sprintf("column %q not found in header", name))
			return -1
		}
		return i
	}

	cols := columns{
		date:         lookup("date", m.Date, true),
		amount:       lookup("amount", m.Amount, true),
		direction:    lookup("direction", m.Direction, false),
		currency:     lookup("currency", m.Currency, false),
		counterparty: lookup("counterparty", m.Counterparty, false),
		description:  lookup("description", m.Description, false),
		category:     lookup("category", m.Category, false),
	}
	return cols, fe.Err("column mapping does not match the file")
}

func parseRecord(record []string, line int, cols columns, layout string, format core.AmountFormat, defaultCurrency string) (Row, []core.ImportRowError) {
	row := Row{Line: line}
	var errs []core.ImportRowError
	fail := func(field, msg string) {
		errs = append(errs, core.ImportRowError{Row: line, Field: field, Message: msg})
	}

	if v := cell(record, cols.date); v == "" {
		fail("date", "date is required")
	} else if d, err := core.ParseDate(v, layout); err != nil {
		fail("date", err.Error())
	} else {
		row.DueDate = d
	}

	var cents int64
	amountOK := false
	if v := cell(record, cols.amount); v == "" {
		fail("amount", "amount is required")
	} else if c, err := core.ParseAmount(v, format); err != nil {
		fail("amount", err.Error())
	} else {
		cents, amountOK = c, true
	}

	switch v := cell(record, cols.direction); {
	case cols.direction < 0 || v == "":
		if cents < 0 {
			row.Direction = core.Outflow
		} else {
			row.Direction = core.Inflow
		}
	default:
		d, err := core.ParseDirection(v)
		if err != nil {
			fail("direction", err.Error())
		}
		row.Direction = d
	}
	if amountOK {
		row.Amount = core.Money{Cents: cents}
		if row.Direction != core.Initial {
			row.Amount = row.Amount.Abs()
		}
	}

	currency := cell(record, cols.currency)
	if currency == "" {
		currency = defaultCurrency
	}
	if c, err := core.NormalizeCurrency(currency); err != nil {
		fail("currency", err.Error())
	} else {
		row.Currency = c
	}

	row.Counterparty = cell(record, cols.counterparty)
	row.Description = cell(record, cols.description)
	row.Category = cell(record, cols.category)
	for _, f := range []struct{ name, value string }{
		{"counterparty", row.Counterparty},
		{"description", row.Description},
		{"category", row.Category},
	} {
		if len(f.value) > maxTextLength {
			fail(f.name, fmt.Sprintf("%s must be at most %d characters", f.name, maxTextLength))
		}
	}
	return row, errs
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
