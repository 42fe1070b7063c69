package csvimport

import (
	"strings"
	"testing"

	"cashplan/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnglishFileWithDirection(t *testing.T) {
	data := "Date,Amount,Type,Currency,Payee,Memo\n" +
		"2024-01-01,\"10,000.00\",IB,pln,,Opening\n" +
		"2024-01-03,\"1,234.56\",inflow,PLN,Client A,Invoice 7\n" +
		"2024-01-04,(250.00),OUTFLOW,PLN,Landlord,Rent\n" +
		"\n" +
		"2024-01-05,abc,OUTFLOW,PLN,Bad,Row\n"

	res, err := Parse(strings.NewReader(data), Mapping{
		Date: "date", Amount: "Amount", Direction: "Type", Currency: "Currency",
		Counterparty: "Payee", Description: "Memo", AmountFormat: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, ',', res.Delimiter)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, 1, res.InvalidRows)
	require.Len(t, res.Rows, 3)

	assert.Equal(t, core.Initial, res.Rows[0].Direction)
	assert.Equal(t, int64(1000000), res.Rows[0].Amount.Cents)
	assert.Equal(t, "PLN", res.Rows[0].Currency)

	assert.Equal(t, core.Inflow, res.Rows[1].Direction)
	assert.Equal(t, int64(123456), res.Rows[1].Amount.Cents)
	assert.Equal(t, "Client A", res.Rows[1].Counterparty)

	assert.Equal(t, core.Outflow, res.Rows[2].Direction)
	assert.Equal(t, int64(25000), res.Rows[2].Amount.Cents, "outflows store the absolute value")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, core.ImportRowError{Row: 6, Field: "amount", Message: res.Errors[0].Message}, res.Errors[0])
}

func TestParsePolishFileInfersDirectionFromSign(t *testing.T) {
	data := "Data;Kwota;Kontrahent\n" +
		"31.01.2024;1 234,56;Klient\n" +
		"01.02.2024;-99,90 zł;Sklep\n"

	res, err := Parse(strings.NewReader(data), Mapping{
		Date: "Data", Amount: "Kwota", Counterparty: "Kontrahent",
		DateFormat: "02.01.2006", DefaultCurrency: "pln",
	})
	require.NoError(t, err)

	assert.Equal(t, ';', res.Delimiter)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, core.Inflow, res.Rows[0].Direction)
	assert.Equal(t, int64(123456), res.Rows[0].Amount.Cents)
	assert.Equal(t, core.NewDate(2024, 1, 31), res.Rows[0].DueDate)

	assert.Equal(t, core.Outflow, res.Rows[1].Direction)
	assert.Equal(t, int64(9990), res.Rows[1].Amount.Cents)
	assert.Equal(t, "PLN", res.Rows[1].Currency)
}

func TestParseTrailingMinusAndGrouping(t *testing.T) {
	data := "date,amount\n" +
		"2024-01-02,\"1,250.00-\"\n" +
		"2024-01-03,\"1,23\"\n" +
		"2024-01-04,\"2,500.00\"\n"

	res, err := Parse(strings.NewReader(data), Mapping{Date: "date", Amount: "amount", AmountFormat: "en", DefaultCurrency: "PLN"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, core.Outflow, res.Rows[0].Direction)
	assert.Equal(t, int64(125000), res.Rows[0].Amount.Cents)
	assert.Equal(t, core.Inflow, res.Rows[1].Direction)
	assert.Equal(t, int64(250000), res.Rows[1].Amount.Cents)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, "amount", res.Errors[0].Field)
}

func TestParseNegativeInitialBalanceKeepsSign(t *testing.T) {
	data := "date\tamount\tdirection\n2024-01-01\t-500.00\tIB\n"
	res, err := Parse(strings.NewReader(data), Mapping{Date: "date", Amount: "amount", Direction: "direction", DefaultCurrency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, '\t', res.Delimiter)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(-50000), res.Rows[0].Amount.Cents)
}

func TestParseRowErrors(t *testing.T) {
	data := "date,amount,direction,currency\n" +
		"2024-13-01,1.00,INFLOW,PLN\n" +
		"2024-01-02,1.00,TRANSFER,PLN\n" +
		"2024-01-03,1.00,INFLOW,EURO\n" +
		",,INFLOW,PLN\n"

	res, err := Parse(strings.NewReader(data), Mapping{Date: "date", Amount: "amount", Direction: "direction", Currency: "currency"})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, 4, res.InvalidRows)

	fields := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"date", "direction", "currency", "date", "amount"}, fields)
	assert.Equal(t, 5, res.Errors[len(res.Errors)-1].Row)
}

func TestParseMappingErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n1,2\n"), Mapping{Date: "date", Amount: "amount", DefaultCurrency: "PLN"})
	require.Error(t, err)
	var ce *core.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindValidation, ce.Kind)
	assert.Len(t, ce.Details, 2)

	err = Mapping{Date: "d", Amount: "a"}.Validate()
	assert.True(t, core.IsKind(err, core.KindValidation), "default currency required without currency column")

	err = Mapping{Date: "d", Amount: "a", DefaultCurrency: "PLN", Delimiter: "|"}.Validate()
	assert.True(t, core.IsKind(err, core.KindValidation))

	err = Mapping{Date: "d", Amount: "a", DefaultCurrency: "PLN", DateFormat: "Jan 2"}.Validate()
	assert.True(t, core.IsKind(err, core.KindValidation))

	_, err = Parse(strings.NewReader(""), Mapping{Date: "d", Amount: "a", DefaultCurrency: "PLN"})
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestPreviewLimitsRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("\ufeffdate,amount\n")
	for i := 0; i < 30; i++ {
		b.WriteString("2024-01-01,1.00\n")
	}
	res, err := Preview(strings.NewReader(b.String()), Mapping{Date: "date", Amount: "amount", DefaultCurrency: "PLN"}, 10)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 10)
	assert.Equal(t, 30, res.TotalRows)
	assert.Equal(t, []string{"date", "amount"}, res.Headers)
}
