// Package csvimport turns user-supplied CSV files into transactions using a
// column mapping chosen by the user.
package csvimport

import (
	"errors"
	"strings"

	"cashplan/internal/core"
)

var errInvalidDelimiter = errors.New("delimiter must be ',', ';' or tab")

// DateLayouts lists the accepted date layouts.
var DateLayouts = []string{core.DateLayout, "02.01.2006", "02/01/2006", "01/02/2006"}

// Mapping names the CSV header for each transaction field. Date and Amount
// are required; the rest are optional.
type Mapping struct {
	Date            string `json:"date"`
	Amount          string `json:"amount"`
	Direction       string `json:"direction,omitempty"`
	Currency        string `json:"currency,omitempty"`
	Counterparty    string `json:"counterparty,omitempty"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category,omitempty"`
	DateFormat      string `json:"date_format,omitempty"`
	AmountFormat    string `json:"amount_format,omitempty"`
	DefaultCurrency string `json:"default_currency,omitempty"`
	Delimiter       string `json:"delimiter,omitempty"`
}

// Validate checks the options that do not depend on the file contents.
func (m Mapping) Validate() error {
	var fe core.FieldErrors
	if strings.TrimSpace(m.Date) == "" {
		fe.Add("mapping.date", "date column is required")
	}
	if strings.TrimSpace(m.Amount) == "" {
		fe.Add("mapping.amount", "amount column is required")
	}
	if m.DateFormat != "" && !knownLayout(m.DateFormat) {
		fe.Add("mapping.date_format", "unsupported date format "+m.DateFormat)
	}
	if _, err := core.ParseAmountFormat(m.AmountFormat); err != nil {
		fe.Add("mapping.amount_format", err.Error())
	}
	if m.DefaultCurrency != "" {
		if _, err := core.NormalizeCurrency(m.DefaultCurrency); err != nil {
			fe.Add("mapping.default_currency", err.Error())
		}
	}
	if m.Currency == "" && m.DefaultCurrency == "" {
		fe.Add("mapping.default_currency", "default currency is required when no currency column is mapped")
	}
	if _, err := m.delimiter(); err != nil {
		fe.Add("mapping.delimiter", err.Error())
	}
	return fe.Err("invalid column mapping")
}

func (m Mapping) dateLayout() string {
	if m.DateFormat == "" {
		return core.DateLayout
	}
	return m.DateFormat
}

func knownLayout(layout string) bool {
	for _, l := range DateLayouts {
		if l == layout {
			return true
		}
	}
	return false
}

// delimiter returns the configured delimiter, or 0 for auto-detection.
func (m Mapping) delimiter() (rune, error) {
	switch m.Delimiter {
	case "", "auto":
		return 0, nil
	case ",":
		return ',', nil
	case ";":
		return ';', nil
	case "\t", "\\t", "tab":
		return '\t', nil
	}
	return 0, errInvalidDelimiter
}
