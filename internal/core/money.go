// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// written in English or Polish conventions and converting between cents and
// major-unit representations.
package core

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountFormat selects the decimal/thousands convention of an amount string.
type AmountFormat string

const (
	// AmountAuto guesses the convention from the separators present.
	AmountAuto AmountFormat = "auto"
	// AmountEN uses "," for thousands and "." for decimals (1,234.56).
	AmountEN AmountFormat = "en"
	// AmountPL uses " " or "." for thousands and "," for decimals (1 234,56).
	AmountPL AmountFormat = "pl"
)

// maxAbsCents bounds parsed amounts well below int64 overflow.
const maxAbsCents = int64(1e15)

var plainNumber = regexp.MustCompile(`^(\d+(\.\d+)?|\.\d+)$`)

// ParseAmountFormat validates a format name; empty means auto.
func ParseAmountFormat(s string) (AmountFormat, error) {
	switch AmountFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", AmountAuto:
		return AmountAuto, nil
	case AmountEN:
		return AmountEN, nil
	case AmountPL:
		return AmountPL, nil
	}
	return "", fmt.Errorf("unknown amount format %q (expected auto, en or pl)", s)
}

// ParseAmount converts a human-written amount to signed cents.
//
// It accepts English (1,234.56) and Polish (1 234,56 or 1.234,56) notations,
// a leading or trailing minus, parenthesis-negative notation "(123.45)", and
// ignores currency symbols or codes around the number. Thousands separators
// must split the integer part into groups of three digits. Rounding is half
// away from zero on the third decimal place.
//
// Examples:
//
//	ParseAmount("1,234.56", AmountEN) -> 123456
//	ParseAmount("1 234,56", AmountPL) -> 123456
//	ParseAmount("(12.50)", AmountAuto) -> -1250
//	ParseAmount("-3,5 zł", AmountAuto) -> -350
//	ParseAmount("1 234,56-", AmountPL) -> -123456
func ParseAmount(s string, format AmountFormat) (int64, error) {
	raw := s
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\u2009':
			return ' '
		case '\u2212':
			return '-'
		}
		return r
	}, s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return !(unicode.IsDigit(r) || strings.ContainsRune("-+.,()", r))
	})
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	s, negative, ok := splitSign(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q has more than one sign", ErrInvalidAmount, raw)
	}
	// Currency markers may sit between the sign and the number: "-$12".
	s = strings.TrimFunc(s, func(r rune) bool {
		return !(unicode.IsDigit(r) || strings.ContainsRune("-+.,()", r))
	})

	normalized, err := normalizeSeparators(s, format)
	if err != nil || !plainNumber.MatchString(normalized) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThanOrEqual(decimal.NewFromInt(maxAbsCents)) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, raw)
	}
	v := cents.IntPart()
	if negative {
		v = -v
	}
	return v, nil
}

// splitSign strips one sign marker from s: surrounding parentheses, a
// leading "-" or "+", or a trailing "-" as written by some bank exports.
// It reports false when more than one marker is present.
func splitSign(s string) (string, bool, bool) {
	markers := 0
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		markers++
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		markers++
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "+"):
		markers++
		s = strings.TrimSpace(s[1:])
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		markers++
		s = strings.TrimSpace(s[:len(s)-1])
	}
	return s, negative, markers <= 1
}

// normalizeSeparators rewrites s so that "." is the only decimal separator
// and no thousands separators remain. Thousands separators are only
// accepted between groups of exactly three digits.
func normalizeSeparators(s string, format AmountFormat) (string, error) {
	if format == AmountAuto {
		format = guessFormat(s)
	}
	decimalSep, groupSeps := ".", ", '"
	if format == AmountPL {
		decimalSep, groupSeps = ",", ". '"
	}
	if strings.Count(s, decimalSep) > 1 {
		return "", ErrInvalidAmount
	}
	intPart, frac, hasFrac := strings.Cut(s, decimalSep)
	intPart, err := ungroup(intPart, groupSeps)
	if err != nil {
		return "", err
	}
	if hasFrac {
		return intPart + "." + frac, nil
	}
	return intPart, nil
}

// ungroup removes thousands separators from the integer part. Only one
// separator kind may be used and every group after the first must have
// exactly three digits.
func ungroup(s, seps string) (string, error) {
	i := strings.IndexAny(s, seps)
	if i < 0 {
		return s, nil
	}
	sep := string(s[i])
	groups := strings.Split(s, sep)
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return "", ErrInvalidAmount
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", ErrInvalidAmount
		}
	}
	return strings.Join(groups, ""), nil
}

// guessFormat picks a convention for an amount written without one. When
// both "," and "." appear the last one is decimal. A repeated separator, or a
// single one between a leading group of up to three digits and exactly three
// more, is a thousands separator.
func guessFormat(s string) AmountFormat {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return AmountPL
		}
		return AmountEN
	case commas > 1:
		return AmountEN
	case dots > 1:
		return AmountPL
	case commas == 1:
		if thousandsOnly(s, ",") {
			return AmountEN
		}
		return AmountPL
	case dots == 1:
		if thousandsOnly(s, ".") {
			return AmountPL
		}
	}
	return AmountEN
}

func thousandsOnly(s, sep string) bool {
	lead, rest, _ := strings.Cut(s, sep)
	if len(rest) != 3 || len(lead) == 0 || len(lead) > 3 || lead[0] == '0' {
		return false
	}
	return strings.Trim(lead+rest, "0123456789") == ""
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Major returns the amount in major units as a fixed two-decimal string.
func (m Money) Major() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount in major units for spreadsheet cells.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) IsNegative() bool {
	return m.Cents < 0
}
