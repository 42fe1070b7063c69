package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in     string
		format AmountFormat
		out    int64
		ok     bool
	}{
		{"1", AmountAuto, 100, true},
		{"1,234.56", AmountEN, 123456, true},
		{"1,234.56", AmountAuto, 123456, true},
		{"1 234,56", AmountPL, 123456, true},
		{"1.234,56", AmountPL, 123456, true},
		{"1.234,56", AmountAuto, 123456, true},
		{"1 234,56", AmountAuto, 123456, true},
		{"1,234", AmountAuto, 123400, true},
		{"1,5", AmountAuto, 150, true},
		{"1.234.567", AmountAuto, 123456700, true},
		{"(12.50)", AmountAuto, -1250, true},
		{"-3,5 zł", AmountAuto, -350, true},
		{"−12.00", AmountAuto, -1200, true},
		{"€1,234.56", AmountAuto, 123456, true},
		{"PLN 1 234,56", AmountAuto, 123456, true},
		{"-$12", AmountAuto, -1200, true},
		{"+7.10", AmountEN, 710, true},
		{"1'234.50", AmountAuto, 123450, true},
		{"1.005", AmountEN, 101, true}, // half away from zero
		{"-1.005", AmountEN, -101, true},
		{"1.234", AmountAuto, 123400, true},
		{"0.125", AmountAuto, 13, true},
		{"12,345,678.90", AmountEN, 1234567890, true},
		{"1 234 567,89", AmountPL, 123456789, true},
		{"12-", AmountAuto, -1200, true},
		{"1 234,56-", AmountPL, -123456, true},
		{"12,50 zł-", AmountAuto, -1250, true},
		{".5", AmountEN, 50, true},
		{"0", AmountAuto, 0, true},
		{"", AmountAuto, 0, false},
		{"abc", AmountAuto, 0, false},
		{"12.", AmountEN, 0, false},
		{"1.234.56", AmountEN, 0, false},
		{"1,2,3", AmountPL, 0, false},
		{"-12-", AmountAuto, 0, false},
		{"(12)-", AmountAuto, 0, false},
		{"(12.50", AmountAuto, 0, false},
		{"1,23", AmountEN, 0, false},
		{"1.23", AmountPL, 0, false},
		{"1234.56", AmountPL, 0, false},
		{"1,234,5", AmountEN, 0, false},
		{"1234,567.00", AmountEN, 0, false},
		{"1 234.567,89", AmountPL, 0, false},
		{"9999999999999999", AmountAuto, 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, tc.format)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q (%s) expected %d, got %d (err=%v)", tc.in, tc.format, tc.out, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q (%s) expected error, got %d", tc.in, tc.format, got)
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestParseAmountFormat(t *testing.T) {
	for in, want := range map[string]AmountFormat{"": AmountAuto, "AUTO": AmountAuto, "en": AmountEN, " pl ": AmountPL} {
		got, err := ParseAmountFormat(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseAmountFormat("de"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestMoneyMajor(t *testing.T) {
	cases := map[int64]string{0: "0.00", 1: "0.01", 123456: "1234.56", -1250: "-12.50"}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).Major(); got != want {
			t.Fatalf("%d expected %s, got %s", cents, want, got)
		}
	}
	if f := (Money{Cents: 123456}).Float(); f != 1234.56 {
		t.Fatalf("expected 1234.56, got %v", f)
	}
}
