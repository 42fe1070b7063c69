package sheets

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTabTitle(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		want     string
	}{
		{"plain", "Q1 plan", "Q1 plan - Weekly Summary"},
		{"quotes and bangs removed", "Bob's !plan", "Bobs plan - Weekly Summary"},
		{"blank falls back", "   ", "Scenario - Weekly Summary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TabTitle(tt.scenario, "Weekly Summary"); got != tt.want {
				t.Errorf("TabTitle(%q) = %q, want %q", tt.scenario, got, tt.want)
			}
		})
	}
}

func TestTabTitleTruncatesLongNames(t *testing.T) {
	got := TabTitle(strings.Repeat("ż", 150), "Transactions")
	if n := utf8.RuneCountInString(got); n > 100 {
		t.Fatalf("title has %d runes, want at most 100", n)
	}
	if !strings.HasSuffix(got, " - Transactions") {
		t.Errorf("title %q lost its table suffix", got)
	}
}
