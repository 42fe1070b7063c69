package core

import (
	"fmt"
	"strconv"
)

// InitialBalanceWeek is the week index reserved for IB rows.
const InitialBalanceWeek = 0

// WeekIndex returns the 1-based week of d relative to start. Dates before
// start fall into non-positive weeks.
func WeekIndex(start, d Date) int {
	days := start.DaysUntil(d)
	if days < 0 {
		return -((-days+6)/7) + 1
	}
	return days/7 + 1
}

// WeekStartDate returns the first day of week n. Week 0 (IB) starts with
// the scenario.
func WeekStartDate(start Date, n int) Date {
	if n <= InitialBalanceWeek {
		return start
	}
	return start.AddDays((n - 1) * 7)
}

// WeekLabel returns "IB" for week 0 and "W<n>" otherwise.
func WeekLabel(n int) string {
	if n == InitialBalanceWeek {
		return "IB"
	}
	return "W" + strconv.Itoa(n)
}

// WeekLabelLong returns the label with the week start date, e.g. "W3 (2024-01-15)".
func WeekLabelLong(start Date, n int) string {
	if n == InitialBalanceWeek {
		return "Initial Balance"
	}
	return fmt.Sprintf("%s (%s)", WeekLabel(n), WeekStartDate(start, n))
}
