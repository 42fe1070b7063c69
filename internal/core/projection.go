package core

import "sort"

// TopFlowsPerWeek is how many transactions each weekly bucket lists by name.
const TopFlowsPerWeek = 5

type (
	// WeeklyAggregateRow is one row of the weekly aggregate view: either a
	// ranked top transaction or the "other" remainder of a week/direction.
	WeeklyAggregateRow struct {
		WeekIndex    int
		Direction    Direction
		FlowID       string
		Counterparty string
		Description  string
		Date         Date
		Amount       Money
		ItemCount    int
		Rank         int
		IsOther      bool
	}

	FlowItem struct {
		FlowID       string
		Counterparty string
		Description  string
		Date         Date
		Amount       Money
	}

	// Bucket groups the flows of one direction within a week.
	Bucket struct {
		Top        []FlowItem
		Other      Money
		OtherCount int
		Total      Money
		Count      int
	}

	WeekSummary struct {
		Index     int
		Label     string
		StartDate Date
		Initial   Bucket
		Inflow    Bucket
		Outflow   Bucket
		Net       Money
	}

	BalancePoint struct {
		Date    Date
		Initial Money
		Inflow  Money
		Outflow Money
		Net     Money
		Balance Money
	}

	// ScenarioFlow is a transaction as seen through a scenario, with the
	// override applied.
	ScenarioFlow struct {
		FlowID          string
		Direction       Direction
		Currency        string
		Counterparty    string
		Description     string
		Category        string
		OriginalDate    Date
		EffectiveDate   Date
		OriginalAmount  Money
		EffectiveAmount Money
		Overridden      bool
		WeekIndex       int
	}
)

func (b *Bucket) add(row WeeklyAggregateRow) {
	count := row.ItemCount
	if count == 0 {
		count = 1
	}
	b.Total = b.Total.Add(row.Amount)
	b.Count += count
	if row.IsOther {
		b.Other = b.Other.Add(row.Amount)
		b.OtherCount += count
		return
	}
	b.Top = append(b.Top, FlowItem{
		FlowID:       row.FlowID,
		Counterparty: row.Counterparty,
		Description:  row.Description,
		Date:         row.Date,
		Amount:       row.Amount,
	})
}

// BuildWeeklySummary folds aggregate rows into one entry per week, from the
// IB bucket (week 0) through the last week of the range. Weeks without
// flows are present with empty buckets.
func BuildWeeklySummary(start, end Date, rows []WeeklyAggregateRow) []WeekSummary {
	last := WeekIndex(start, end)
	for _, r := range rows {
		if r.WeekIndex > last {
			last = r.WeekIndex
		}
	}

	sorted := make([]WeeklyAggregateRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WeekIndex != sorted[j].WeekIndex {
			return sorted[i].WeekIndex < sorted[j].WeekIndex
		}
		return sorted[i].Rank < sorted[j].Rank
	})

	weeks := make([]WeekSummary, last+1)
	for i := range weeks {
		weeks[i] = WeekSummary{
			Index:     i,
			Label:     WeekLabel(i),
			StartDate: WeekStartDate(start, i),
		}
	}
	for _, r := range sorted {
		if r.WeekIndex < 0 {
			continue
		}
		w := &weeks[r.WeekIndex]
		switch r.Direction {
		case Initial:
			w.Initial.add(r)
		case Inflow:
			w.Inflow.add(r)
		case Outflow:
			w.Outflow.add(r)
		}
	}
	for i := range weeks {
		w := &weeks[i]
		w.Net = Money{Cents: w.Initial.Total.Cents + w.Inflow.Total.Cents - w.Outflow.Total.Cents}
	}
	return weeks
}
