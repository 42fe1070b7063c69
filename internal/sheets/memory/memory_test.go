package memory

import (
	"context"
	"errors"
	"testing"

	"cashplan/internal/core"
	"cashplan/internal/export"
)

func sample() export.Data {
	start := core.NewDate(2024, 1, 1)
	return export.Data{
		Scenario: core.Scenario{ID: "sc-1", Name: "Base", StartDate: start, EndDate: start.AddDays(13)},
		Weeks: core.BuildWeeklySummary(start, start.AddDays(13), []core.WeeklyAggregateRow{
			{WeekIndex: 0, Direction: core.Initial, FlowID: "ib", Amount: core.Money{Cents: 5000}, ItemCount: 1, Rank: 1},
		}),
		Balance: []core.BalancePoint{{Date: start, Initial: core.Money{Cents: 5000}, Net: core.Money{Cents: 5000}, Balance: core.Money{Cents: 5000}}},
	}
}

func TestStore_WriteSnapshot(t *testing.T) {
	s := New()
	ref, err := s.WriteSnapshot(context.Background(), sample())
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	got := s.Snapshots()
	if len(got) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(got))
	}
	if got[0].ScenarioID != "sc-1" {
		t.Errorf("scenario id = %q", got[0].ScenarioID)
	}
	for _, tab := range []string{"Base - Weekly Summary", "Base - Transactions", "Base - Running Balance"} {
		if _, ok := got[0].Tabs[tab]; !ok {
			t.Errorf("missing tab %q", tab)
		}
	}
	if rows := got[0].Tabs["Base - Running Balance"]; len(rows) != 2 {
		t.Errorf("balance tab has %d rows, want header plus one point", len(rows))
	}
}

func TestStore_FailWith(t *testing.T) {
	s := New()
	boom := errors.New("quota exceeded")
	s.FailWith(boom)
	if _, err := s.WriteSnapshot(context.Background(), sample()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	s.FailWith(nil)
	if _, err := s.WriteSnapshot(context.Background(), sample()); err != nil {
		t.Fatalf("WriteSnapshot after reset: %v", err)
	}
	if n := len(s.Snapshots()); n != 1 {
		t.Errorf("got %d snapshots, want 1", n)
	}
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().WriteSnapshot(ctx, sample()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
