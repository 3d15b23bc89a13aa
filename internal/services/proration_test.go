package services

import (
	"errors"
	"testing"

	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProrate(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		cadence core.Cadence
		want    string
	}{
		{"daily", "3", core.Daily, "42"},
		{"weekly", "140", core.Weekly, "280"},
		{"bi-weekly", "95.50", core.BiWeekly, "95.5"},
		{"monthly", "1200", core.Monthly, "560"},
		{"monthly rent", "300", core.Monthly, "140"},
		{"quarterly", "910", core.Quarterly, "140"},
		{"annually", "365", core.Annually, "14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prorate(d(tt.amount), tt.cadence)
			if err != nil {
				t.Fatalf("Prorate() error = %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("Prorate(%s, %s) = %s, want %s", tt.amount, tt.cadence, got, tt.want)
			}
		})
	}
}

func TestProrateKeepsFraction(t *testing.T) {
	got, err := Prorate(d("100"), core.Monthly)
	if err != nil {
		t.Fatalf("Prorate() error = %v", err)
	}
	// 1400 / 30 = 46.666...
	if got.Round(2).String() != "46.67" {
		t.Fatalf("Prorate(100, monthly) = %s", got)
	}
	if got.Equal(d("46")) {
		t.Fatal("division truncated to an integer")
	}
}

func TestProrateUnknownCadence(t *testing.T) {
	for _, c := range []core.Cadence{"fortnightly", "", "yearly"} {
		if _, err := Prorate(d("10"), c); !errors.Is(err, core.ErrUnknownCadence) {
			t.Errorf("Prorate(%q) error = %v, want ErrUnknownCadence", c, err)
		}
	}
}

func TestProrateAll(t *testing.T) {
	total, err := ProrateAll([]core.Transaction{
		{Title: "Rent", Amount: d("300"), Recurrence: core.Monthly},
		{Title: "Gym", Amount: d("10"), Recurrence: core.Weekly},
	})
	if err != nil {
		t.Fatalf("ProrateAll() error = %v", err)
	}
	if !total.Equal(d("160")) {
		t.Fatalf("ProrateAll() = %s, want 160", total)
	}

	_, err = ProrateAll([]core.Transaction{{Title: "Odd", Amount: d("1"), Recurrence: "sometimes"}})
	if !errors.Is(err, core.ErrUnknownCadence) {
		t.Fatalf("ProrateAll() error = %v, want ErrUnknownCadence", err)
	}
}

func TestGoalContribution(t *testing.T) {
	today := core.NewDate(2025, 6, 1)
	tests := []struct {
		name string
		goal core.Goal
		want string
	}{
		{
			name: "half saved, ten days left",
			goal: core.Goal{Amount: d("1000"), Progress: d("0.5"), Date: today.AddDays(10)},
			want: "700",
		},
		{
			name: "past due",
			goal: core.Goal{Amount: d("1000"), Progress: d("0.5"), Date: today.AddDays(-1)},
			want: "0",
		},
		{
			name: "due today",
			goal: core.Goal{Amount: d("1000"), Date: today},
			want: "0",
		},
		{
			name: "completed",
			goal: core.Goal{Amount: d("1000"), Date: today.AddDays(10), Completed: true},
			want: "0",
		},
		{
			name: "fully saved",
			goal: core.Goal{Amount: d("1000"), Progress: d("1"), Date: today.AddDays(10)},
			want: "0",
		},
		{
			name: "far away",
			goal: core.Goal{Amount: d("2800"), Date: today.AddDays(280)},
			want: "140",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GoalContribution(tt.goal, today); !got.Equal(d(tt.want)) {
				t.Errorf("GoalContribution() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTotalGoalContribution(t *testing.T) {
	today := core.NewDate(2025, 6, 1)
	goals := []core.Goal{
		{Amount: d("1000"), Progress: d("0.5"), Date: today.AddDays(10)},
		{Amount: d("500"), Date: today.AddDays(-5)},
		{Amount: d("140"), Date: today.AddDays(14)},
	}
	if got := TotalGoalContribution(goals, today); !got.Equal(d("840")) {
		t.Fatalf("TotalGoalContribution() = %s, want 840", got)
	}
	if got := TotalGoalContribution(nil, today); !got.IsZero() {
		t.Fatalf("TotalGoalContribution(nil) = %s", got)
	}
}
