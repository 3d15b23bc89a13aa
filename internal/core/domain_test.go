package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateDaysUntil(t *testing.T) {
	today := NewDate(2025, 3, 1)
	if got := today.DaysUntil(today.AddDays(10)); got != 10 {
		t.Fatalf("DaysUntil = %d, want 10", got)
	}
	if got := today.DaysUntil(today.AddDays(-3)); got != -3 {
		t.Fatalf("DaysUntil = %d, want -3", got)
	}
	// crosses the end of february in a non-leap year
	if got := NewDate(2025, 2, 27).DaysUntil(NewDate(2025, 3, 2)); got != 3 {
		t.Fatalf("DaysUntil = %d, want 3", got)
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2025-04-05"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.D != NewDate(2025, 4, 5) {
		t.Fatalf("got %v", v.D)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2025-04-05"}` {
		t.Fatalf("got %s", b)
	}
	if err := json.Unmarshal([]byte(`{"d":"05/04/2025"}`), &v); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCadenceValidate(t *testing.T) {
	for _, c := range []Cadence{NoCadence, Daily, Weekly, BiWeekly, Monthly, Quarterly, Annually} {
		if err := c.Validate(); err != nil {
			t.Errorf("%q: unexpected error %v", c, err)
		}
	}
	for _, c := range []Cadence{"fortnightly", "yearly", "Monthly"} {
		if err := c.Validate(); !errors.Is(err, ErrUnknownCadence) {
			t.Errorf("%q: expected ErrUnknownCadence, got %v", c, err)
		}
	}
}

func TestTransactionEffect(t *testing.T) {
	amt := decimal.RequireFromString("12.50")
	exp := Transaction{Kind: KindExpense, Amount: amt}
	inc := Transaction{Kind: KindIncome, Amount: amt}
	if !exp.Effect().Equal(amt.Neg()) {
		t.Fatalf("expense effect = %s", exp.Effect())
	}
	if !inc.Effect().Equal(amt) {
		t.Fatalf("income effect = %s", inc.Effect())
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Kind:      KindExpense,
		AccountID: 1,
		Title:     "Rent",
		Amount:    decimal.NewFromInt(900),
		Date:      NewDate(2025, 1, 1),
		Category:  "Housing",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"empty title", func(tx *Transaction) { tx.Title = "  " }, ErrEmptyTitle},
		{"long title", func(tx *Transaction) { tx.Title = strings.Repeat("a", MaxTitleLength+1) }, ErrTitleTooLong},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-3) }, ErrInvalidAmount},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{"empty category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"unknown cadence", func(tx *Transaction) { tx.Recurrence = "yearly" }, ErrUnknownCadence},
		{"recurring income", func(tx *Transaction) { tx.Kind = KindIncome; tx.Recurrence = Monthly }, ErrIncomeRecurrence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := good
			tt.mutate(&tx)
			err := tx.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
			if !IsValidation(err) {
				t.Fatalf("IsValidation(%v) = false", err)
			}
		})
	}
}

func TestGoalValidate(t *testing.T) {
	g := Goal{Name: "Trip", Amount: decimal.NewFromInt(1000), Date: NewDate(2026, 1, 1), Progress: decimal.RequireFromString("0.5")}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	g.Progress = decimal.RequireFromString("1.01")
	if err := g.Validate(); !errors.Is(err, ErrInvalidProgress) {
		t.Fatalf("expected ErrInvalidProgress, got %v", err)
	}
}

func TestIsValidationLookupErrors(t *testing.T) {
	if IsValidation(ErrAccountNotFound) || IsValidation(ErrTransactionNotFound) {
		t.Fatal("lookup errors are not validation errors")
	}
}
