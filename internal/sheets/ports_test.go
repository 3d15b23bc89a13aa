package sheets

import (
	"testing"
	"time"

	"pocketbook/internal/amqp"
)

func TestRowFromEvent(t *testing.T) {
	e := amqp.NewLedgerEvent(amqp.EventTransactionCreated, 4)
	e.Timestamp = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	e.AccountID = 9
	e.TransactionID = 21
	e.Kind = "expense"
	e.Title = "Groceries"
	e.Amount = "1234.5"
	e.Balance = "-1234.50"
	e.Date = "2024-03-15"

	row := RowFromEvent(e, "USD")

	if row.Amount != "$1,234.50" {
		t.Errorf("Amount = %q, want $1,234.50", row.Amount)
	}
	if row.Balance != "-$1,234.50" {
		t.Errorf("Balance = %q, want -$1,234.50", row.Balance)
	}
	if row.Timestamp != "2024-03-15 10:30:00" {
		t.Errorf("Timestamp = %q", row.Timestamp)
	}

	values := row.Values()
	if len(values) != len(Header) {
		t.Fatalf("Values() has %d columns, Header has %d", len(values), len(Header))
	}
	if values[3] != "4" || values[4] != "9" || values[5] != "21" {
		t.Errorf("id columns = %v %v %v", values[3], values[4], values[5])
	}
}

func TestRowFromEvent_SpendWarning(t *testing.T) {
	e := amqp.NewLedgerEvent(amqp.EventSpendWarning, 4)
	e.Amount = "not-a-number"

	row := RowFromEvent(e, "ZZZ")
	values := row.Values()

	if row.Amount != "not-a-number" {
		t.Errorf("Amount = %q, want raw value", row.Amount)
	}
	if values[4] != "" || values[5] != "" {
		t.Errorf("empty ids rendered as %q %q", values[4], values[5])
	}
}
