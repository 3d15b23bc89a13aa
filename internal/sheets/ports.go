package sheets

import (
	"context"
	"strconv"

	"pocketbook/internal/amqp"
	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

// Ports for outbound adapters.
type (
	// LedgerMirror appends one row per ledger event to an external sheet.
	LedgerMirror interface {
		AppendRow(ctx context.Context, row EventRow) (rowRef string, err error)
	}
)

// Header is the column layout every mirror writes.
var Header = []string{
	"Event ID", "Timestamp", "Type", "User", "Account", "Transaction",
	"Kind", "Title", "Category", "Amount", "Balance", "Date", "Detail",
}

// EventRow is a ledger event flattened into sheet columns.
type EventRow struct {
	EventID       string
	Timestamp     string
	Type          string
	UserID        int64
	AccountID     int64
	TransactionID int64
	Kind          string
	Title         string
	Category      string
	Amount        string
	Balance       string
	Date          string
	Detail        string
}

// RowFromEvent flattens e. Amounts are rendered in currency; values that do
// not parse as decimals are copied through unchanged.
func RowFromEvent(e *amqp.LedgerEvent, currency string) EventRow {
	return EventRow{
		EventID:       e.ID,
		Timestamp:     e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		Type:          e.Type,
		UserID:        e.UserID,
		AccountID:     e.AccountID,
		TransactionID: e.TransactionID,
		Kind:          e.Kind,
		Title:         e.Title,
		Category:      e.Category,
		Amount:        formatAmount(e.Amount, currency),
		Balance:       formatAmount(e.Balance, currency),
		Date:          e.Date,
		Detail:        e.Detail,
	}
}

func formatAmount(s, currency string) string {
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return core.FormatMoney(d, currency)
}

// Values returns the row in Header order.
func (r EventRow) Values() []any {
	return []any{
		r.EventID, r.Timestamp, r.Type,
		optionalID(r.UserID), optionalID(r.AccountID), optionalID(r.TransactionID),
		r.Kind, r.Title, r.Category, r.Amount, r.Balance, r.Date, r.Detail,
	}
}

func optionalID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
