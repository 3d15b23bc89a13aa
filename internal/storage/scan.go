package storage

import (
	"database/sql"
	"fmt"
	"time"

	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

// dbDate scans a calendar date stored as TEXT (sqlite) or DATE (postgres).
type dbDate struct {
	core.Date
}

func (d *dbDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Date = core.Date{}
		return nil
	case time.Time:
		d.Date = core.DateOf(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (d *dbDate) parse(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	parsed, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	d.Date = parsed
	return nil
}

// dateArg is the bind value for date columns in both dialects.
func dateArg(d core.Date) string {
	return d.String()
}

// amountArg normalizes a decimal so equal amounts compare equal as TEXT.
func amountArg(d decimal.Decimal) string {
	return d.StringFixed(core.MoneyScale)
}

func nullAmountArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return amountArg(d.Decimal)
}

func cadenceArg(c core.Cadence) any {
	if !c.IsRecurring() {
		return nil
	}
	return string(c)
}

// refArg stores an empty import ref as NULL so manual rows never collide.
func refArg(ref string) any {
	if ref == "" {
		return nil
	}
	return ref
}

type rowScanner interface {
	Scan(dest ...any) error
}

const accountColumns = "id, user_id, name, type, balance, credit_limit, last_updated"

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a       core.Account
		updated dbDate
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.CreditLimit, &updated); err != nil {
		return core.Account{}, err
	}
	a.LastUpdated = updated.Date
	return a, nil
}

const transactionColumns = "t.id, t.kind, t.account_id, t.title, t.amount, t.date, t.category, t.recurrence"

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		kind       string
		date       dbDate
		recurrence sql.NullString
	)
	if err := row.Scan(&t.ID, &kind, &t.AccountID, &t.Title, &t.Amount, &date, &t.Category, &recurrence); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	t.Date = date.Date
	t.Recurrence = core.Cadence(recurrence.String)
	return t, nil
}

const goalColumns = "id, user_id, name, description, amount, date, completed, progress"

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g    core.Goal
		date dbDate
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.Amount, &date, &g.Completed, &g.Progress); err != nil {
		return core.Goal{}, err
	}
	g.Date = date.Date
	return g, nil
}

const userColumns = "id, email, name, spend_warning, savings_percent"

func scanUser(row rowScanner) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.SpendWarning, &u.SavingsPercent); err != nil {
		return core.User{}, err
	}
	return u, nil
}
