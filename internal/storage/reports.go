package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

// LatestPaycheck returns the user's most recent "Work" income. ok is false when
// the user has none.
func (s *Store) LatestPaycheck(ctx context.Context, userID int64) (core.Transaction, bool, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		"SELECT "+transactionColumns+" FROM transactions t JOIN accounts a ON a.id = t.account_id"+
			" WHERE a.user_id = ? AND t.kind = ? AND t.category = ?"+
			" ORDER BY t.date DESC, t.id DESC LIMIT 1"),
		userID, string(core.KindIncome), core.PaycheckCategory)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("latest paycheck: %w", err)
	}
	return t, true, nil
}

// RecurringExpenses returns the user's recurring expenses, one per distinct
// (title, amount, category).
func (s *Store) RecurringExpenses(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT t.title, t.amount, t.category, MIN(t.recurrence)"+
			" FROM transactions t JOIN accounts a ON a.id = t.account_id"+
			" WHERE a.user_id = ? AND t.kind = ? AND t.recurrence IS NOT NULL"+
			" GROUP BY t.title, t.amount, t.category"+
			" ORDER BY t.title"),
		userID, string(core.KindExpense))
	if err != nil {
		return nil, fmt.Errorf("recurring expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t := core.Transaction{Kind: core.KindExpense}
		var cadence string
		if err := rows.Scan(&t.Title, &t.Amount, &t.Category, &cadence); err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		t.Recurrence = core.Cadence(cadence)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring expenses: %w", err)
	}
	return out, nil
}

// DiscretionarySpend sums the user's one-off expenses dated within
// [start, end]. It returns zero when nothing matches.
func (s *Store) DiscretionarySpend(ctx context.Context, userID int64, start, end core.Date) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT t.amount FROM transactions t JOIN accounts a ON a.id = t.account_id"+
			" WHERE a.user_id = ? AND t.kind = ? AND t.recurrence IS NULL"+
			" AND t.date >= ? AND t.date <= ?"),
		userID, string(core.KindExpense), dateArg(start), dateArg(end))
	if err != nil {
		return decimal.Zero, fmt.Errorf("discretionary spend: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan spend amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate spend amounts: %w", err)
	}
	return total, nil
}
