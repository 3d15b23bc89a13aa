package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

// CreateTransaction inserts t and applies its effect to the owning account in
// one database transaction.
func (s *Store) CreateTransaction(ctx context.Context, userID int64, t core.Transaction, today core.Date) (core.LedgerChange, error) {
	change, _, err := s.createTransaction(ctx, userID, t, "", today)
	return change, err
}

// ImportTransaction is CreateTransaction for provider records. ref identifies
// the record across deliveries; when a transaction with the same ref already
// exists nothing is written and created is false.
func (s *Store) ImportTransaction(ctx context.Context, userID int64, t core.Transaction, ref string, today core.Date) (change core.LedgerChange, created bool, err error) {
	if ref == "" {
		return core.LedgerChange{}, false, errors.New("import transaction: empty import ref")
	}
	return s.createTransaction(ctx, userID, t, ref, today)
}

func (s *Store) createTransaction(ctx context.Context, userID int64, t core.Transaction, ref string, today core.Date) (core.LedgerChange, bool, error) {
	var (
		change  core.LedgerChange
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := s.getAccount(ctx, tx, userID, t.AccountID, true)
		if err != nil {
			return err
		}

		if ref != "" {
			existing, err := s.transactionByRef(ctx, tx, ref)
			if err == nil {
				change = core.LedgerChange{Transaction: existing, Accounts: []core.Account{acct}}
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("look up import ref %s: %w", ref, err)
			}
		}

		row := tx.QueryRowContext(ctx, s.q(
			"INSERT INTO transactions (account_id, kind, title, amount, date, category, recurrence, import_ref) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id"),
			t.AccountID, string(t.Kind), t.Title, amountArg(t.Amount), dateArg(t.Date), t.Category, cadenceArg(t.Recurrence), refArg(ref))
		if err := row.Scan(&t.ID); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if err := s.step("transaction.inserted"); err != nil {
			return err
		}

		acct, err = s.adjustBalance(ctx, tx, acct, t.Effect(), today)
		if err != nil {
			return err
		}

		change = core.LedgerChange{Transaction: t, Accounts: []core.Account{acct}}
		created = true
		return nil
	})
	if err != nil {
		return core.LedgerChange{}, false, err
	}

	if !created {
		slog.InfoContext(ctx, "Provider record already imported",
			"transaction_id", change.Transaction.ID,
			"import_ref", ref)
		return change, false, nil
	}
	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"kind", t.Kind,
		"amount", t.Amount.String())
	return change, true, nil
}

func (s *Store) transactionByRef(ctx context.Context, q querier, ref string) (core.Transaction, error) {
	return scanTransaction(q.QueryRowContext(ctx, s.q(
		"SELECT "+transactionColumns+" FROM transactions t WHERE t.import_ref = ?"), ref))
}

// UpdateTransaction replaces the stored transaction with t (matched by t.ID).
// When the account changes, the old account is compensated and the new one
// charged inside the same database transaction.
func (s *Store) UpdateTransaction(ctx context.Context, userID int64, t core.Transaction, today core.Date) (core.LedgerChange, error) {
	var change core.LedgerChange
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := s.getTransaction(ctx, tx, userID, t.ID, true)
		if err != nil {
			return err
		}
		if old.Kind != t.Kind {
			return core.ErrKindChange
		}

		// Resolve every account before the first write.
		accounts, err := s.lockAccounts(ctx, tx, userID, old.AccountID, t.AccountID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.q(
			"UPDATE transactions SET account_id = ?, title = ?, amount = ?, date = ?, category = ?, recurrence = ? WHERE id = ?"),
			t.AccountID, t.Title, amountArg(t.Amount), dateArg(t.Date), t.Category, cadenceArg(t.Recurrence), t.ID)
		if err != nil {
			return fmt.Errorf("update transaction %d: %w", t.ID, err)
		}

		var touched []core.Account
		if old.AccountID == t.AccountID {
			acct, err := s.adjustBalance(ctx, tx, accounts[t.AccountID], t.Effect().Sub(old.Effect()), today)
			if err != nil {
				return err
			}
			touched = []core.Account{acct}
		} else {
			from, err := s.adjustBalance(ctx, tx, accounts[old.AccountID], old.Effect().Neg(), today)
			if err != nil {
				return err
			}
			if err := s.step("transfer.source_adjusted"); err != nil {
				return err
			}
			to, err := s.adjustBalance(ctx, tx, accounts[t.AccountID], t.Effect(), today)
			if err != nil {
				return err
			}
			touched = []core.Account{from, to}
		}

		change = core.LedgerChange{Transaction: t, Previous: &old, Accounts: touched}
		return nil
	})
	if err != nil {
		return core.LedgerChange{}, err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"transfer", change.IsTransfer(),
		"amount", t.Amount.String())
	return change, nil
}

// DeleteTransaction removes the transaction and reverses its effect.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id int64, today core.Date) (core.LedgerChange, error) {
	var change core.LedgerChange
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := s.getTransaction(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		acct, err := s.getAccount(ctx, tx, userID, t.AccountID, true)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM transactions WHERE id = ?"), id); err != nil {
			return fmt.Errorf("delete transaction %d: %w", id, err)
		}

		if err := s.step("transaction.deleted"); err != nil {
			return err
		}

		acct, err = s.adjustBalance(ctx, tx, acct, t.Effect().Neg(), today)
		if err != nil {
			return err
		}

		change = core.LedgerChange{Transaction: t, Accounts: []core.Account{acct}}
		return nil
	})
	if err != nil {
		return core.LedgerChange{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"transaction_id", id,
		"account_id", change.Transaction.AccountID)
	return change, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.getTransaction(ctx, s.db, userID, id, false)
}

// ListTransactions returns the account's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID, accountID int64) ([]core.Transaction, error) {
	if _, err := s.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT "+transactionColumns+" FROM transactions t WHERE t.account_id = ? ORDER BY t.date DESC, t.id DESC"),
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

// RecentTransactions returns the user's latest transactions across accounts.
func (s *Store) RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT "+transactionColumns+" FROM transactions t JOIN accounts a ON a.id = t.account_id"+
			" WHERE a.user_id = ? ORDER BY t.date DESC, t.id DESC LIMIT ?"),
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) getTransaction(ctx context.Context, q querier, userID, id int64, lock bool) (core.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions t JOIN accounts a ON a.id = t.account_id" +
		" WHERE t.id = ? AND a.user_id = ?"
	if lock && s.dialect == Postgres {
		query += " FOR UPDATE OF t"
	}
	t, err := scanTransaction(q.QueryRowContext(ctx, s.q(query), id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: %d", core.ErrTransactionNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// lockAccounts locks the given accounts in ascending id order so two
// concurrent transfers between the same pair cannot deadlock.
func (s *Store) lockAccounts(ctx context.Context, tx *sql.Tx, userID int64, a, b int64) (map[int64]core.Account, error) {
	ids := []int64{a, b}
	if a > b {
		ids = []int64{b, a}
	}
	out := make(map[int64]core.Account, 2)
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		acct, err := s.getAccount(ctx, tx, userID, id, true)
		if err != nil {
			return nil, err
		}
		out[id] = acct
	}
	return out, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// CheckBalance recomputes the account balance from its transactions. The
// cached balance is re-read in the same snapshot as the sum, so a write that
// commits after a was loaded is never reported as drift.
func (s *Store) CheckBalance(ctx context.Context, a core.Account) (core.BalanceCheck, error) {
	var check core.BalanceCheck
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getAccount(ctx, tx, a.UserID, a.ID, false)
		if err != nil {
			return err
		}
		computed, err := s.computeBalance(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		check = core.BalanceCheck{Account: current, Computed: computed}
		return nil
	})
	return check, err
}

// RebuildBalance overwrites the cached balance with the recomputed one.
func (s *Store) RebuildBalance(ctx context.Context, a core.Account, today core.Date) (core.BalanceCheck, error) {
	var check core.BalanceCheck
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.getAccount(ctx, tx, a.UserID, a.ID, true)
		if err != nil {
			return err
		}
		computed, err := s.computeBalance(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		check = core.BalanceCheck{Account: locked, Computed: computed}
		if check.Consistent() {
			return nil
		}
		fixed, err := s.adjustBalance(ctx, tx, locked, check.Drift().Neg(), today)
		if err != nil {
			return err
		}
		slog.WarnContext(ctx, "Account balance rebuilt",
			"account_id", a.ID,
			"cached", locked.Balance.String(),
			"computed", computed.String())
		check.Account = fixed
		return nil
	})
	return check, err
}

func (s *Store) computeBalance(ctx context.Context, q querier, accountID int64) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, s.q("SELECT kind, amount FROM transactions WHERE account_id = ?"), accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load account %d transactions: %w", accountID, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var (
			kind   string
			amount decimal.Decimal
		)
		if err := rows.Scan(&kind, &amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan amount: %w", err)
		}
		total = total.Add(core.Transaction{Kind: core.Kind(kind), Amount: amount}.Effect())
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate amounts: %w", err)
	}
	return total, nil
}
