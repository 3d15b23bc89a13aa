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

// CreateAccount inserts an account with a zero balance. The balance only moves
// through transaction writes.
func (s *Store) CreateAccount(ctx context.Context, a core.Account, today core.Date) (core.Account, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		"INSERT INTO accounts (user_id, name, type, balance, credit_limit, last_updated) VALUES (?, ?, ?, ?, ?, ?) RETURNING "+accountColumns),
		a.UserID, a.Name, a.Type, amountArg(decimal.Zero), nullAmountArg(a.CreditLimit), dateArg(today))
	created, err := scanAccount(row)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", created.ID,
		"user_id", created.UserID,
		"type", created.Type)
	return created, nil
}

// ImportAccount creates the account described by a provider batch, or returns
// the account an earlier delivery of the same batch created.
func (s *Store) ImportAccount(ctx context.Context, a core.Account, ref string, today core.Date) (core.Account, bool, error) {
	if ref == "" {
		return core.Account{}, false, errors.New("import account: empty import ref")
	}

	existing, err := scanAccount(s.db.QueryRowContext(ctx, s.q(
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? AND import_ref = ?"), a.UserID, ref))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, false, fmt.Errorf("look up imported account %s: %w", ref, err)
	}

	row := s.db.QueryRowContext(ctx, s.q(
		"INSERT INTO accounts (user_id, name, type, balance, credit_limit, last_updated, import_ref) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING "+accountColumns),
		a.UserID, a.Name, a.Type, amountArg(decimal.Zero), nullAmountArg(a.CreditLimit), dateArg(today), ref)
	created, err := scanAccount(row)
	if err != nil {
		return core.Account{}, false, fmt.Errorf("import account: %w", err)
	}

	slog.InfoContext(ctx, "Account imported",
		"account_id", created.ID,
		"user_id", created.UserID,
		"import_ref", ref)
	return created, true, nil
}

// GetAccount resolves an account owned by userID.
func (s *Store) GetAccount(ctx context.Context, userID, id int64) (core.Account, error) {
	return s.getAccount(ctx, s.db, userID, id, false)
}

func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY id"), userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return collectAccounts(rows)
}

// AllAccounts lists every account in the store, across users.
func (s *Store) AllAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list all accounts: %w", err)
	}
	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]core.Account, error) {
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// DeleteAccount removes the account and every transaction attributed to it in
// one database transaction. It returns the number of transactions removed.
func (s *Store) DeleteAccount(ctx context.Context, userID, id int64) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getAccount(ctx, tx, userID, id, true); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, s.q("DELETE FROM transactions WHERE account_id = ?"), id)
		if err != nil {
			return fmt.Errorf("delete account transactions: %w", err)
		}
		removed, _ = res.RowsAffected()

		if err := s.step("account.transactions_deleted"); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM accounts WHERE id = ?"), id); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Account deleted",
		"account_id", id,
		"user_id", userID,
		"transactions_removed", removed)
	return removed, nil
}

// getAccount resolves an account for userID, optionally taking its row lock.
func (s *Store) getAccount(ctx context.Context, q querier, userID, id int64, lock bool) (core.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = ? AND user_id = ?"
	if lock {
		query += s.forUpdate()
	}
	a, err := scanAccount(q.QueryRowContext(ctx, s.q(query), id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("%w: %d", core.ErrAccountNotFound, id)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// adjustBalance applies delta to a locked account row and stamps last_updated.
func (s *Store) adjustBalance(ctx context.Context, tx *sql.Tx, a core.Account, delta decimal.Decimal, today core.Date) (core.Account, error) {
	next := a.Balance.Add(delta)
	res, err := tx.ExecContext(ctx, s.q(
		"UPDATE accounts SET balance = ?, last_updated = ? WHERE id = ?"),
		amountArg(next), dateArg(today), a.ID)
	if err != nil {
		return core.Account{}, fmt.Errorf("adjust balance of account %d: %w", a.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return core.Account{}, fmt.Errorf("%w: account %d updated %d rows", core.ErrInconsistentTransfer, a.ID, n)
	}
	a.Balance = next
	a.LastUpdated = today
	return a, nil
}
