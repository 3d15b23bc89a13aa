package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pocketbook/internal/amqp"
	"pocketbook/internal/core"
	applog "pocketbook/internal/log"

	"github.com/shopspring/decimal"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 200
)

// LedgerStore is the persistence the ledger service drives. Every mutating
// call runs as a single database transaction.
type LedgerStore interface {
	CreateAccount(ctx context.Context, a core.Account, today core.Date) (core.Account, error)
	ImportAccount(ctx context.Context, a core.Account, ref string, today core.Date) (core.Account, bool, error)
	GetAccount(ctx context.Context, userID, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)
	AllAccounts(ctx context.Context) ([]core.Account, error)
	DeleteAccount(ctx context.Context, userID, id int64) (int64, error)

	CreateTransaction(ctx context.Context, userID int64, t core.Transaction, today core.Date) (core.LedgerChange, error)
	ImportTransaction(ctx context.Context, userID int64, t core.Transaction, ref string, today core.Date) (core.LedgerChange, bool, error)
	UpdateTransaction(ctx context.Context, userID int64, t core.Transaction, today core.Date) (core.LedgerChange, error)
	DeleteTransaction(ctx context.Context, userID, id int64, today core.Date) (core.LedgerChange, error)
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID, accountID int64) ([]core.Transaction, error)
	RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error)

	CheckBalance(ctx context.Context, a core.Account) (core.BalanceCheck, error)
	RebuildBalance(ctx context.Context, a core.Account, today core.Date) (core.BalanceCheck, error)
}

// EventPublisher receives ledger events after commit.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error
}

// BudgetWatcher is told about ledger changes so it can drop cached figures
// and report whether the user crossed the spend warning threshold.
type BudgetWatcher interface {
	Invalidator
	SpendStatus(ctx context.Context, userID int64) (SpendStatus, error)
}

// LedgerService is the balance maintainer: it validates writes, hands them to
// the store and fans out the committed result.
type LedgerService struct {
	store  LedgerStore
	budget BudgetWatcher
	events EventPublisher
	now    func() time.Time
}

// NewLedgerService wires the ledger. budget and events are optional.
func NewLedgerService(store LedgerStore, budget BudgetWatcher, events EventPublisher) *LedgerService {
	return &LedgerService{store: store, budget: budget, events: events, now: time.Now}
}

func (s *LedgerService) today() core.Date {
	return core.DateOf(s.now())
}

func (s *LedgerService) CreateAccount(ctx context.Context, userID int64, a core.Account) (core.Account, error) {
	a, err := prepareAccount(userID, a)
	if err != nil {
		return core.Account{}, err
	}
	return s.store.CreateAccount(ctx, a, s.today())
}

// ImportAccount creates the account a provider batch describes. ref names the
// batch; a redelivered batch gets the account its first delivery created.
func (s *LedgerService) ImportAccount(ctx context.Context, userID int64, a core.Account, ref string) (core.Account, error) {
	a, err := prepareAccount(userID, a)
	if err != nil {
		return core.Account{}, err
	}
	acct, _, err := s.store.ImportAccount(ctx, a, ref, s.today())
	return acct, err
}

func prepareAccount(userID int64, a core.Account) (core.Account, error) {
	a.UserID = userID
	a.Name = strings.TrimSpace(a.Name)
	a.Balance = decimal.Zero
	if a.CreditLimit.Valid {
		a.CreditLimit.Decimal = a.CreditLimit.Decimal.Round(core.MoneyScale)
	}
	return a, a.Validate()
}

func (s *LedgerService) GetAccount(ctx context.Context, userID, id int64) (core.Account, error) {
	return s.store.GetAccount(ctx, userID, id)
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

// DeleteAccount removes the account with all of its transactions.
func (s *LedgerService) DeleteAccount(ctx context.Context, userID, id int64) error {
	removed, err := s.store.DeleteAccount(ctx, userID, id)
	if err != nil {
		return err
	}
	s.invalidate(userID)

	e := amqp.NewLedgerEvent(amqp.EventAccountDeleted, userID)
	e.AccountID = id
	e.Detail = fmt.Sprintf("%d transactions removed", removed)
	s.publish(ctx, e)
	return nil
}

// CreateTransaction records t and applies its effect to the account balance.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	t = normalize(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	change, err := s.store.CreateTransaction(ctx, userID, t, s.today())
	if err != nil {
		return core.Transaction{}, err
	}
	s.committed(ctx, userID, amqp.EventTransactionCreated, change)
	return change.Transaction, nil
}

// ImportTransaction records a provider transaction once per ref. created is
// false when the ref was already imported; nothing is written or published
// in that case.
func (s *LedgerService) ImportTransaction(ctx context.Context, userID int64, t core.Transaction, ref string) (core.Transaction, bool, error) {
	t = normalize(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, false, err
	}
	change, created, err := s.store.ImportTransaction(ctx, userID, t, ref, s.today())
	if err != nil {
		return core.Transaction{}, false, err
	}
	if created {
		s.committed(ctx, userID, amqp.EventTransactionCreated, change)
	}
	return change.Transaction, created, nil
}

// UpdateTransaction replaces the transaction identified by t.ID. Moving it to
// another account is a transfer and both balances change atomically.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	t = normalize(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	change, err := s.store.UpdateTransaction(ctx, userID, t, s.today())
	if err != nil {
		return core.Transaction{}, err
	}
	s.committed(ctx, userID, amqp.EventTransactionUpdated, change)
	return change.Transaction, nil
}

// DeleteTransaction removes the transaction and reverses its effect.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id int64) error {
	change, err := s.store.DeleteTransaction(ctx, userID, id, s.today())
	if err != nil {
		return err
	}
	s.committed(ctx, userID, amqp.EventTransactionDeleted, change)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID, accountID int64) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, accountID)
}

// RecentTransactions lists the user's newest transactions. limit is clamped
// to [1, MaxRecentLimit]; zero or negative means DefaultRecentLimit.
func (s *LedgerService) RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}
	return s.store.RecentTransactions(ctx, userID, limit)
}

// VerifyBalances recomputes every account balance from its transactions. With
// fix set, drifted balances are rewritten and the returned checks describe the
// state before the rewrite. Accounts deleted during the run are skipped.
func (s *LedgerService) VerifyBalances(ctx context.Context, fix bool) ([]core.BalanceCheck, error) {
	accounts, err := s.store.AllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	checks := make([]core.BalanceCheck, 0, len(accounts))
	for _, a := range accounts {
		check, err := s.store.CheckBalance(ctx, a)
		if errors.Is(err, core.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check account %d: %w", a.ID, err)
		}
		checks = append(checks, check)
		if check.Consistent() {
			continue
		}

		slog.WarnContext(ctx, "Balance drift detected",
			applog.FieldAccountID, a.ID,
			applog.FieldBalance, check.Account.Balance.String(),
			"computed", check.Computed.String())

		if fix {
			_, err := s.store.RebuildBalance(ctx, a, s.today())
			if errors.Is(err, core.ErrAccountNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("rebuild account %d: %w", a.ID, err)
			}
			s.invalidate(a.UserID)
		}
	}
	return checks, nil
}

func normalize(t core.Transaction) core.Transaction {
	t.Title = strings.TrimSpace(t.Title)
	t.Category = strings.TrimSpace(t.Category)
	t.Amount = t.Amount.Round(core.MoneyScale)
	return t
}

// committed runs the post-commit side effects of a ledger change. Failures
// here are logged; the write itself has already succeeded.
func (s *LedgerService) committed(ctx context.Context, userID int64, eventType string, change core.LedgerChange) {
	s.invalidate(userID)

	t := change.Transaction
	op := applog.OpCreate
	switch {
	case change.IsTransfer():
		op = applog.OpTransfer
	case eventType == amqp.EventTransactionUpdated:
		op = applog.OpUpdate
	case eventType == amqp.EventTransactionDeleted:
		op = applog.OpDelete
	}
	fields := applog.NewFields().
		WithComponent(applog.ComponentLedger).
		WithOperation(op).
		WithUser(userID).
		WithTransaction(t.AccountID, t.ID, string(t.Kind), t.Amount.StringFixed(core.MoneyScale))
	slog.DebugContext(ctx, "Ledger write committed", fields.ToSlice()...)

	for _, acct := range change.Accounts {
		e := amqp.NewLedgerEvent(eventType, userID)
		e.AccountID = acct.ID
		e.TransactionID = t.ID
		e.Kind = string(t.Kind)
		e.Title = t.Title
		e.Category = t.Category
		e.Amount = t.Amount.StringFixed(core.MoneyScale)
		e.Balance = acct.Balance.StringFixed(core.MoneyScale)
		e.Date = t.Date.String()
		if change.IsTransfer() {
			if acct.ID == change.Previous.AccountID {
				e.Detail = "transfer_out"
			} else {
				e.Detail = "transfer_in"
			}
		}
		s.publish(ctx, e)
	}

	if t.Kind == core.KindExpense {
		s.checkSpend(ctx, userID)
	}
}

func (s *LedgerService) checkSpend(ctx context.Context, userID int64) {
	if s.budget == nil {
		return
	}
	status, err := s.budget.SpendStatus(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute spend status", "user_id", userID, "error", err)
		return
	}
	// Without a paycheck there is no budget to warn against.
	if !status.HasPaycheck || !status.Warning {
		return
	}

	slog.InfoContext(ctx, "User in spend warning",
		"user_id", userID,
		"weekly_spend", status.WeeklySpend.String(),
		"weekly_budget", status.WeeklyBudget.String())

	e := amqp.NewLedgerEvent(amqp.EventSpendWarning, userID)
	e.Amount = status.WeeklySpend.StringFixed(core.MoneyScale)
	e.Balance = status.SafeToSpend.StringFixed(core.MoneyScale)
	e.Date = status.WindowEnd.String()
	e.Detail = fmt.Sprintf("%s%% of weekly budget left", status.RemainingPercent.StringFixed(1))
	s.publish(ctx, e)
}

func (s *LedgerService) invalidate(userID int64) {
	if s.budget != nil {
		s.budget.Invalidate(userID)
	}
}

func (s *LedgerService) publish(ctx context.Context, e *amqp.LedgerEvent) {
	if s.events == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping ledger event", "type", e.Type)
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", e.Type,
			"event_id", e.ID,
			"error", err)
	}
}
