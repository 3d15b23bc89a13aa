package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pocketbook/internal/amqp"
	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

// UncategorizedCategory is used for provider records that carry no category.
const UncategorizedCategory = "Uncategorized"

var (
	// ErrNoImportAccount is returned for an import message that neither names
	// an existing account nor describes a new one.
	ErrNoImportAccount = errors.New("import message names no account")
	// ErrNoImportRef is returned for an import message without an id. The id
	// keys every record the batch writes.
	ErrNoImportRef = errors.New("import message has no id")
)

// ImportResult counts what happened to one provider batch. Duplicates are
// records an earlier delivery of the same batch already wrote.
type ImportResult struct {
	AccountID  int64
	Imported   int
	Skipped    int
	Duplicates int
}

// ImportService maps bank-data provider records onto ledger writes.
type ImportService struct {
	ledger *LedgerService
}

func NewImportService(ledger *LedgerService) *ImportService {
	return &ImportService{ledger: ledger}
}

// ImportAccount creates a ledger account from provider metadata. Repeating the
// call with the same batchRef returns the account created the first time.
func (s *ImportService) ImportAccount(ctx context.Context, userID int64, batchRef string, pa amqp.ProviderAccount) (core.Account, error) {
	name := strings.TrimSpace(pa.Name)
	if name == "" {
		name = pa.Type
	}
	a := core.Account{Name: name, Type: pa.Type}
	if pa.Balances.Limit != nil {
		a.CreditLimit = decimal.NewNullDecimal(*pa.Balances.Limit)
	}
	return s.ledger.ImportAccount(ctx, userID, a, batchRef)
}

// recordRef keys the index-th record of a batch.
func recordRef(batchRef string, index int) string {
	return fmt.Sprintf("%s/%d", batchRef, index)
}

// ImportTransactions records each provider transaction on the account.
// Records that fail validation are skipped; any other failure stops the batch.
// Records already written under batchRef are counted as duplicates, so a
// batch that failed part way can be replayed from the start.
func (s *ImportService) ImportTransactions(ctx context.Context, userID, accountID int64, batchRef string, records []amqp.ProviderTransaction) (ImportResult, error) {
	if batchRef == "" {
		return ImportResult{}, ErrNoImportRef
	}
	res := ImportResult{AccountID: accountID}
	for i, rec := range records {
		t, err := FromProvider(rec)
		created := false
		if err == nil {
			t.AccountID = accountID
			_, created, err = s.ledger.ImportTransaction(ctx, userID, t, recordRef(batchRef, i))
		}
		if err != nil {
			if core.IsValidation(err) {
				slog.WarnContext(ctx, "Skipping provider record",
					"index", i,
					"name", rec.Name,
					"error", err)
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("import record %d: %w", i, err)
		}
		if !created {
			res.Duplicates++
			continue
		}
		res.Imported++
	}
	return res, nil
}

// Handle processes one import message, creating the account first when the
// message describes a new one.
func (s *ImportService) Handle(ctx context.Context, m *amqp.ImportMessage) (ImportResult, error) {
	if strings.TrimSpace(m.ID) == "" {
		return ImportResult{}, ErrNoImportRef
	}
	accountID := m.AccountID
	if accountID == 0 {
		if m.Account == nil {
			return ImportResult{}, ErrNoImportAccount
		}
		a, err := s.ImportAccount(ctx, m.UserID, m.ID, *m.Account)
		if err != nil {
			return ImportResult{}, fmt.Errorf("import account: %w", err)
		}
		accountID = a.ID
	}

	res, err := s.ImportTransactions(ctx, m.UserID, accountID, m.ID, m.Transactions)
	if err != nil {
		return res, err
	}

	slog.InfoContext(ctx, "Provider batch imported",
		"message_id", m.ID,
		"user_id", m.UserID,
		"account_id", accountID,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"duplicates", res.Duplicates)
	return res, nil
}

// FromProvider inverts the provider sign convention: positive amounts leave
// the account and become expenses, negative amounts become income.
func FromProvider(rec amqp.ProviderTransaction) (core.Transaction, error) {
	date, err := core.ParseDate(rec.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		Kind:     core.KindExpense,
		Title:    strings.TrimSpace(rec.Name),
		Amount:   rec.Amount,
		Date:     date,
		Category: UncategorizedCategory,
	}
	if rec.Amount.IsNegative() {
		t.Kind = core.KindIncome
		t.Amount = rec.Amount.Neg()
	}
	if len(rec.Category) > 0 && strings.TrimSpace(rec.Category[0]) != "" {
		t.Category = strings.TrimSpace(rec.Category[0])
	}
	return t, nil
}
