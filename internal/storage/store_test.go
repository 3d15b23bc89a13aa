package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

var today = core.NewDate(2025, 6, 15)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, email string) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "Test")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func seedAccount(t *testing.T, s *Store, userID int64, name string) core.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), core.Account{UserID: userID, Name: name, Type: "checking"}, today)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tx(kind core.Kind, accountID int64, amount string) core.Transaction {
	return core.Transaction{
		Kind:      kind,
		AccountID: accountID,
		Title:     "item",
		Amount:    dec(amount),
		Date:      today,
		Category:  "General",
	}
}

func balanceOf(t *testing.T, s *Store, userID, accountID int64) decimal.Decimal {
	t.Helper()
	a, err := s.GetAccount(context.Background(), userID, accountID)
	if err != nil {
		t.Fatalf("GetAccount(%d): %v", accountID, err)
	}
	return a.Balance
}

func assertBalance(t *testing.T, s *Store, userID, accountID int64, want string) {
	t.Helper()
	if got := balanceOf(t, s, userID, accountID); !got.Equal(dec(want)) {
		t.Fatalf("account %d balance = %s, want %s", accountID, got, want)
	}
}

func TestCreateThenDeleteRestoresBalance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindIncome, acct.ID, "1000"), today); err != nil {
		t.Fatalf("create income: %v", err)
	}
	assertBalance(t, s, u.ID, acct.ID, "1000")

	change, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "42.15"), today)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if got := change.Accounts[0].Balance; !got.Equal(dec("957.85")) {
		t.Fatalf("change balance = %s, want 957.85", got)
	}
	assertBalance(t, s, u.ID, acct.ID, "957.85")

	if _, err := s.DeleteTransaction(ctx, u.ID, change.Transaction.ID, today); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertBalance(t, s, u.ID, acct.ID, "1000")

	a, _ := s.GetAccount(ctx, u.ID, acct.ID)
	if a.LastUpdated != today {
		t.Fatalf("last_updated = %s, want %s", a.LastUpdated, today)
	}
}

func TestCreateUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	other := seedUser(t, s, "b@example.com")
	foreign := seedAccount(t, s, other.ID, "Theirs")

	for _, id := range []int64{999, foreign.ID} {
		_, err := s.CreateTransaction(context.Background(), u.ID, tx(core.KindExpense, id, "10"), today)
		if !errors.Is(err, core.ErrAccountNotFound) {
			t.Fatalf("account %d: expected ErrAccountNotFound, got %v", id, err)
		}
	}
	assertBalance(t, s, other.ID, foreign.ID, "0")
}

func TestUpdateSameAccountAppliesDelta(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	change, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "100"), today)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := change.Transaction
	updated.Amount = dec("60")
	updated.Title = "smaller"
	res, err := s.UpdateTransaction(ctx, u.ID, updated, today)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.IsTransfer() {
		t.Fatal("same-account update reported as transfer")
	}
	if !res.Previous.Amount.Equal(dec("100")) {
		t.Fatalf("previous amount = %s", res.Previous.Amount)
	}
	assertBalance(t, s, u.ID, acct.ID, "-60")

	got, err := s.GetTransaction(ctx, u.ID, updated.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "smaller" || !got.Amount.Equal(dec("60")) {
		t.Fatalf("stored transaction = %+v", got)
	}
}

func TestUpdateRejectsKindChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	change, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "10"), today)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	flipped := change.Transaction
	flipped.Kind = core.KindIncome
	if _, err := s.UpdateTransaction(ctx, u.ID, flipped, today); !errors.Is(err, core.ErrKindChange) {
		t.Fatalf("expected ErrKindChange, got %v", err)
	}
	assertBalance(t, s, u.ID, acct.ID, "-10")
}

func TestTransferMovesEffect(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	from := seedAccount(t, s, u.ID, "Checking")
	to := seedAccount(t, s, u.ID, "Credit")

	for _, kind := range []core.Kind{core.KindExpense, core.KindIncome} {
		t.Run(string(kind), func(t *testing.T) {
			fromBefore := balanceOf(t, s, u.ID, from.ID)
			toBefore := balanceOf(t, s, u.ID, to.ID)

			change, err := s.CreateTransaction(ctx, u.ID, tx(kind, from.ID, "25"), today)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			moved := change.Transaction
			moved.AccountID = to.ID
			moved.Amount = dec("30")
			res, err := s.UpdateTransaction(ctx, u.ID, moved, today)
			if err != nil {
				t.Fatalf("transfer: %v", err)
			}
			if !res.IsTransfer() || len(res.Accounts) != 2 {
				t.Fatalf("expected transfer touching two accounts, got %+v", res)
			}

			if got := balanceOf(t, s, u.ID, from.ID); !got.Equal(fromBefore) {
				t.Fatalf("source balance = %s, want %s", got, fromBefore)
			}
			want := toBefore.Add(moved.Effect())
			if got := balanceOf(t, s, u.ID, to.ID); !got.Equal(want) {
				t.Fatalf("target balance = %s, want %s", got, want)
			}
		})
	}
}

func TestTransferFailureLeavesNoPartialEffect(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	from := seedAccount(t, s, u.ID, "Checking")
	to := seedAccount(t, s, u.ID, "Savings")

	change, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, from.ID, "80"), today)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	injected := errors.New("connection lost")
	s.hook = func(stage string) error {
		if stage == "transfer.source_adjusted" {
			return injected
		}
		return nil
	}
	moved := change.Transaction
	moved.AccountID = to.ID
	if _, err := s.UpdateTransaction(ctx, u.ID, moved, today); !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.hook = nil

	assertBalance(t, s, u.ID, from.ID, "-80")
	assertBalance(t, s, u.ID, to.ID, "0")
	got, err := s.GetTransaction(ctx, u.ID, moved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccountID != from.ID {
		t.Fatalf("transaction moved to account %d despite rollback", got.AccountID)
	}
}

func TestTransferToUnresolvedAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	from := seedAccount(t, s, u.ID, "Checking")

	change, err := s.CreateTransaction(ctx, u.ID, tx(core.KindIncome, from.ID, "80"), today)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	moved := change.Transaction
	moved.AccountID = 4242
	if _, err := s.UpdateTransaction(ctx, u.ID, moved, today); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	assertBalance(t, s, u.ID, from.ID, "80")
}

func TestUpdateDeleteUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	missing := tx(core.KindExpense, acct.ID, "5")
	missing.ID = 77
	if _, err := s.UpdateTransaction(ctx, u.ID, missing, today); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("update: expected ErrTransactionNotFound, got %v", err)
	}
	if _, err := s.DeleteTransaction(ctx, u.ID, 77, today); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("delete: expected ErrTransactionNotFound, got %v", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")
	keep := seedAccount(t, s, u.ID, "Other")

	for i := 0; i < 3; i++ {
		if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "1"), today); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, keep.ID, "1"), today); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := s.DeleteAccount(ctx, u.ID, acct.ID)
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	if _, err := s.GetAccount(ctx, u.ID, acct.ID); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("expected account gone, got %v", err)
	}
	recent, err := s.RecentTransactions(ctx, u.ID, 50)
	if err != nil {
		t.Fatalf("RecentTransactions: %v", err)
	}
	if len(recent) != 1 || recent[0].AccountID != keep.ID {
		t.Fatalf("unexpected remaining transactions: %+v", recent)
	}
}

func TestDeleteAccountFailureKeepsTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")
	if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "9"), today); err != nil {
		t.Fatalf("create: %v", err)
	}

	s.hook = func(stage string) error {
		if stage == "account.transactions_deleted" {
			return errors.New("boom")
		}
		return nil
	}
	if _, err := s.DeleteAccount(ctx, u.ID, acct.ID); err == nil {
		t.Fatal("expected error")
	}
	s.hook = nil

	txs, err := s.ListTransactions(ctx, u.ID, acct.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
}

func TestBalanceInvariantAcrossSequence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	a := seedAccount(t, s, u.ID, "A")
	b := seedAccount(t, s, u.ID, "B")

	var ids []int64
	amounts := []string{"10.10", "250", "3.33", "99.99", "0.01", "45"}
	for i, amt := range amounts {
		kind := core.KindExpense
		if i%2 == 0 {
			kind = core.KindIncome
		}
		acct := a.ID
		if i%3 == 0 {
			acct = b.ID
		}
		c, err := s.CreateTransaction(ctx, u.ID, tx(kind, acct, amt), today)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, c.Transaction.ID)
	}

	// move, resize, delete
	first, _ := s.GetTransaction(ctx, u.ID, ids[0])
	first.AccountID = a.ID
	first.Amount = dec("12.5")
	if _, err := s.UpdateTransaction(ctx, u.ID, first, today); err != nil {
		t.Fatalf("update: %v", err)
	}
	second, _ := s.GetTransaction(ctx, u.ID, ids[1])
	second.AccountID = b.ID
	if _, err := s.UpdateTransaction(ctx, u.ID, second, today); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.DeleteTransaction(ctx, u.ID, ids[4], today); err != nil {
		t.Fatalf("delete: %v", err)
	}

	accounts, err := s.ListAccounts(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	for _, acct := range accounts {
		check, err := s.CheckBalance(ctx, acct)
		if err != nil {
			t.Fatalf("CheckBalance: %v", err)
		}
		if !check.Consistent() {
			t.Fatalf("account %d drift %s (cached %s, computed %s)", acct.ID, check.Drift(), acct.Balance, check.Computed)
		}
	}
}

func TestConcurrentCreatesDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "1.25"), today); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}

	assertBalance(t, s, u.ID, acct.ID, fmt.Sprintf("-%s", dec("1.25").Mul(decimal.NewFromInt(n))))
}

func TestRebuildBalanceFixesDrift(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")
	if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindIncome, acct.ID, "70"), today); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE accounts SET balance = '5.00' WHERE id = ?", acct.ID); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}

	a, _ := s.GetAccount(ctx, u.ID, acct.ID)
	check, err := s.CheckBalance(ctx, a)
	if err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if check.Consistent() || !check.Drift().Equal(dec("-65")) {
		t.Fatalf("drift = %s, want -65", check.Drift())
	}

	fixed, err := s.RebuildBalance(ctx, a, today)
	if err != nil {
		t.Fatalf("RebuildBalance: %v", err)
	}
	if !fixed.Consistent() {
		t.Fatalf("still drifting: %s", fixed.Drift())
	}
	assertBalance(t, s, u.ID, acct.ID, "70")
}

func TestCheckBalanceRereadsAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	// acct was loaded before this write commits.
	if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "12"), today); err != nil {
		t.Fatalf("create: %v", err)
	}

	check, err := s.CheckBalance(ctx, acct)
	if err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if !check.Consistent() {
		t.Fatalf("stale snapshot reported drift %s", check.Drift())
	}
	if !check.Account.Balance.Equal(dec("-12")) {
		t.Fatalf("checked balance = %s, want -12", check.Account.Balance)
	}

	if _, err := s.DeleteAccount(ctx, u.ID, acct.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := s.CheckBalance(ctx, acct); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("CheckBalance(deleted) err = %v, want ErrAccountNotFound", err)
	}
}

func TestImportTransactionSkipsKnownRef(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	first, created, err := s.ImportTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "10"), "batch-1/0", today)
	if err != nil || !created {
		t.Fatalf("first import: created=%v err=%v", created, err)
	}
	again, created, err := s.ImportTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "10"), "batch-1/0", today)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if created {
		t.Fatal("second import with the same ref created a row")
	}
	if again.Transaction.ID != first.Transaction.ID {
		t.Fatalf("second import returned transaction %d, want %d", again.Transaction.ID, first.Transaction.ID)
	}
	if _, _, err := s.ImportTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "10"), "", today); err == nil {
		t.Fatal("empty ref accepted")
	}

	// Manual rows carry no ref and never collide with each other.
	for i := 0; i < 2; i++ {
		if _, err := s.CreateTransaction(ctx, u.ID, tx(core.KindExpense, acct.ID, "1"), today); err != nil {
			t.Fatalf("manual create %d: %v", i, err)
		}
	}

	list, err := s.ListTransactions(ctx, u.ID, acct.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("transactions = %d, want 3", len(list))
	}
	assertBalance(t, s, u.ID, acct.ID, "-12")
}

func TestImportAccountReturnsExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	other := seedUser(t, s, "b@example.com")

	a := core.Account{UserID: u.ID, Name: "Bank", Type: "checking"}
	first, created, err := s.ImportAccount(ctx, a, "batch-1", today)
	if err != nil || !created {
		t.Fatalf("first import: created=%v err=%v", created, err)
	}
	again, created, err := s.ImportAccount(ctx, a, "batch-1", today)
	if err != nil || created {
		t.Fatalf("second import: created=%v err=%v", created, err)
	}
	if again.ID != first.ID {
		t.Fatalf("second import returned account %d, want %d", again.ID, first.ID)
	}

	// Refs are scoped per user.
	b := core.Account{UserID: other.ID, Name: "Bank", Type: "checking"}
	if got, created, err := s.ImportAccount(ctx, b, "batch-1", today); err != nil || !created || got.ID == first.ID {
		t.Fatalf("other user import: id=%d created=%v err=%v", got.ID, created, err)
	}
}

func TestRecurringExpensesAreDistinct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	rent := tx(core.KindExpense, acct.ID, "300")
	rent.Title, rent.Category, rent.Recurrence = "Rent", "Housing", core.Monthly
	gym := tx(core.KindExpense, acct.ID, "20")
	gym.Title, gym.Category, gym.Recurrence = "Gym", "Health", core.Weekly
	oneOff := tx(core.KindExpense, acct.ID, "300")
	oneOff.Title = "Rent"

	for _, item := range []core.Transaction{rent, rent, gym, oneOff} {
		if _, err := s.CreateTransaction(ctx, u.ID, item, today); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.RecurringExpenses(ctx, u.ID)
	if err != nil {
		t.Fatalf("RecurringExpenses: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d recurring expenses, want 2: %+v", len(got), got)
	}
	if got[0].Title != "Gym" || got[0].Recurrence != core.Weekly {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Title != "Rent" || !got[1].Amount.Equal(dec("300")) || got[1].Recurrence != core.Monthly {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestDiscretionarySpendExcludesRecurring(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	total, err := s.DiscretionarySpend(ctx, u.ID, today.AddDays(-7), today)
	if err != nil {
		t.Fatalf("DiscretionarySpend: %v", err)
	}
	if !total.IsZero() {
		t.Fatalf("empty spend = %s, want 0", total)
	}

	recurring := tx(core.KindExpense, acct.ID, "50")
	recurring.Recurrence = core.Monthly
	oneOff := tx(core.KindExpense, acct.ID, "30")
	outside := tx(core.KindExpense, acct.ID, "99")
	outside.Date = today.AddDays(-30)
	income := tx(core.KindIncome, acct.ID, "500")
	for _, item := range []core.Transaction{recurring, oneOff, outside, income} {
		if _, err := s.CreateTransaction(ctx, u.ID, item, today); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	total, err = s.DiscretionarySpend(ctx, u.ID, today, today)
	if err != nil {
		t.Fatalf("DiscretionarySpend: %v", err)
	}
	if !total.Equal(dec("30")) {
		t.Fatalf("spend = %s, want 30", total)
	}
}

func TestLatestPaycheck(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "a@example.com")
	acct := seedAccount(t, s, u.ID, "Checking")

	if _, ok, err := s.LatestPaycheck(ctx, u.ID); err != nil || ok {
		t.Fatalf("LatestPaycheck on empty ledger = ok %v, err %v", ok, err)
	}

	older := tx(core.KindIncome, acct.ID, "1800")
	older.Category = core.PaycheckCategory
	older.Date = today.AddDays(-14)
	newer := tx(core.KindIncome, acct.ID, "2000")
	newer.Category = core.PaycheckCategory
	gift := tx(core.KindIncome, acct.ID, "5000")
	gift.Category = "Gift"
	gift.Date = today.AddDays(1)
	for _, item := range []core.Transaction{older, newer, gift} {
		if _, err := s.CreateTransaction(ctx, u.ID, item, today); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, ok, err := s.LatestPaycheck(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("LatestPaycheck = ok %v, err %v", ok, err)
	}
	if !got.Amount.Equal(dec("2000")) {
		t.Fatalf("paycheck = %s, want 2000", got.Amount)
	}
}

func TestGoalsAndUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "A@Example.com ")
	if u.SpendWarning != core.DefaultSpendWarning || u.SavingsPercent != core.DefaultSavingsPercent {
		t.Fatalf("defaults = %+v", u)
	}
	if byEmail, err := s.GetUserByEmail(ctx, "a@example.com"); err != nil || byEmail.ID != u.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", byEmail, err)
	}
	updated, err := s.UpdateUserSettings(ctx, u.ID, 35, 15)
	if err != nil {
		t.Fatalf("UpdateUserSettings: %v", err)
	}
	if updated.SpendWarning != 35 || updated.SavingsPercent != 15 {
		t.Fatalf("settings = %+v", updated)
	}
	if _, err := s.GetUser(ctx, 999); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	g, err := s.CreateGoal(ctx, core.Goal{UserID: u.ID, Name: "Trip", Amount: dec("1000"), Date: today.AddDays(10), Progress: dec("0.5")})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	done, err := s.CreateGoal(ctx, core.Goal{UserID: u.ID, Name: "Laptop", Amount: dec("900"), Date: today.AddDays(5), Completed: true, Progress: dec("1")})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	open, err := s.OpenGoals(ctx, u.ID)
	if err != nil {
		t.Fatalf("OpenGoals: %v", err)
	}
	if len(open) != 1 || open[0].ID != g.ID || !open[0].Progress.Equal(dec("0.5")) {
		t.Fatalf("open goals = %+v", open)
	}

	g.Progress = dec("0.75")
	if _, err := s.UpdateGoal(ctx, g); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	if err := s.DeleteGoal(ctx, u.ID, done.ID); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}
	if err := s.DeleteGoal(ctx, u.ID, done.ID); !errors.Is(err, core.ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
	all, err := s.ListGoals(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListGoals: %v", err)
	}
	if len(all) != 1 || !all[0].Progress.Equal(dec("0.75")) {
		t.Fatalf("goals = %+v", all)
	}
}

func TestRebindPlaceholders(t *testing.T) {
	s := &Store{dialect: Postgres}
	got := s.q("SELECT a FROM t WHERE x = ? AND y = ?")
	if got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Fatalf("q() = %q", got)
	}
	lite := &Store{dialect: SQLite}
	if q := lite.q("x = ?"); q != "x = ?" {
		t.Fatalf("sqlite q() = %q", q)
	}
}
