package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     Cadence = "daily"
	Weekly    Cadence = "weekly"
	BiWeekly  Cadence = "bi-weekly"
	Monthly   Cadence = "monthly"
	Quarterly Cadence = "quarterly"
	Annually  Cadence = "annually"

	// NoCadence marks a one-off expense.
	NoCadence Cadence = ""
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// MaxTitleLength bounds transaction titles, in bytes.
const MaxTitleLength = 200

// PaycheckCategory is the income category treated as the canonical paycheck signal.
const PaycheckCategory = "Work"

const (
	DefaultSpendWarning   = 20
	DefaultSavingsPercent = 10
)

type (
	Cadence string

	Kind string

	Date struct {
		time.Time
	}

	User struct {
		ID             int64
		Email          string
		Name           string
		SpendWarning   int // percent of the weekly budget left that triggers a warning
		SavingsPercent int
	}

	Account struct {
		ID          int64
		UserID      int64
		Name        string
		Type        string
		Balance     decimal.Decimal
		CreditLimit decimal.NullDecimal
		LastUpdated Date
	}

	// Transaction is either an expense or an income, told apart by Kind.
	// Recurrence is only meaningful for expenses.
	Transaction struct {
		ID         int64
		Kind       Kind
		AccountID  int64
		Title      string
		Amount     decimal.Decimal
		Date       Date
		Category   string
		Recurrence Cadence
	}

	Goal struct {
		ID          int64
		UserID      int64
		Name        string
		Description string
		Amount      decimal.Decimal
		Date        Date
		Completed   bool
		Progress    decimal.Decimal
	}

	// LedgerChange is a committed transaction write and the account balances
	// it left behind. Previous is set for updates.
	LedgerChange struct {
		Transaction Transaction
		Previous    *Transaction
		Accounts    []Account
	}

	// BalanceCheck compares an account's cached balance with the balance
	// recomputed from its transactions.
	BalanceCheck struct {
		Account  Account
		Computed decimal.Decimal
	}
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrGoalNotFound         = errors.New("goal not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnknownCadence       = errors.New("unknown cadence")
	ErrInconsistentTransfer = errors.New("inconsistent transfer state")
)

// Validation errors.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyTitle        = errors.New("empty title")
	ErrTitleTooLong      = errors.New("title too long")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrKindChange        = errors.New("transaction kind cannot change")
	ErrIncomeRecurrence  = errors.New("income cannot recur")
	ErrInvalidProgress   = errors.New("progress must be between 0 and 1")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
)

// IsValidation reports whether err is a caller input problem rather than a lookup or
// store failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidDate, ErrEmptyTitle, ErrTitleTooLong, ErrEmptyCategory, ErrEmptyName,
		ErrInvalidKind, ErrKindChange, ErrIncomeRecurrence, ErrInvalidProgress,
		ErrInvalidPercentage, ErrUnknownCadence,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of whole calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate accepts the six recognized cadences and NoCadence.
func (c Cadence) Validate() error {
	switch c {
	case NoCadence, Daily, Weekly, BiWeekly, Monthly, Quarterly, Annually:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCadence, string(c))
}

func (c Cadence) IsRecurring() bool {
	return c != NoCadence
}

func (k Kind) Validate() error {
	switch k {
	case KindExpense, KindIncome:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
}

// Effect is the signed change the transaction applies to its account balance.
func (t Transaction) Effect() decimal.Decimal {
	if t.Kind == KindIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

func (t Transaction) IsPaycheck() bool {
	return t.Kind == KindIncome && t.Category == PaycheckCategory
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > MaxTitleLength {
		return fmt.Errorf("%w: max %d characters", ErrTitleTooLong, MaxTitleLength)
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Recurrence.Validate(); err != nil {
		return err
	}
	if t.Kind == KindIncome && t.Recurrence.IsRecurring() {
		return ErrIncomeRecurrence
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.CreditLimit.Valid && a.CreditLimit.Decimal.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := ValidateAmount(g.Amount); err != nil {
		return err
	}
	if err := g.Date.Validate(); err != nil {
		return err
	}
	if g.Progress.IsNegative() || g.Progress.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidProgress
	}
	return nil
}

// IsTransfer reports whether an update moved the transaction to another account.
func (c LedgerChange) IsTransfer() bool {
	return c.Previous != nil && c.Previous.AccountID != c.Transaction.AccountID
}

func (b BalanceCheck) Drift() decimal.Decimal {
	return b.Account.Balance.Sub(b.Computed)
}

func (b BalanceCheck) Consistent() bool {
	return b.Drift().IsZero()
}

// ValidatePercent checks a user percentage setting.
func ValidatePercent(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercentage, p)
	}
	return nil
}
