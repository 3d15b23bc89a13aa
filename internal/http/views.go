package http

import (
	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
	"pocketbook/internal/services"
)

// JSON shapes of the API. Amounts are decimal strings.

type accountView struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Balance     decimal.Decimal     `json:"balance"`
	CreditLimit decimal.NullDecimal `json:"credit_limit"`
	LastUpdated core.Date           `json:"last_updated"`
}

func newAccountView(a core.Account) accountView {
	return accountView{
		ID:          a.ID,
		Name:        a.Name,
		Type:        a.Type,
		Balance:     a.Balance,
		CreditLimit: a.CreditLimit,
		LastUpdated: a.LastUpdated,
	}
}

type transactionView struct {
	ID         int64           `json:"id"`
	Kind       core.Kind       `json:"kind"`
	AccountID  int64           `json:"account_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Date       core.Date       `json:"date"`
	Category   string          `json:"category"`
	Recurrence *core.Cadence   `json:"recurrence"`
}

func newTransactionView(t core.Transaction) transactionView {
	v := transactionView{
		ID:        t.ID,
		Kind:      t.Kind,
		AccountID: t.AccountID,
		Title:     t.Title,
		Amount:    t.Amount,
		Date:      t.Date,
		Category:  t.Category,
	}
	if t.Recurrence.IsRecurring() {
		c := t.Recurrence
		v.Recurrence = &c
	}
	return v
}

func newTransactionViews(ts []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTransactionView(t))
	}
	return out
}

type goalView struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        core.Date       `json:"date"`
	Completed   bool            `json:"completed"`
	Progress    decimal.Decimal `json:"progress"`
}

func newGoalView(g core.Goal) goalView {
	return goalView{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Amount:      g.Amount,
		Date:        g.Date,
		Completed:   g.Completed,
		Progress:    g.Progress,
	}
}

type userView struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	SpendWarning   int    `json:"spend_warning"`
	SavingsPercent int    `json:"savings_percent"`
}

func newUserView(u core.User) userView {
	return userView{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		SpendWarning:   u.SpendWarning,
		SavingsPercent: u.SavingsPercent,
	}
}

type allotmentView struct {
	Date           core.Date       `json:"date"`
	HasPaycheck    bool            `json:"has_paycheck"`
	Paycheck       decimal.Decimal `json:"paycheck"`
	Fixed          decimal.Decimal `json:"fixed"`
	SavingsPercent int             `json:"savings_percent"`
	Savings        decimal.Decimal `json:"savings"`
	Goals          decimal.Decimal `json:"goals"`
	Remaining      decimal.Decimal `json:"remaining"`
	Allotment      decimal.Decimal `json:"allotment"`
}

func newAllotmentView(a services.Allotment) allotmentView {
	return allotmentView{
		Date:           a.Date,
		HasPaycheck:    a.HasPaycheck,
		Paycheck:       a.Paycheck.Round(2),
		Fixed:          a.Fixed.Round(2),
		SavingsPercent: a.SavingsPercent,
		Savings:        a.Savings.Round(2),
		Goals:          a.Goals.Round(2),
		Remaining:      a.Remaining.Round(2),
		Allotment:      a.Amount.Round(2),
	}
}

type spendView struct {
	Start core.Date       `json:"start"`
	End   core.Date       `json:"end"`
	Spend decimal.Decimal `json:"spend"`
}

type spendStatusView struct {
	WindowStart      core.Date       `json:"window_start"`
	WindowEnd        core.Date       `json:"window_end"`
	WeeklyBudget     decimal.Decimal `json:"weekly_budget"`
	WeeklySpend      decimal.Decimal `json:"weekly_spend"`
	SafeToSpend      decimal.Decimal `json:"safe_to_spend"`
	RemainingPercent decimal.Decimal `json:"remaining_percent"`
	WarningThreshold int             `json:"warning_threshold"`
	Warning          bool            `json:"warning"`
}

func newSpendStatusView(s services.SpendStatus) spendStatusView {
	return spendStatusView{
		WindowStart:      s.WindowStart,
		WindowEnd:        s.WindowEnd,
		WeeklyBudget:     s.WeeklyBudget.Round(2),
		WeeklySpend:      s.WeeklySpend.Round(2),
		SafeToSpend:      s.SafeToSpend.Round(2),
		RemainingPercent: s.RemainingPercent.Round(2),
		WarningThreshold: s.WarningThreshold,
		Warning:          s.Warning,
	}
}
