package services

import (
	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

// GoalContribution is the amount that must be set aside over the next window
// for g to be met on time. Completed and past-due goals contribute nothing.
func GoalContribution(g core.Goal, today core.Date) decimal.Decimal {
	if g.Completed {
		return decimal.Zero
	}
	daysLeft := today.DaysUntil(g.Date)
	if daysLeft <= 0 {
		return decimal.Zero
	}
	remaining := g.Amount.Mul(decimal.NewFromInt(1).Sub(g.Progress))
	return remaining.Mul(decimal.NewFromInt(WindowDays)).Div(decimal.NewFromInt(int64(daysLeft)))
}

// TotalGoalContribution sums the contributions of goals, floored at zero.
func TotalGoalContribution(goals []core.Goal, today core.Date) decimal.Decimal {
	total := decimal.Zero
	for _, g := range goals {
		total = total.Add(GoalContribution(g, today))
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
