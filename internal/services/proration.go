// Package services provides business logic and orchestration services.
//
// This file converts recurring expense cadences into their equivalent cost
// over the fourteen day budgeting window.

package services

import (
	"fmt"

	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

// WindowDays is the length of the budgeting window every cadence is prorated to.
const WindowDays = 14

// cadenceDays maps each recognized cadence to its period length in days.
var cadenceDays = map[core.Cadence]int64{
	core.Daily:     1,
	core.Weekly:    7,
	core.BiWeekly:  14,
	core.Monthly:   30,
	core.Quarterly: 91,
	core.Annually:  365,
}

// CadenceDays returns the period length of a cadence.
func CadenceDays(c core.Cadence) (int64, error) {
	days, ok := cadenceDays[c]
	if !ok {
		return 0, fmt.Errorf("%w: %q", core.ErrUnknownCadence, string(c))
	}
	return days, nil
}

// Prorate returns amount × 14 / days(cadence).
func Prorate(amount decimal.Decimal, c core.Cadence) (decimal.Decimal, error) {
	days, err := CadenceDays(c)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(decimal.NewFromInt(WindowDays)).Div(decimal.NewFromInt(days)), nil
}

// ProrateAll sums the prorated cost of every recurring expense.
func ProrateAll(expenses []core.Transaction) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range expenses {
		p, err := Prorate(e.Amount, e.Recurrence)
		if err != nil {
			return decimal.Zero, fmt.Errorf("prorate %q: %w", e.Title, err)
		}
		total = total.Add(p)
	}
	return total, nil
}
