// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values. Parsing accepts both dot (12.34) and comma
// (12,34) separators; display goes through go-money so currency symbols and
// grouping follow the configured ISO code.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept when amounts are stored.
const MoneyScale = 2

// ParseAmount converts a user supplied decimal string into a positive amount
// rounded half-up to MoneyScale digits.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(MoneyScale)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount requires a strictly positive amount.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// FormatMoney renders d in the given ISO currency, e.g. "$1,234.50".
// Unknown currency codes fall back to the plain decimal string.
func FormatMoney(d decimal.Decimal, currency string) string {
	if money.GetCurrency(currency) == nil {
		return d.StringFixed(MoneyScale)
	}
	cents := d.Shift(MoneyScale).Round(0).IntPart()
	return money.New(cents, currency).Display()
}
