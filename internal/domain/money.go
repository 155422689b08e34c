package domain

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// All ledger arithmetic runs on shopspring decimals with no intermediate
// rounding. Rounding to currency precision happens once, at the reporting
// boundary, using the go-money currency registry for the fraction digits.

// KnownCurrency reports whether the ISO code exists in the currency registry
func KnownCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// CurrencyFraction returns the number of decimal digits conventionally
// displayed for a currency. Unknown codes fall back to 2.
func CurrencyFraction(code string) int {
	c := money.GetCurrency(code)
	if c == nil {
		return 2
	}
	return c.Fraction
}

// RoundReport rounds an exact amount to currency precision for display.
// Never use the result as an input to further ledger arithmetic.
func RoundReport(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(int32(CurrencyFraction(currency)))
}

// FormatReport renders an exact amount as a display string with the
// currency's conventional precision
func FormatReport(amount decimal.Decimal, currency string) string {
	return RoundReport(amount, currency).StringFixed(int32(CurrencyFraction(currency)))
}

// ParseDecimal parses a decimal from its exact textual representation.
// Used at every deserialization boundary so values never round-trip
// through binary floats.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse decimal %q: %w", s, err)
	}
	return d, nil
}

// MustDecimal parses a decimal literal and panics on failure.
// For constants and tests only.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("bad decimal literal %q: %v", s, err))
	}
	return d
}
