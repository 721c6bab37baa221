package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	currencyPlaces = 2
	// inputPlaces is the scale stored for quantities, unit prices and percentages.
	inputPlaces = 4
)

// Column bounds: quantities and unit prices are NUMERIC(18,4), money columns
// NUMERIC(18,2), the percentage NUMERIC(7,4).
var (
	maxInputValue = decimal.New(1, 14)
	maxMoneyValue = decimal.New(1, 16)
	maxPercentage = decimal.NewFromInt(1000)
)

// DefaultGeneralConditionsPercentage applies whenever the percentage is absent
// or unreadable. This is a business rule, not error recovery.
var DefaultGeneralConditionsPercentage = decimal.RequireFromString("18.5")

var hundred = decimal.NewFromInt(100)

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}

// ParsePercentage never fails: blank, null or garbage input yields the default.
func ParsePercentage(raw string) decimal.Decimal {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" || strings.EqualFold(raw, "null") {
		return DefaultGeneralConditionsPercentage
	}
	raw = strings.TrimSuffix(raw, "%")
	pct, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return DefaultGeneralConditionsPercentage
	}
	return pct
}

// ParseAmount reads a monetary amount; blank or unparsable input is InvalidAmount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" || strings.EqualFold(raw, "null") {
		return decimal.Zero, fail(ErrInvalidAmount, "amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fail(ErrInvalidAmount, "amount %q is not a decimal number", raw)
	}
	return amount, nil
}

// fitsScale reports whether d carries no more than places decimals.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Round(places).Equal(d)
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return Round2(d).StringFixed(currencyPlaces)
}
