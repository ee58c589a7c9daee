package common

import "github.com/shopspring/decimal"

// Amount renders a computed amount with two decimal places for display. Computation stays in
// float64; rounding happens only here at the edge.
func Amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// AmountSum renders the total of values after rounding each one to two decimals, so a
// displayed total always equals the sum of the displayed parts.
func AmountSum(values ...float64) string {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v).Round(2))
	}
	return sum.StringFixed(2)
}

// Percent renders a percentage without trailing zeros.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).String()
}
