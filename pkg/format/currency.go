// Package format renders money amounts for text output.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency renders amount rounded to cents with thousands separators, followed
// by code when one is given, e.g. "-1,234.56 EUR".
func Currency(amount float64, code string) string {
	s := NumericCurrency(amount)
	if code != "" {
		s += " " + code
	}
	return s
}

// NumericCurrency is Currency without a code. Amounts that round to zero
// never carry a minus sign.
func NumericCurrency(amount float64) string {
	cents := decimal.NewFromFloat(amount).Round(2)
	if cents.IsZero() {
		return "0.00"
	}
	fixed := cents.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if cents.IsNegative() {
		b.WriteByte('-')
	}
	lead := len(whole) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(whole[:lead])
	for i := lead; i < len(whole); i += 3 {
		b.WriteByte(',')
		b.WriteString(whole[i : i+3])
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
