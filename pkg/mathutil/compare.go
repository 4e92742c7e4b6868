// Package mathutil holds the float comparisons used on prices and budgets.
package mathutil

import (
	"math"

	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
)

// IsZero reports whether an amount is within a cent of zero.
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// Exceeds reports whether sum is over budget once float drift is discounted.
func Exceeds(sum, budget float64) bool {
	return sum > budget+constants.BudgetEpsilon
}

// AtLeast reports whether sum reaches target once float drift is discounted.
func AtLeast(sum, target float64) bool {
	return sum+constants.BudgetEpsilon >= target
}

// IncrementalMean folds value into a running mean over n samples (n counts value).
func IncrementalMean(mean float64, n int, value float64) float64 {
	if n <= 0 {
		return value
	}
	return mean + (value-mean)/float64(n)
}
