package market

import (
	"errors"
	"math"
)

var (
	// ErrDivideByZero entry price of zero has no percent change.
	ErrDivideByZero = errors.New("percent change: entry price is zero")
	// ErrNonFinitePrice NaN or Inf input.
	ErrNonFinitePrice = errors.New("percent change: non-finite price")
)

// PercentChange returns (current/entry - 1) * 100.
func PercentChange(entry, current float64) (float64, error) {
	if !isFinite(entry) || !isFinite(current) {
		return 0, ErrNonFinitePrice
	}
	if entry == 0 {
		return 0, ErrDivideByZero
	}
	return (current/entry - 1) * 100, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
