package meter

import (
	"math"

	"github.com/shopspring/decimal"
)

// Float returns a pointer to v. Readings and prices are optional values, nil meaning unset.
func Float(v float64) *float64 {
	return &v
}

func isFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// ComputeUsage returns current - previous, or nil unless both readings are finite.
// A negative result is returned as-is; callers treat it as a validation signal.
func ComputeUsage(previous, current *float64) *float64 {
	if !isFinite(previous) || !isFinite(current) {
		return nil
	}
	return Float(*current - *previous)
}

// ComputeAmount prices a usage, rounded to the nearest whole currency unit and floored at zero.
// Negative usage cannot be billed and yields nil rather than a free amount.
func ComputeAmount(usage, unitPrice *float64) *float64 {
	if !isFinite(usage) || *usage < 0 || !isFinite(unitPrice) {
		return nil
	}

	amount := decimal.NewFromFloat(*usage).
		Mul(decimal.NewFromFloat(*unitPrice)).
		Round(0)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	v, _ := amount.Float64()
	return Float(v)
}

// Derived holds the read-only values computed from a utility's inputs.
type Derived struct {
	Usage  *float64
	Amount *float64
}

// Derive runs both computations for one utility.
func Derive(previous, current, unitPrice *float64) Derived {
	usage := ComputeUsage(previous, current)
	return Derived{
		Usage:  usage,
		Amount: ComputeAmount(usage, unitPrice),
	}
}
