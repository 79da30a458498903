package validator

import (
	"errors"
	"fmt"
	"math"

	"github.com/septivank/rental-meter-worker/internal/rows"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  string
}

// Validator checks that a row's readings can be persisted
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRow validates every enabled utility of a row. Disabled utilities
// never reach the API and are skipped.
func (v *Validator) ValidateRow(row rows.Row) ValidationResult {
	for _, u := range rows.Utilities {
		m := row.Meter(u)
		if !m.Enabled() {
			continue
		}
		if result := v.ValidateMeter(u, *m); !result.IsValid {
			return result
		}
	}
	return ValidationResult{IsValid: true}
}

// ValidateMeter validates the readings of a single utility
func (v *Validator) ValidateMeter(u rows.Utility, m rows.Meter) ValidationResult {
	result := ValidationResult{IsValid: true}

	for _, r := range []struct {
		name  string
		value *float64
	}{
		{"previous", m.Previous},
		{"current", m.Current},
	} {
		if r.value == nil {
			continue
		}
		if math.IsNaN(*r.value) || math.IsInf(*r.value, 0) {
			result.IsValid = false
			result.Reason = fmt.Sprintf("%s %s reading is not a number", u, r.name)
			return result
		}
		if *r.value < 0 {
			result.IsValid = false
			result.Reason = fmt.Sprintf("%s %s reading is negative", u, r.name)
			return result
		}
	}

	if m.Previous != nil && m.Current != nil && *m.Current < *m.Previous {
		result.IsValid = false
		result.Reason = fmt.Sprintf("%s current reading %g is lower than previous reading %g", u, *m.Current, *m.Previous)
		return result
	}

	return result
}

// Check adapts ValidateRow to the store's save guard.
func (v *Validator) Check(row rows.Row) error {
	if result := v.ValidateRow(row); !result.IsValid {
		return errors.New(result.Reason)
	}
	return nil
}
