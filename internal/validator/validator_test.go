package validator_test

import (
	"math"
	"testing"

	"github.com/septivank/rental-meter-worker/internal/meter"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/septivank/rental-meter-worker/internal/validator"
)

func ref(s string) *string { return &s }

func TestValidateRow_ValidReadings(t *testing.T) {
	v := validator.NewValidator()
	row := rows.NewRow("c1", "A101", "", "",
		rows.Meter{ServiceRef: ref("e"), Previous: meter.Float(100), Current: meter.Float(137)},
		rows.Meter{ServiceRef: ref("w"), Previous: meter.Float(5), Current: meter.Float(5)},
	)

	result := v.ValidateRow(row)
	if !result.IsValid {
		t.Errorf("Expected valid result, got invalid: %s", result.Reason)
	}
}

func TestValidateRow_CurrentBelowPrevious(t *testing.T) {
	v := validator.NewValidator()
	row := rows.NewRow("c1", "A101", "", "",
		rows.Meter{ServiceRef: ref("e"), Previous: meter.Float(100), Current: meter.Float(90)},
		rows.Meter{},
	)

	result := v.ValidateRow(row)
	if result.IsValid {
		t.Fatal("Expected invalid result for current below previous")
	}
	expected := "electricity current reading 90 is lower than previous reading 100"
	if result.Reason != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result.Reason)
	}
	if err := v.Check(row); err == nil || err.Error() != expected {
		t.Errorf("Expected Check to return '%s', got %v", expected, err)
	}
}

func TestValidateRow_DisabledUtilitySkipped(t *testing.T) {
	v := validator.NewValidator()
	row := rows.NewRow("c1", "A101", "", "",
		rows.Meter{ServiceRef: ref("e"), Current: meter.Float(10)},
		rows.Meter{Previous: meter.Float(50), Current: meter.Float(1)},
	)

	if result := v.ValidateRow(row); !result.IsValid {
		t.Errorf("Expected disabled water meter to be ignored, got: %s", result.Reason)
	}
}

func TestValidateMeter_PartialReadingIsValid(t *testing.T) {
	v := validator.NewValidator()

	result := v.ValidateMeter(rows.Water, rows.Meter{ServiceRef: ref("w"), Current: meter.Float(12)})
	if !result.IsValid {
		t.Errorf("Expected valid result, got invalid: %s", result.Reason)
	}
}

func TestValidateMeter_NegativeReading(t *testing.T) {
	v := validator.NewValidator()

	result := v.ValidateMeter(rows.Water, rows.Meter{ServiceRef: ref("w"), Previous: meter.Float(-1)})
	if result.IsValid {
		t.Fatal("Expected invalid result for negative reading")
	}
	if result.Reason != "water previous reading is negative" {
		t.Errorf("Expected 'water previous reading is negative', got '%s'", result.Reason)
	}
}

func TestValidateMeter_NotANumber(t *testing.T) {
	v := validator.NewValidator()

	result := v.ValidateMeter(rows.Electricity, rows.Meter{ServiceRef: ref("e"), Current: meter.Float(math.NaN())})
	if result.IsValid {
		t.Error("Expected invalid result for NaN reading")
	}
}
