package asset

import (
	"errors"
	"testing"
)

func TestValidateTicker(t *testing.T) {
	valid := []string{"AAPL", "BMW.DE", "7203", "A", "BRK.B"}
	for _, tk := range valid {
		if err := ValidateTicker(tk); err != nil {
			t.Errorf("ValidateTicker(%q): unexpected error %v", tk, err)
		}
	}

	invalid := []string{"", "aapl", "BMW DE", "TOOLONGTICKER1", "AB-C"}
	for _, tk := range invalid {
		if err := ValidateTicker(tk); !errors.Is(err, ErrInvalidTicker) {
			t.Errorf("ValidateTicker(%q): expected ErrInvalidTicker, got %v", tk, err)
		}
	}
}

func TestValidateISIN_Valid(t *testing.T) {
	// Real ISINs with correct Luhn check digits.
	valid := []string{
		"US0378331005", // Apple
		"DE0007164600", // SAP
	}
	for _, isin := range valid {
		if err := ValidateISIN(isin); err != nil {
			t.Errorf("ValidateISIN(%q): unexpected error %v", isin, err)
		}
	}
}

func TestValidateISIN_BadCheckDigit(t *testing.T) {
	if err := ValidateISIN("US0378331004"); !errors.Is(err, ErrInvalidISIN) {
		t.Errorf("expected ErrInvalidISIN for wrong check digit, got %v", err)
	}
}

func TestValidateISIN_BadShape(t *testing.T) {
	invalid := []string{
		"",
		"US037833100",    // too short
		"US03783310055",  // too long
		"us0378331005",   // lowercase country code
		"0S0378331005",   // digit where country code expected
		"US037833100A",   // letter where check digit expected
	}
	for _, isin := range invalid {
		if err := ValidateISIN(isin); !errors.Is(err, ErrInvalidISIN) {
			t.Errorf("ValidateISIN(%q): expected ErrInvalidISIN, got %v", isin, err)
		}
	}
}
