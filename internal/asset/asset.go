// Package asset handles security identifier validation for master data
// registration: ticker format checks and ISO 6166 ISIN check-digit
// verification.
package asset

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidTicker = errors.New("asset: invalid ticker format")
	ErrInvalidISIN   = errors.New("asset: invalid ISIN")
)

// tickerRegex matches exchange tickers: 1–12 uppercase letters, digits,
// and dots. Example: BMW.DE, AAPL, 7203
var tickerRegex = regexp.MustCompile(`^[A-Z0-9.]{1,12}$`)

// isinRegex matches the ISIN shape: 2-letter country code, 9 alphanumeric
// characters, 1 check digit. Example: US0378331005
var isinRegex = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// ValidateTicker checks the ticker format used to key master data.
func ValidateTicker(ticker string) error {
	if !tickerRegex.MatchString(ticker) {
		return fmt.Errorf("%w: %q (expected 1-12 uppercase alphanumeric characters)",
			ErrInvalidTicker, ticker)
	}
	return nil
}

// ValidateISIN checks an ISIN per ISO 6166: format, then the Luhn check
// digit computed over the identifier with letters expanded to two digits
// (A=10 … Z=35).
func ValidateISIN(isin string) error {
	if !isinRegex.MatchString(isin) {
		return fmt.Errorf("%w: %q (expected 2-letter country code, 9 alphanumerics, check digit)",
			ErrInvalidISIN, isin)
	}

	// Expand letters to their two-digit values.
	var digits []int
	for _, c := range isin {
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, int(c-'0'))
		default:
			v := int(c-'A') + 10
			digits = append(digits, v/10, v%10)
		}
	}

	// Luhn over the expanded digit string, check digit included: doubling
	// starts at the second digit from the right.
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	if sum%10 != 0 {
		return fmt.Errorf("%w: %q (check digit mismatch)", ErrInvalidISIN, isin)
	}
	return nil
}
