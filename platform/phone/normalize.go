// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// MinDigitQueryLength is the minimum number of digits a query needs before
// it is compared on digits alone.
const MinDigitQueryLength = 3

// Digits returns only the digits of input, mapping non-ASCII digits to ASCII.
func Digits(input string) string {
	return phonenumbers.NormalizeDigitsOnly(input)
}

// DigitQuery reports whether input reads as (part of) a phone number and
// returns its digits. Inputs with letters or too few digits are rejected.
func DigitQuery(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	for _, r := range trimmed {
		if !isDialable(r) {
			return "", false
		}
	}
	digits := Digits(trimmed)
	if len(digits) < MinDigitQueryLength {
		return "", false
	}
	return digits, true
}

// ContainsDigits reports whether the digits of number contain query.
func ContainsDigits(number, query string) bool {
	if query == "" {
		return false
	}
	return strings.Contains(Digits(number), query)
}

func isDialable(r rune) bool {
	switch r {
	case '+', '-', '(', ')', '.', ' ', '/':
		return true
	}
	return r >= '0' && r <= '9'
}
