// Package luhn validates card numbers with the Luhn (mod 10) checksum.
package luhn

import (
	"errors"
	"fmt"
)

// ErrNotDigits is returned by CheckDigit for input containing anything but 0-9.
var ErrNotDigits = errors.New("luhn: input must contain only digits")

// IsValid reports whether text is a non-empty digit string passing the Luhn check.
// Any non-digit character makes it invalid; no cleaning is applied.
//
// Scanning from the rightmost digit, every second digit is doubled
// (starting with the second from the right), 9 is subtracted from
// doubled values above 9, and the total must be divisible by 10.
//
// Example:
//
//	IsValid("4532015112830366") => true
//	IsValid("4532015112830367") => false
//	IsValid("abc123")           => false
func IsValid(text string) bool {
	if !allDigits(text) {
		return false
	}
	return sum(text, false)%10 == 0
}

// CheckDigit returns the digit that makes partial+digit pass IsValid.
func CheckDigit(partial string) (byte, error) {
	if !allDigits(partial) {
		return 0, fmt.Errorf("%w: %q", ErrNotDigits, partial)
	}
	// Appending a digit shifts every existing position left by one.
	s := sum(partial, true)
	return byte('0' + (10-s%10)%10), nil
}

// Verdict formats the validity line written next to a recovered number.
func Verdict(number string) string {
	mark := "False"
	if IsValid(number) {
		mark = "True"
	}
	return fmt.Sprintf("%s is %s", number, mark)
}

func sum(digits string, doubleFirst bool) int {
	total := 0
	double := doubleFirst
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		total += d
		double = !double
	}
	return total
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
