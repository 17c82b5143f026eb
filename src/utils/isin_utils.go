package utils

import (
	"fmt"
	"strings"
)

// NormalizeISIN upper-cases and trims an ISIN and checks its shape and check digit.
func NormalizeISIN(isin string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(isin))
	if len(s) != 12 {
		return "", fmt.Errorf("invalid ISIN %q: want 12 characters", isin)
	}
	for i, r := range s {
		switch {
		case i < 2 && (r < 'A' || r > 'Z'):
			return "", fmt.Errorf("invalid ISIN %q: country prefix must be letters", isin)
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
		default:
			return "", fmt.Errorf("invalid ISIN %q: unexpected character %q", isin, r)
		}
	}
	if !isinChecksumOK(s) {
		return "", fmt.Errorf("invalid ISIN %q: check digit mismatch", isin)
	}
	return s, nil
}

// CountryCode returns the two-letter prefix of an ISIN.
func CountryCode(isin string) string {
	if len(isin) < 2 {
		return ""
	}
	return strings.ToUpper(isin[:2])
}

// isinChecksumOK expands letters to two digits (A=10) and runs Luhn over the result.
func isinChecksumOK(isin string) bool {
	var digits []int
	for _, r := range isin {
		if r >= 'A' && r <= 'Z' {
			v := int(r-'A') + 10
			digits = append(digits, v/10, v%10)
			continue
		}
		digits = append(digits, int(r-'0'))
	}
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
	return sum%10 == 0
}
