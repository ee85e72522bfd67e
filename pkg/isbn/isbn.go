// Package isbn normalizes and checks International Standard Book Numbers.
package isbn

import (
	"strings"
	"unicode"
)

// Normalize strips an "ISBN" label, hyphens and spaces, and upper-cases the
// ISBN-10 check character. It does not validate the result.
func Normalize(value string) string {
	value = strings.TrimSpace(strings.ToUpper(value))
	value = strings.TrimPrefix(value, "ISBN-13")
	value = strings.TrimPrefix(value, "ISBN-10")
	value = strings.TrimPrefix(value, "ISBN:")
	value = strings.TrimPrefix(value, "ISBN")

	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) || r == 'X' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether a normalized value is a well-formed ISBN-10 or
// ISBN-13 with a correct check digit.
func Valid(value string) bool {
	switch len(value) {
	case 10:
		return ValidISBN10(value)
	case 13:
		return ValidISBN13(value)
	default:
		return false
	}
}

// ValidISBN10 checks the mod-11 check digit, weights 10 down to 1.
func ValidISBN10(value string) bool {
	if len(value) != 10 {
		return false
	}

	sum := 0
	for i, r := range value {
		var digit int
		switch {
		case r == 'X' && i == 9:
			digit = 10
		case r >= '0' && r <= '9':
			digit = int(r - '0')
		default:
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

// ValidISBN13 checks the mod-10 check digit with alternating 1/3 weights.
func ValidISBN13(value string) bool {
	if len(value) != 13 {
		return false
	}

	sum := 0
	for i, r := range value {
		if r < '0' || r > '9' {
			return false
		}
		digit := int(r - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	return sum%10 == 0
}
