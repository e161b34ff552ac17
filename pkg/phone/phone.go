// Package phone normalizes Brazilian WhatsApp numbers so that the same contact
// is matched regardless of how a portal or form formatted it.
package phone

import (
	"errors"
	"strings"
	"unicode"
)

// CountryCode is prefixed to national numbers.
const CountryCode = "55"

var ErrInvalid = errors.New("invalid phone number")

// Normalize keeps the digits of raw, drops trunk prefixes and prefixes the
// country code to national numbers (10 or 11 digits with area code).
// The result is empty when raw has no digits.
func Normalize(raw string) string {
	var sb strings.Builder

	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			sb.WriteRune(r)
		}
	}

	digits := strings.TrimLeft(sb.String(), "0")

	if len(digits) == 10 || len(digits) == 11 {
		return CountryCode + digits
	}

	return digits
}

// Parse normalizes raw and rejects values that cannot be a WhatsApp number.
func Parse(raw string) (string, error) {
	normalized := Normalize(raw)
	if len(normalized) < 12 || len(normalized) > 13 || !strings.HasPrefix(normalized, CountryCode) {
		return "", ErrInvalid
	}

	return normalized, nil
}
