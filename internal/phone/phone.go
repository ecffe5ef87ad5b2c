// Package phone canonicalizes payer phone numbers into the gateway's
// 254XXXXXXXXX format.
package phone

import (
	"strings"
	"unicode"
)

const countryCode = "254"

// Normalize strips whitespace, hyphens and parentheses, replaces a leading
// zero with the country code and drops a leading plus. No digit-count
// validation happens here; the gateway is the authority on what it accepts
// and rejects malformed numbers at initiation.
func Normalize(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == '-' || r == '(' || r == ')':
			return -1
		}
		return r
	}, raw)

	cleaned = strings.TrimPrefix(cleaned, "+")
	if strings.HasPrefix(cleaned, "0") {
		cleaned = countryCode + cleaned[1:]
	}
	return cleaned
}
