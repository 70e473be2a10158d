// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers written without a country prefix.
const DefaultRegion = "FR"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	return NormalizeE164ForRegion(input, DefaultRegion)
}

// NormalizeE164ForRegion is NormalizeE164 with an explicit fallback region.
func NormalizeE164ForRegion(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Display formats an E.164 number for humans in national notation ("06 12 34 56 78").
func Display(e164 string) string {
	number, err := phonenumbers.Parse(e164, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return e164
	}
	return phonenumbers.Format(number, phonenumbers.NATIONAL)
}
