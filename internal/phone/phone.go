// Package phone normalizes stored phone numbers into the digits-only E.164
// form the gateway expects.
package phone

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/streampainel/campaign-backend/internal/models"
)

var nonDigits = regexp.MustCompile(`\D`)

// Normalize strips formatting from raw and returns a digits-only number with
// a country code. Numbers stored without one get defaultCountryCode
// prepended. Local numbers are expected to be 10 or 11 digits (landline or
// mobile with area code, as stored by the admin panel).
func Normalize(raw, defaultCountryCode string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	digits = strings.TrimLeft(digits, "0")

	if len(digits) < 10 {
		return "", models.ErrInvalidInput(fmt.Sprintf("phone number too short: %q", raw))
	}

	switch {
	case len(digits) == 10 || len(digits) == 11:
		digits = defaultCountryCode + digits
	case strings.HasPrefix(digits, defaultCountryCode) && len(digits) <= len(defaultCountryCode)+11:
		// already carries the country code
	case len(digits) <= 15:
		// foreign number with its own country code, E.164 caps at 15 digits
	default:
		return "", models.ErrInvalidInput(fmt.Sprintf("phone number too long: %q", raw))
	}

	return digits, nil
}
