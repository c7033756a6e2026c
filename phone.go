package auth

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers written without a country code.
var DefaultPhoneRegion = "IN"

// NormalizePhoneNumber parses phone and formats it as E.164 so lookups by
// phone match however the number was typed.
func NormalizePhoneNumber(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrInvalidPhoneNumber
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil {
		return "", ErrInvalidPhoneNumber.Clone().WithMetadata(map[string]any{
			"phone": phone,
			"error": err.Error(),
		})
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhoneNumber.Clone().WithMetadata(map[string]any{
			"phone": phone,
		})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
