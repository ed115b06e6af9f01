package validation

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lower-cases an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates email format and length using net/mail (RFC 5322).
// Display-name forms such as "Ann <ann@x.org>" are rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}

	// RFC 5321: total max 254 with @
	if len(email) > 254 {
		return invalid("email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return invalid("please enter a valid email address")
	}

	return nil
}
