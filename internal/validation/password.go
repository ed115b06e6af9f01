package validation

import (
	"unicode"
)

// PasswordRules is the active password policy.
type PasswordRules struct {
	MinLength        int
	RequireUppercase bool
	RequireDigit     bool
}

var (
	// BasicPassword accepts any password of at least 6 characters.
	BasicPassword = PasswordRules{MinLength: 6}
	// StrictPassword needs 8 characters including an uppercase letter and a digit.
	StrictPassword = PasswordRules{MinLength: 8, RequireUppercase: true, RequireDigit: true}
)

// PasswordRulesFor maps a policy name from config to its rules. Unknown
// names fall back to the strict policy.
func PasswordRulesFor(policy string) PasswordRules {
	if policy == "basic" {
		return BasicPassword
	}
	return StrictPassword
}

// ValidatePassword checks password against rules.
func ValidatePassword(password string, rules PasswordRules) error {
	if password == "" {
		return invalid("password is required")
	}

	if len([]rune(password)) < rules.MinLength {
		return invalid("password must be at least %d characters", rules.MinLength)
	}

	// Maximum length: 72 bytes (bcrypt limitation)
	if len(password) > 72 {
		return invalid("password must not exceed 72 characters")
	}

	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if rules.RequireUppercase && !hasUpper {
		return invalid("password must contain at least one uppercase letter")
	}
	if rules.RequireDigit && !hasDigit {
		return invalid("password must contain at least one number")
	}

	return nil
}
