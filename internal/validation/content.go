package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateText checks a required free-text field against a maximum length.
func ValidateText(field, value string, max int) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return invalid("%s is required", field)
	}
	if utf8.RuneCountInString(trimmed) > max {
		return invalid("%s is too long (max %d characters)", field, max)
	}
	return nil
}

func ValidateTitle(title string) error {
	return ValidateText("title", title, 200)
}

func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return invalid("please describe the problem")
	}
	return ValidateText("reason", reason, 2000)
}

// ValidateName checks a profile display name. Control characters are refused.
func ValidateName(name string) error {
	err := ValidateText("name", name, 100)
	if err != nil {
		return err
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return invalid("name contains invalid characters")
	}
	return nil
}
