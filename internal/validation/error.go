package validation

import (
	"errors"
	"fmt"
)

// Error is a user-facing input problem. Its message is safe to show verbatim.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or anything it wraps) is an input problem.
func IsValidationError(err error) bool {
	var v *Error
	return errors.As(err, &v)
}
