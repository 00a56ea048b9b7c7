package model

import (
	"errors"
	"fmt"
)

// ValidationError marks a client-supplied value that broke a domain rule.
// Handlers turn these into 400 responses with the message as-is.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
