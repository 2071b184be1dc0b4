// Package dmerr defines the error kinds surfaced by the messaging domain.
// Every domain failure wraps exactly one of the sentinels below so callers
// can classify with errors.Is; anything else is an infrastructure failure.
package dmerr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or business-rule-violating input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden marks an authenticated but unauthorized actor.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
)

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Forbiddenf wraps ErrForbidden with a formatted detail message.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrForbidden)
}

// NotFoundf wraps ErrNotFound with a formatted detail message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsForbidden(err error) bool  { return errors.Is(err, ErrForbidden) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
