package validation

import (
	"fmt"
	"unicode/utf8"

	dErrors "greenctf/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024
)

// Credential limits
const (
	MaxUsernameLength = 50

	// MaxEmailLength is the maximum length of an email address.
	MaxEmailLength = 255

	MinPasswordLength = 8

	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72

	// MaxTokenLength bounds session tokens read from cookies and headers.
	MaxTokenLength = 128
)

// CheckStringLength validates that a string does not exceed the maximum length in bytes.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckMinLength validates that a string has at least min characters.
func CheckMinLength(fieldName, value string, min int) error {
	if utf8.RuneCountInString(value) < min {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must be at least %d characters long", fieldName, min))
	}
	return nil
}
