package auth

import (
	"errors"
	"regexp"
	"unicode"
)

// ErrValidation is wrapped by every ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError carries a message that is safe to show to the user
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// ValidUsername reports whether username is 3 to 20 letters, digits,
// underscores or hyphens
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidatePassword requires at least 8 characters with an upper case
// letter, a lower case letter and a digit
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return invalid("Password must be at least 8 characters long")
	}
	if len(password) > 128 {
		return invalid("Password must be at most 128 characters long")
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return invalid("Password must contain an upper case letter, a lower case letter and a digit")
	}
	return nil
}
