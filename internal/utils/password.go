package utils

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Password length limits.  bcrypt reads at most 72 bytes.
const (
	MinPasswordLen   = 8
	MaxPasswordBytes = 72
)

var (
	ErrWeakPassword    = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	ErrInvalidHashCost = errors.New("bcrypt cost out of range")
)

// ValidatePassword checks a plain password against the length limits.
// Length is counted in characters for the minimum and bytes for the maximum.
func ValidatePassword(plain string) error {
	if utf8.RuneCountInString(plain) < MinPasswordLen {
		return ErrWeakPassword
	}
	if len(plain) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword validates plain and returns its bcrypt hash at cost.  A cost
// outside [bcrypt.MinCost, bcrypt.MaxCost] is an error instead of a silent
// fallback to the default.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("%w: %d", ErrInvalidHashCost, cost)
	}
	if err := ValidatePassword(plain); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
