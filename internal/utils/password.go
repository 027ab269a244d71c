package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds.  bcrypt refuses inputs over 72 bytes.
const (
	MinPasswordLen = 6
	MaxPasswordLen = 72
)

var (
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLen.
	ErrWeakPassword = errors.New("password too short")
	// ErrPasswordTooLong is returned for passwords over MaxPasswordLen bytes.
	ErrPasswordTooLong = errors.New("password too long")
)

// HashPassword validates plain and returns its bcrypt hash.  Costs outside
// bcrypt's range fall back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) < MinPasswordLen {
		return "", ErrWeakPassword
	}
	if len(plain) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a stored bcrypt hash with a candidate password.
// An empty hash never verifies.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
