// Package auth provides password hashing and signed bearer tokens.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLen is the minimum accepted password length.
	MinPasswordLen = 8
	// MaxPasswordLen caps passwords at bcrypt's input limit.
	MaxPasswordLen = 72
)

// ErrBadPassword is returned when a password fails the length rules.
var ErrBadPassword = fmt.Errorf(
	"password must be %d-%d characters", MinPasswordLen, MaxPasswordLen,
)

// HashPassword validates length rules and returns a bcrypt hash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return "", ErrBadPassword
	}
	hash, err := bcrypt.GenerateFromPassword(
		[]byte(password), bcrypt.DefaultCost,
	)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword(
		[]byte(hash), []byte(password),
	) == nil
}
