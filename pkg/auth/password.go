package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordEncoder hashes and verifies passwords.
type PasswordEncoder interface {
	Encode(plain string) (string, error)
	Matches(hash, plain string) bool
}

// BcryptEncoder is a PasswordEncoder backed by bcrypt.
type BcryptEncoder struct {
	cost int
}

// NewBcryptEncoder creates an encoder. A cost of zero selects bcrypt.DefaultCost.
func NewBcryptEncoder(cost int) *BcryptEncoder {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptEncoder{cost: cost}
}

// Encode hashes plain.
func (e *BcryptEncoder) Encode(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), e.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Matches reports whether plain matches hash.
func (e *BcryptEncoder) Matches(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
