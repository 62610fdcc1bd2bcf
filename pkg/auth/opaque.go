package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// OpaqueTokenBytes is the amount of randomness in an opaque token (256 bits).
const OpaqueTokenBytes = 32

// TokenGenerator produces opaque random tokens.
type TokenGenerator struct {
	random io.Reader
}

// NewTokenGenerator creates a generator backed by crypto/rand.
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{random: rand.Reader}
}

// Generate returns a new opaque token and the hash to persist for it.
func (g *TokenGenerator) Generate() (token string, tokenHash string, err error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken computes the SHA-256 lookup hash of an opaque token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
