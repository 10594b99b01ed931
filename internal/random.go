package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

const (
	// RefreshTokenSize is the raw entropy of a refresh token in bytes.
	RefreshTokenSize = 64
	// ResetTokenSize is the raw entropy of a password reset token in bytes.
	ResetTokenSize = 32

	minTokenSize = 32
)

// NewToken reads size bytes from r (crypto/rand when nil) and returns them
// base64url encoded without padding.
func NewToken(r io.Reader, size int) (string, error) {
	if size < minTokenSize {
		return "", errors.New("token size below 256 bits")
	}
	if r == nil {
		r = rand.Reader
	}

	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the hex SHA-256 digest under which a token value is
// persisted.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
