package password

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPassword is returned when hashing an empty string.
	ErrEmptyPassword = errors.New("empty password")
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hasher is a one-way, salted password hash.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Bounded is implemented by hashers with a hard input limit in bytes.
type Bounded interface {
	MaxBytes() int
}

// Algorithm names accepted by New.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// New returns the hasher registered under algorithm. An empty name selects
// Argon2id with DefaultConfig.
func New(algorithm string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmArgon2id:
		return NewArgon2(DefaultConfig())
	case AlgorithmBcrypt:
		return NewBcrypt(0)
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", algorithm)
	}
}
