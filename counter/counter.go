// Package counter provides the expiring integer counters behind the account
// guard and the rate limiter.
//
// Two backends are available: Memory keeps state in process, Redis shares it
// between instances. Both guarantee that Increment is atomic per key.
package counter

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("counter backend unavailable")

// Store is the capability the lockout and rate-limit state machines are
// written against.
//
// Get returns 0 for a missing or expired key. Increment creates missing keys
// at 1 without expiry. SetExpiry on a missing key is a no-op. TTL returns 0
// for missing keys and for keys without expiry.
type Store interface {
	Get(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string) (int64, error)
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by backends that need explicit removal of expired
// keys.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}
