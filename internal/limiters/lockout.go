package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authsvc/counter"
)

// LockoutConfig holds configuration for the failed-login guard.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
	// AttemptWindow bounds how long a partial failure streak is remembered.
	// Zero keeps it until the next success or lock.
	AttemptWindow time.Duration
}

// ErrLockoutUnavailable indicates the counter backend is unreachable.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// Guard tracks consecutive failed logins per username and locks the name
// once MaxAttempts is reached. A lock is a separate expiring key, so it
// lapses on its own once Duration has passed.
type Guard struct {
	counters counter.Store
	config   LockoutConfig
}

// NewGuard creates a Guard over the given counter backend.
func NewGuard(counters counter.Store, cfg LockoutConfig) *Guard {
	return &Guard{counters: counters, config: cfg}
}

func attemptKey(username string) string {
	return "alo:n:" + username
}

func blockKey(username string) string {
	return "alo:b:" + username
}

// IsBlocked reports whether username is currently locked.
func (g *Guard) IsBlocked(ctx context.Context, username string) (bool, error) {
	n, err := g.counters.Get(ctx, blockKey(username))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return n > 0, nil
}

// RegisterFailure records one failed attempt. It returns true when this
// failure locked the account; the streak counter is cleared at that point so
// a new cycle starts after the lock lapses.
func (g *Guard) RegisterFailure(ctx context.Context, username string) (bool, error) {
	count, err := g.counters.Increment(ctx, attemptKey(username))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	if count == 1 && g.config.AttemptWindow > 0 {
		if err := g.counters.SetExpiry(ctx, attemptKey(username), g.config.AttemptWindow); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}

	if count < int64(g.config.MaxAttempts) {
		return false, nil
	}

	if _, err := g.counters.Increment(ctx, blockKey(username)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if err := g.counters.SetExpiry(ctx, blockKey(username), g.config.Duration); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if err := g.counters.Delete(ctx, attemptKey(username)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return true, nil
}

// Reset clears the failure streak after a successful login.
func (g *Guard) Reset(ctx context.Context, username string) error {
	if err := g.counters.Delete(ctx, attemptKey(username)); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Failures returns the current streak length.
func (g *Guard) Failures(ctx context.Context, username string) (int, error) {
	n, err := g.counters.Get(ctx, attemptKey(username))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(n), nil
}
