package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authsvc/counter"
)

// Config holds bucket tuning parameters.
type Config struct {
	Capacity int
	Interval time.Duration
}

// Decision is the outcome of one consume attempt.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a token bucket keyed by client identity.
type Limiter struct {
	counters counter.Store
	config   Config
}

// New creates a Limiter over the given counter backend.
func New(counters counter.Store, cfg Config) *Limiter {
	return &Limiter{
		counters: counters,
		config:   cfg,
	}
}

func bucketKey(identity string) string {
	return "rl:" + identity
}

// TryConsume takes one permit for identity if one is available.
func (l *Limiter) TryConsume(ctx context.Context, identity string) (Decision, error) {
	key := bucketKey(identity)

	count, err := l.counters.Increment(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count == 1 {
		if err := l.counters.SetExpiry(ctx, key, l.config.Interval); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if count <= int64(l.config.Capacity) {
		return Decision{Allowed: true, Remaining: l.config.Capacity - int(count)}, nil
	}

	retry, err := l.counters.TTL(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if retry <= 0 {
		// The expiry was lost (for example a crash between INCR and EXPIRE);
		// re-arm it so the bucket cannot stay empty forever.
		if err := l.counters.SetExpiry(ctx, key, l.config.Interval); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		retry = l.config.Interval
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}

// Consume is TryConsume reporting an empty bucket as ErrRateLimited.
func (l *Limiter) Consume(ctx context.Context, identity string) error {
	d, err := l.TryConsume(ctx, identity)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ErrRateLimited
	}
	return nil
}

// Remaining reports the permits left for identity without consuming one.
func (l *Limiter) Remaining(ctx context.Context, identity string) (int, error) {
	n, err := l.counters.Get(ctx, bucketKey(identity))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	left := l.config.Capacity - int(n)
	if left < 0 {
		left = 0
	}
	return left, nil
}
