package rate

import "errors"

var (
	// ErrRateLimited is returned by Consume when the bucket is empty.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps counter backend failures.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)
