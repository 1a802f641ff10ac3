package rate

import "errors"

var (
	// ErrRateLimited is returned by [Guard.Check] when the ceiling is exceeded.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrPolicyInvalid wraps a [Policy.Validate] failure.
	ErrPolicyInvalid = errors.New("invalid policy")
)
