package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "bfap"

// Policy names one brute-force counter family.
type Policy struct {
	Type     string
	MaxRetry int
	TTL      time.Duration
}

// Validate reports whether the policy can be enforced.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Type) == "" || strings.Contains(p.Type, ":") {
		return errors.New("policy type must be non-empty and must not contain ':'")
	}
	if p.MaxRetry < 0 {
		return errors.New("policy MaxRetry must be >= 0")
	}
	if p.TTL <= 0 {
		return errors.New("policy TTL must be > 0")
	}
	return nil
}

// inspectLua reads, checks and increments one counter in a single step.
// KEYS[1] = counter key
// ARGV[1] = max retry
// ARGV[2] = window in milliseconds
//
// Returns 1 when blocked (no write), 0 otherwise. Every allowed call
// refreshes the TTL, so the window slides on activity.
var inspectLua = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current > tonumber(ARGV[1]) then
  return 1
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 0
`)

// Guard enforces per-(type, target) attempt ceilings using Redis counters.
type Guard struct {
	redis  redis.UniversalClient
	prefix string
}

// NewGuard creates a [Guard] backed by the given Redis client.
func NewGuard(redisClient redis.UniversalClient, prefix string) *Guard {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Guard{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (g *Guard) key(policy Policy, target string) string {
	return g.prefix + ":" + policy.Type + ":" + internal.HashTarget(target)
}

// Inspect reports whether target is blocked under policy. A call that is
// not blocked counts as one attempt. A policy with MaxRetry N admits N+1
// attempts per TTL window and blocks the next one.
func (g *Guard) Inspect(ctx context.Context, policy Policy, target string) (bool, error) {
	if err := policy.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}

	result, err := inspectLua.Run(ctx, g.redis,
		[]string{g.key(policy, target)},
		policy.MaxRetry,
		policy.TTL.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return result == 1, nil
}

// Check is Inspect with the blocked outcome mapped to [ErrRateLimited].
func (g *Guard) Check(ctx context.Context, policy Policy, target string) error {
	blocked, err := g.Inspect(ctx, policy, target)
	if err != nil {
		return err
	}
	if blocked {
		return ErrRateLimited
	}
	return nil
}

// Attempts returns the current counter for target. Missing counters
// return zero.
func (g *Guard) Attempts(ctx context.Context, policy Policy, target string) (int, error) {
	count, err := g.redis.Get(ctx, g.key(policy, target)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter for target.
func (g *Guard) Reset(ctx context.Context, policy Policy, target string) error {
	if err := g.redis.Del(ctx, g.key(policy, target)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
