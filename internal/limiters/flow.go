package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/saraAuth/internal/rate"
)

var (
	ErrFlowRateLimited        = errors.New("flow rate limited")
	ErrFlowLimiterUnavailable = errors.New("flow limiter unavailable")
)

// Flow identifies which request-side IP policy applies.
type Flow int

const (
	FlowLogin Flow = iota
	FlowRegister
	FlowEmailChange
	FlowPasskey
)

func (f Flow) String() string {
	switch f {
	case FlowLogin:
		return "login"
	case FlowRegister:
		return "register"
	case FlowEmailChange:
		return "email_change"
	case FlowPasskey:
		return "passkey"
	default:
		return "unknown"
	}
}

type Config struct {
	IPLogin    rate.Policy
	IPRegister rate.Policy
	IPPasskey  rate.Policy
	CodeGuess  rate.Policy
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		IPLogin:    rate.Policy{Type: "ip_login", MaxRetry: 10, TTL: time.Hour},
		IPRegister: rate.Policy{Type: "ip_register", MaxRetry: 20, TTL: time.Hour},
		IPPasskey:  rate.Policy{Type: "ip_passkey", MaxRetry: 10, TTL: time.Hour},
		CodeGuess:  rate.Policy{Type: "code_token", MaxRetry: 10, TTL: 24 * time.Hour},
	}
}

type FlowLimiter struct {
	guard  *rate.Guard
	config Config
}

func NewFlowLimiter(guard *rate.Guard, cfg Config) *FlowLimiter {
	return &FlowLimiter{
		guard:  guard,
		config: cfg,
	}
}

// CheckRequest throttles the session-creating half of a flow by client IP.
// An empty ip skips the check.
func (l *FlowLimiter) CheckRequest(ctx context.Context, flow Flow, ip string) error {
	if l == nil || l.guard == nil || ip == "" {
		return nil
	}
	return l.check(ctx, l.ipPolicy(flow), ip)
}

// CheckConfirm throttles guesses against one session id, and the client IP
// under the flow's policy.
func (l *FlowLimiter) CheckConfirm(ctx context.Context, flow Flow, sessionID, ip string) error {
	if l == nil || l.guard == nil {
		return nil
	}
	if err := l.check(ctx, l.config.CodeGuess, sessionID); err != nil {
		return err
	}
	if ip == "" {
		return nil
	}
	return l.check(ctx, l.ipPolicy(flow), ip)
}

func (l *FlowLimiter) ipPolicy(flow Flow) rate.Policy {
	switch flow {
	case FlowRegister:
		return l.config.IPRegister
	case FlowPasskey:
		return l.config.IPPasskey
	default:
		return l.config.IPLogin
	}
}

func (l *FlowLimiter) check(ctx context.Context, policy rate.Policy, target string) error {
	err := l.guard.Check(ctx, policy, target)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrFlowRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrFlowLimiterUnavailable, err)
	}
}
