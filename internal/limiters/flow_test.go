package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/saraAuth/internal/rate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newFlowLimiterTest(t *testing.T, cfg Config) (*FlowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewFlowLimiter(rate.NewGuard(rdb, ""), cfg), mr
}

func TestNilFlowLimiterAllows(t *testing.T) {
	var l *FlowLimiter
	if err := l.CheckRequest(context.Background(), FlowLogin, "1.1.1.1"); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
	if err := l.CheckConfirm(context.Background(), FlowLogin, "sid", "1.1.1.1"); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
}

func TestCheckRequestUsesFlowPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IPLogin.MaxRetry = 1
	l, _ := newFlowLimiterTest(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRequest(ctx, FlowLogin, "1.1.1.1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := l.CheckRequest(ctx, FlowLogin, "1.1.1.1"); !errors.Is(err, ErrFlowRateLimited) {
		t.Fatalf("expected ErrFlowRateLimited, got %v", err)
	}
	if err := l.CheckRequest(ctx, FlowRegister, "1.1.1.1"); err != nil {
		t.Fatalf("register flow must use its own policy: %v", err)
	}
	if err := l.CheckRequest(ctx, FlowLogin, ""); err != nil {
		t.Fatalf("empty ip must skip: %v", err)
	}
}

func TestCheckConfirmThrottlesSessionGuesses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CodeGuess = rate.Policy{Type: "code_token", MaxRetry: 2, TTL: time.Hour}
	l, _ := newFlowLimiterTest(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckConfirm(ctx, FlowLogin, "sid-1", ""); err != nil {
			t.Fatalf("guess %d: %v", i, err)
		}
	}
	if err := l.CheckConfirm(ctx, FlowLogin, "sid-1", ""); !errors.Is(err, ErrFlowRateLimited) {
		t.Fatalf("expected ErrFlowRateLimited, got %v", err)
	}
	if err := l.CheckConfirm(ctx, FlowLogin, "sid-2", ""); err != nil {
		t.Fatalf("other session must not be throttled: %v", err)
	}
}

func TestFlowLimiterUnavailable(t *testing.T) {
	l, mr := newFlowLimiterTest(t, DefaultConfig())
	mr.Close()

	if err := l.CheckRequest(context.Background(), FlowLogin, "1.1.1.1"); !errors.Is(err, ErrFlowLimiterUnavailable) {
		t.Fatalf("expected ErrFlowLimiterUnavailable, got %v", err)
	}
}
