package rate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newGuardTest(t *testing.T) (*Guard, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewGuard(rdb, ""), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

var loginPolicy = Policy{Type: "ip_login", MaxRetry: 10, TTL: time.Hour}

func TestInspectCeiling(t *testing.T) {
	g, _, done := newGuardTest(t)
	defer done()
	ctx := context.Background()

	// MaxRetry+1 attempts are allowed, the next one is blocked.
	for i := 0; i <= loginPolicy.MaxRetry; i++ {
		blocked, err := g.Inspect(ctx, loginPolicy, "10.0.0.1")
		if err != nil {
			t.Fatalf("inspect %d: %v", i, err)
		}
		if blocked {
			t.Fatalf("attempt %d blocked too early", i)
		}
	}
	blocked, err := g.Inspect(ctx, loginPolicy, "10.0.0.1")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !blocked {
		t.Fatal("expected target to be blocked")
	}

	// Blocked calls do not write.
	n, err := g.Attempts(ctx, loginPolicy, "10.0.0.1")
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if n != loginPolicy.MaxRetry+1 {
		t.Fatalf("expected counter %d, got %d", loginPolicy.MaxRetry+1, n)
	}
}

func TestInspectZeroMaxRetryAdmitsOne(t *testing.T) {
	g, _, done := newGuardTest(t)
	defer done()
	ctx := context.Background()
	policy := Policy{Type: "code_token", MaxRetry: 0, TTL: time.Minute}

	for i, want := range []bool{false, true} {
		blocked, err := g.Inspect(ctx, policy, "t1")
		if err != nil {
			t.Fatalf("inspect %d: %v", i, err)
		}
		if blocked != want {
			t.Fatalf("attempt %d: expected blocked=%v", i, want)
		}
	}
}

func TestInspectIsolatesTargetsAndTypes(t *testing.T) {
	g, _, done := newGuardTest(t)
	defer done()
	ctx := context.Background()

	for i := 0; i <= loginPolicy.MaxRetry+1; i++ {
		_, _ = g.Inspect(ctx, loginPolicy, "a")
	}
	if blocked, _ := g.Inspect(ctx, loginPolicy, "a"); !blocked {
		t.Fatal("expected a blocked")
	}
	if blocked, _ := g.Inspect(ctx, loginPolicy, "b"); blocked {
		t.Fatal("target b must not be affected by a")
	}
	register := Policy{Type: "ip_register", MaxRetry: 20, TTL: time.Hour}
	if blocked, _ := g.Inspect(ctx, register, "a"); blocked {
		t.Fatal("policy types must not share counters")
	}
}

func TestInspectWindowSlidesAndExpires(t *testing.T) {
	g, mr, done := newGuardTest(t)
	defer done()
	ctx := context.Background()
	policy := Policy{Type: "code_token", MaxRetry: 1, TTL: time.Minute}

	_, _ = g.Inspect(ctx, policy, "sid")
	mr.FastForward(50 * time.Second)
	_, _ = g.Inspect(ctx, policy, "sid")
	mr.FastForward(50 * time.Second)

	// Second attempt refreshed the TTL, so the counter is still alive.
	if blocked, _ := g.Inspect(ctx, policy, "sid"); !blocked {
		t.Fatal("expected blocked inside sliding window")
	}

	mr.FastForward(2 * time.Minute)
	if blocked, _ := g.Inspect(ctx, policy, "sid"); blocked {
		t.Fatal("expected counter to expire after quiet window")
	}
}

func TestKeyHidesTarget(t *testing.T) {
	g, mr, done := newGuardTest(t)
	defer done()

	if _, err := g.Inspect(context.Background(), loginPolicy, "192.168.1.50"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %v", keys)
	}
	if !strings.HasPrefix(keys[0], "bfap:ip_login:") || strings.Contains(keys[0], "192.168") {
		t.Fatalf("unexpected key %q", keys[0])
	}
}

func TestCheckAndReset(t *testing.T) {
	g, _, done := newGuardTest(t)
	defer done()
	ctx := context.Background()
	policy := Policy{Type: "ip_passkey", MaxRetry: 0, TTL: time.Minute}

	if err := g.Check(ctx, policy, "x"); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if err := g.Check(ctx, policy, "x"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := g.Reset(ctx, policy, "x"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := g.Check(ctx, policy, "x"); err != nil {
		t.Fatalf("check after reset: %v", err)
	}
}

func TestInspectRejectsInvalidPolicy(t *testing.T) {
	g, _, done := newGuardTest(t)
	defer done()

	for _, p := range []Policy{
		{Type: "", MaxRetry: 1, TTL: time.Minute},
		{Type: "a:b", MaxRetry: 1, TTL: time.Minute},
		{Type: "x", MaxRetry: -1, TTL: time.Minute},
		{Type: "x", MaxRetry: 1, TTL: 0},
	} {
		if _, err := g.Inspect(context.Background(), p, "t"); !errors.Is(err, ErrPolicyInvalid) {
			t.Fatalf("expected error for %+v", p)
		}
	}
}

func TestInspectRedisDown(t *testing.T) {
	g, mr, done := newGuardTest(t)
	defer done()
	mr.Close()

	if _, err := g.Inspect(context.Background(), loginPolicy, "t"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
