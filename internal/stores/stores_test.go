package stores

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoresTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
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
	return mr, rdb
}

func TestCodeSessionCreateGetDelete(t *testing.T) {
	mr, rdb := newStoresTest(t)
	s := NewCodeSessionStore(rdb, "")
	ctx := context.Background()

	cs, err := s.CreateOne(ctx, "create_token", []byte(`{"email":"a@b.co"}`), 6, 5*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(cs.Code) != 6 || len(cs.SessionID) != 22 {
		t.Fatalf("unexpected session %+v", cs)
	}
	if cs.Key != "code:create_token:"+cs.SessionID+"@"+cs.Code {
		t.Fatalf("unexpected key %q", cs.Key)
	}
	if !mr.Exists(cs.Key) {
		t.Fatal("record not stored")
	}

	payload, key, err := s.GetOne(ctx, "create_token", cs.SessionID, cs.Code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(payload) != `{"email":"a@b.co"}` || key != cs.Key {
		t.Fatalf("unexpected payload %q key %q", payload, key)
	}

	// Get does not consume.
	if _, _, err := s.GetOne(ctx, "create_token", cs.SessionID, cs.Code); err != nil {
		t.Fatalf("second get: %v", err)
	}

	removed, err := s.DeleteOne(ctx, "create_token", cs.SessionID, cs.Code)
	if err != nil || !removed {
		t.Fatalf("delete: %v %v", removed, err)
	}
	removed, err = s.DeleteOne(ctx, "create_token", cs.SessionID, cs.Code)
	if err != nil || removed {
		t.Fatalf("second delete must be a no-op: %v %v", removed, err)
	}
	if _, _, err := s.GetOne(ctx, "create_token", cs.SessionID, cs.Code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCodeSessionWrongCodeAndKindMiss(t *testing.T) {
	_, rdb := newStoresTest(t)
	s := NewCodeSessionStore(rdb, "")
	ctx := context.Background()

	cs, err := s.CreateOne(ctx, "create_user", []byte(`{}`), 7, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	wrong := "0000000"
	if cs.Code == wrong {
		wrong = "1111111"
	}
	cases := []struct {
		kind, sid, code string
	}{
		{"create_user", cs.SessionID, wrong},
		{"create_token", cs.SessionID, cs.Code},
		{"update_email", cs.SessionID, cs.Code},
		{"create_user", "not-a-session", cs.Code},
		{"create_user", cs.SessionID, cs.Code + "@x"},
		{"create_user:x", cs.SessionID, cs.Code},
	}
	for _, tc := range cases {
		if _, _, err := s.GetOne(ctx, tc.kind, tc.sid, tc.code); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("%+v: expected ErrSessionNotFound, got %v", tc, err)
		}
	}
}

func TestCodeSessionExpires(t *testing.T) {
	mr, rdb := newStoresTest(t)
	s := NewCodeSessionStore(rdb, "")
	ctx := context.Background()

	cs, err := s.CreateOne(ctx, "create_token", []byte(`{}`), 6, 2*time.Second)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(3 * time.Second)
	if _, _, err := s.GetOne(ctx, "create_token", cs.SessionID, cs.Code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
}

func TestCodeSessionTakeIsSingleUse(t *testing.T) {
	_, rdb := newStoresTest(t)
	s := NewCodeSessionStore(rdb, "")
	ctx := context.Background()

	cs, err := s.CreateOne(ctx, "create_token", []byte(`{"n":1}`), 6, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.TakeOne(ctx, "create_token", cs.SessionID, cs.Code); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one successful take, got %d", winners)
	}
}

func TestCodeSessionRejectsBadInput(t *testing.T) {
	_, rdb := newStoresTest(t)
	s := NewCodeSessionStore(rdb, "")
	ctx := context.Background()

	if _, err := s.CreateOne(ctx, "", nil, 6, time.Minute); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if _, err := s.CreateOne(ctx, "create_token", nil, 6, 0); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for zero ttl, got %v", err)
	}
	if _, err := s.CreateOne(ctx, "create_token", nil, 2, time.Minute); err == nil {
		t.Fatal("expected error for short code length")
	}
}

func TestUnknownRecordVersionIsAMiss(t *testing.T) {
	mr, rdb := newStoresTest(t)
	s := NewPasskeySessionStore(rdb, "")
	ctx := context.Background()

	sid, key, err := s.CreateOne(ctx, "login_passkey", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mr.Set(key, "\x09garbage"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, _, err := s.GetOne(ctx, "login_passkey", sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("unknown record must be reaped")
	}
}

func TestPasskeySessionLifecycle(t *testing.T) {
	_, rdb := newStoresTest(t)
	s := NewPasskeySessionStore(rdb, "")
	ctx := context.Background()

	sid, key, err := s.CreateOne(ctx, "create_passkey", []byte(`{"challenge":"c"}`), time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if key != "passkey:create_passkey:"+sid {
		t.Fatalf("unexpected key %q", key)
	}
	if _, _, err := s.GetOne(ctx, "login_passkey", sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("cross-kind lookup must miss, got %v", err)
	}
	payload, err := s.TakeOne(ctx, "create_passkey", sid)
	if err != nil || string(payload) != `{"challenge":"c"}` {
		t.Fatalf("take: %q %v", payload, err)
	}
	if _, err := s.TakeOne(ctx, "create_passkey", sid); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second take must miss, got %v", err)
	}
	removed, err := s.DeleteKey(ctx, key)
	if err != nil || removed {
		t.Fatalf("delete after take: %v %v", removed, err)
	}
}

func TestSessionRedisUnavailable(t *testing.T) {
	mr, rdb := newStoresTest(t)
	s := NewCodeSessionStore(rdb, "")
	mr.Close()

	_, err := s.CreateOne(context.Background(), "create_token", nil, 6, time.Minute)
	if !errors.Is(err, ErrSessionRedisUnavailable) {
		t.Fatalf("expected ErrSessionRedisUnavailable, got %v", err)
	}
}

func TestLedgerCreateLookupDelete(t *testing.T) {
	mr, rdb := newStoresTest(t)
	l := NewLedger(rdb, "", time.Hour)
	fixed := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	rec, err := l.Create(ctx, "subject-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ExpiresAt-rec.CreatedAt != 3600 || rec.CreatedAt != fixed.Unix() {
		t.Fatalf("unexpected times %+v", rec)
	}
	if !strings.HasPrefix(mr.Keys()[0], "ledger:") {
		t.Fatalf("unexpected keys %v", mr.Keys())
	}

	got, err := l.Lookup(ctx, rec.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != rec {
		t.Fatalf("lookup mismatch: %+v vs %+v", got, rec)
	}

	other, err := l.Create(ctx, "subject-1")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if other.ID == rec.ID {
		t.Fatal("ledger ids must be unique")
	}

	if err := l.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := l.Lookup(ctx, rec.ID); !errors.Is(err, ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
	if err := l.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestLedgerExpires(t *testing.T) {
	mr, rdb := newStoresTest(t)
	l := NewLedger(rdb, "", time.Minute)
	ctx := context.Background()

	rec, err := l.Create(ctx, "subject-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(61 * time.Second)
	if _, err := l.Lookup(ctx, rec.ID); !errors.Is(err, ErrLedgerNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestLedgerHonorsRowExpiryBeforeKeyTTL(t *testing.T) {
	_, rdb := newStoresTest(t)
	l := NewLedger(rdb, "", time.Hour)
	current := time.Unix(1_700_000_000, 0)
	l.SetClock(func() time.Time { return current })
	ctx := context.Background()

	rec, err := l.Create(ctx, "subject-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	current = current.Add(time.Hour)
	if _, err := l.Lookup(ctx, rec.ID); !errors.Is(err, ErrLedgerNotFound) {
		t.Fatalf("expected row expiry to win over key ttl, got %v", err)
	}
}
