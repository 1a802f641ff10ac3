package saraAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCodeSessionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.engine.CreateCodeSession(ctx, SessionCreateToken, SessionMetadata{"user_id": "u1"}, 6, time.Minute)
	if err != nil {
		t.Fatalf("CreateCodeSession failed: %v", err)
	}
	if len(created.Code) != 6 || created.Handle.Kind() != SessionCreateToken {
		t.Fatalf("unexpected session: %+v", created)
	}
	if key := "code:create_token:" + created.SessionID + "@" + created.Code; !env.mr.Exists(key) {
		t.Fatalf("expected key %q, have %v", key, env.mr.Keys())
	}

	meta, handle, err := env.engine.GetCodeSession(ctx, SessionCreateToken, created.SessionID, created.Code)
	if err != nil || meta["user_id"] != "u1" {
		t.Fatalf("GetCodeSession failed: %v %v", meta, err)
	}
	// Get does not consume.
	if _, _, err := env.engine.GetCodeSession(ctx, SessionCreateToken, created.SessionID, created.Code); err != nil {
		t.Fatalf("second get failed: %v", err)
	}

	ok, err := env.engine.ConsumeSession(ctx, handle)
	if err != nil || !ok {
		t.Fatalf("ConsumeSession = %v, %v", ok, err)
	}
	ok, err = env.engine.ConsumeSession(ctx, handle)
	if err != nil || ok {
		t.Fatalf("second ConsumeSession = %v, %v", ok, err)
	}
	if _, _, err := env.engine.GetCodeSession(ctx, SessionCreateToken, created.SessionID, created.Code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCodeSessionKindsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, _ := env.engine.CreateCodeSession(ctx, SessionUpdateEmail, nil, 8, time.Minute)

	for _, kind := range []SessionKind{SessionCreateUser, SessionCreateToken} {
		if _, err := env.engine.TakeCodeSession(ctx, kind, created.SessionID, created.Code); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("kind %s: expected miss, got %v", kind, err)
		}
	}
	if _, err := env.engine.TakeCodeSession(ctx, SessionUpdateEmail, created.SessionID, created.Code); err != nil {
		t.Fatalf("own kind should take: %v", err)
	}
}

func TestCodeSessionArgumentErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.CreateCodeSession(ctx, SessionKind(42), nil, 6, time.Minute); !errors.Is(err, ErrSessionKindInvalid) {
		t.Fatalf("expected ErrSessionKindInvalid, got %v", err)
	}
	if _, err := env.engine.CreateCodeSession(ctx, SessionLoginPasskey, nil, 6, time.Minute); !errors.Is(err, ErrSessionKindInvalid) {
		t.Fatalf("passkey kinds must not hold codes, got %v", err)
	}
	for _, n := range []int{0, 3, 13} {
		if _, err := env.engine.CreateCodeSession(ctx, SessionCreateToken, nil, n, time.Minute); !errors.Is(err, ErrCodeLengthInvalid) {
			t.Fatalf("length %d: expected ErrCodeLengthInvalid, got %v", n, err)
		}
	}
	if _, err := env.engine.CreateCodeSession(ctx, SessionCreateToken, nil, 6, 0); !errors.Is(err, ErrSessionTTLInvalid) {
		t.Fatalf("expected ErrSessionTTLInvalid, got %v", err)
	}
}

func TestCodeSessionMissesAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, _ := env.engine.CreateCodeSession(ctx, SessionCreateToken, nil, 6, time.Minute)

	cases := map[string][2]string{
		"unknown session": {"AAAAAAAAAAAAAAAAAAAAAA", created.Code},
		"garbage session": {"not-a-session", created.Code},
		"wrong code":      {created.SessionID, strings.Repeat("0", 5)},
	}
	for name, tc := range cases {
		_, err := env.engine.TakeCodeSession(ctx, SessionCreateToken, tc[0], tc[1])
		if err != ErrSessionNotFound {
			t.Fatalf("%s: expected bare ErrSessionNotFound, got %v", name, err)
		}
	}
}

func TestPasskeySessionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.engine.CreatePasskeySession(ctx, SessionCreatePasskey, PasskeyMetadata{UserID: "u1", Challenge: "c"}, time.Minute)
	if err != nil {
		t.Fatalf("CreatePasskeySession failed: %v", err)
	}
	if key := "passkey:create_passkey:" + created.SessionID; !env.mr.Exists(key) {
		t.Fatalf("expected key %q, have %v", key, env.mr.Keys())
	}

	meta, handle, err := env.engine.GetPasskeySession(ctx, SessionCreatePasskey, created.SessionID)
	if err != nil || meta.UserID != "u1" || meta.Challenge != "c" {
		t.Fatalf("GetPasskeySession = %+v, %v", meta, err)
	}
	if ok, err := env.engine.ConsumeSession(ctx, handle); err != nil || !ok {
		t.Fatalf("ConsumeSession = %v, %v", ok, err)
	}
	if _, err := env.engine.TakePasskeySession(ctx, SessionCreatePasskey, created.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSessionsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code, _ := env.engine.CreateCodeSession(ctx, SessionCreateUser, nil, 7, time.Minute)
	passkey, _ := env.engine.CreatePasskeySession(ctx, SessionLoginPasskey, PasskeyMetadata{UserID: "u1"}, time.Minute)

	for i, want := range []bool{true, false} {
		deleted, err := env.engine.DeleteCodeSession(ctx, SessionCreateUser, code.SessionID, code.Code)
		if err != nil || deleted != want {
			t.Fatalf("code delete %d = %v, %v", i, deleted, err)
		}
		deleted, err = env.engine.DeletePasskeySession(ctx, SessionLoginPasskey, passkey.SessionID)
		if err != nil || deleted != want {
			t.Fatalf("passkey delete %d = %v, %v", i, deleted, err)
		}
	}
}

func TestDeletePasskeySessionRejectsCodeKind(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.DeletePasskeySession(context.Background(), SessionCreateToken, "any"); !errors.Is(err, ErrSessionKindInvalid) {
		t.Fatalf("expected ErrSessionKindInvalid, got %v", err)
	}
}

func TestConsumeSessionZeroHandle(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.ConsumeSession(context.Background(), SessionHandle{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionKindText(t *testing.T) {
	for _, kind := range []SessionKind{SessionCreateUser, SessionCreateToken, SessionUpdateEmail, SessionCreatePasskey, SessionLoginPasskey} {
		text, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) failed: %v", kind, err)
		}
		var back SessionKind
		if err := back.UnmarshalText(text); err != nil || back != kind {
			t.Fatalf("round trip of %s gave %v, %v", text, back, err)
		}
	}
	if _, err := ParseSessionKind("reset_password"); !errors.Is(err, ErrSessionKindInvalid) {
		t.Fatalf("expected ErrSessionKindInvalid, got %v", err)
	}
}
