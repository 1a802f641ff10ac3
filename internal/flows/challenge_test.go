package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunChallengeRequestStages(t *testing.T) {
	errLimited := errors.New("limited")
	errExists := errors.New("exists")
	errMail := errors.New("smtp down")

	var dropped bool
	base := func() ChallengeRequestDeps {
		return ChallengeRequestDeps{
			CheckLimit: func(context.Context) error { return nil },
			Prepare:    func(context.Context) ([]byte, error) { return []byte(`{"email":"a@b.co"}`), nil },
			CreateSession: func(_ context.Context, payload []byte) (ChallengeSession, error) {
				return ChallengeSession{SessionID: "sid", Code: "123456", ExpiresAt: time.Unix(10, 0)}, nil
			},
			Send:        func(context.Context, ChallengeSession) error { return nil },
			DropSession: func(context.Context, ChallengeSession) { dropped = true },
		}
	}

	res := RunChallengeRequest(context.Background(), base())
	if res.Failure != ChallengeFailureNone || res.Session.SessionID != "sid" {
		t.Fatalf("unexpected result %+v", res)
	}

	deps := base()
	deps.CheckLimit = func(context.Context) error { return errLimited }
	if res := RunChallengeRequest(context.Background(), deps); res.Failure != ChallengeFailureRateLimited {
		t.Fatalf("expected rate limited, got %v", res.Failure)
	}

	deps = base()
	deps.Prepare = func(context.Context) ([]byte, error) { return nil, errExists }
	if res := RunChallengeRequest(context.Background(), deps); res.Failure != ChallengeFailureRejected || !errors.Is(res.Err, errExists) {
		t.Fatalf("expected rejection, got %+v", res)
	}

	deps = base()
	deps.Send = func(context.Context, ChallengeSession) error { return errMail }
	res = RunChallengeRequest(context.Background(), deps)
	if res.Failure != ChallengeFailureDelivery || !dropped {
		t.Fatalf("delivery failure must drop the session: %+v dropped=%v", res, dropped)
	}

	deps = base()
	deps.Send = nil
	deps.CheckLimit = nil
	if res := RunChallengeRequest(context.Background(), deps); res.Failure != ChallengeFailureNone {
		t.Fatalf("optional deps must be skippable, got %v", res.Failure)
	}
}

func TestRunChallengeConfirmStages(t *testing.T) {
	errMiss := errors.New("miss")
	errMismatch := errors.New("mismatch")

	var completed int
	base := func() ChallengeConfirmDeps {
		return ChallengeConfirmDeps{
			TakeSession: func(context.Context) ([]byte, error) { return []byte("payload"), nil },
			Complete: func(_ context.Context, payload []byte) (string, error) {
				completed++
				return "token:" + string(payload), nil
			},
		}
	}

	if res := RunChallengeConfirm(context.Background(), base()); res.Token != "token:payload" {
		t.Fatalf("unexpected result %+v", res)
	}

	deps := base()
	deps.TakeSession = func(context.Context) ([]byte, error) { return nil, errMiss }
	if res := RunChallengeConfirm(context.Background(), deps); res.Failure != ChallengeFailureSession {
		t.Fatalf("expected session failure, got %v", res.Failure)
	}

	deps = base()
	deps.Verify = func([]byte) error { return errMismatch }
	if res := RunChallengeConfirm(context.Background(), deps); res.Failure != ChallengeFailureVerify {
		t.Fatalf("expected verify failure, got %v", res.Failure)
	}

	deps = base()
	deps.CheckLimit = func(context.Context) error { return errors.New("limited") }
	if res := RunChallengeConfirm(context.Background(), deps); res.Failure != ChallengeFailureRateLimited {
		t.Fatalf("expected rate limited, got %v", res.Failure)
	}

	if completed != 1 {
		t.Fatalf("complete must only run on the success path, ran %d times", completed)
	}
}
