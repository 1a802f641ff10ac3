package flows

import (
	"context"
	"time"
)

// ChallengeFailureKind classifies code and passkey session flow failures.
type ChallengeFailureKind int

const (
	ChallengeFailureNone ChallengeFailureKind = iota
	ChallengeFailureRateLimited
	ChallengeFailureRejected
	ChallengeFailureSession
	ChallengeFailureDelivery
	ChallengeFailureVerify
	ChallengeFailureComplete
)

// ChallengeSession is what CreateSession hands back. Code is empty for
// passkey sessions.
type ChallengeSession struct {
	SessionID string
	Code      string
	Challenge string
	ExpiresAt time.Time
}

// ChallengeRequestDeps drives the session-creating half of a flow.
// Prepare returns the session payload, or an error that rejects the request
// (for example an already-registered email). Send may be nil.
type ChallengeRequestDeps struct {
	CheckLimit    func(ctx context.Context) error
	Prepare       func(ctx context.Context) ([]byte, error)
	CreateSession func(ctx context.Context, payload []byte) (ChallengeSession, error)
	Send          func(ctx context.Context, session ChallengeSession) error
	DropSession   func(ctx context.Context, session ChallengeSession)
}

type ChallengeRequestResult struct {
	Failure ChallengeFailureKind
	Err     error
	Session ChallengeSession
}

// RunChallengeRequest throttles, prepares, stores and delivers one session.
// A session whose delivery fails is dropped again.
func RunChallengeRequest(ctx context.Context, deps ChallengeRequestDeps) ChallengeRequestResult {
	if deps.CheckLimit != nil {
		if err := deps.CheckLimit(ctx); err != nil {
			return ChallengeRequestResult{Failure: ChallengeFailureRateLimited, Err: err}
		}
	}

	payload, err := deps.Prepare(ctx)
	if err != nil {
		return ChallengeRequestResult{Failure: ChallengeFailureRejected, Err: err}
	}

	session, err := deps.CreateSession(ctx, payload)
	if err != nil {
		return ChallengeRequestResult{Failure: ChallengeFailureSession, Err: err}
	}

	if deps.Send != nil {
		if err := deps.Send(ctx, session); err != nil {
			if deps.DropSession != nil {
				deps.DropSession(ctx, session)
			}
			return ChallengeRequestResult{Failure: ChallengeFailureDelivery, Err: err}
		}
	}

	return ChallengeRequestResult{Session: session}
}

// ChallengeConfirmDeps drives the consuming half. TakeSession must be an
// atomic get-and-delete so concurrent confirmations cannot both succeed.
// Verify may be nil.
type ChallengeConfirmDeps struct {
	CheckLimit  func(ctx context.Context) error
	TakeSession func(ctx context.Context) ([]byte, error)
	Verify      func(payload []byte) error
	Complete    func(ctx context.Context, payload []byte) (string, error)
}

type ChallengeConfirmResult struct {
	Failure ChallengeFailureKind
	Err     error
	Token   string
}

// RunChallengeConfirm throttles, consumes the session, verifies it and
// completes the flow.
func RunChallengeConfirm(ctx context.Context, deps ChallengeConfirmDeps) ChallengeConfirmResult {
	if deps.CheckLimit != nil {
		if err := deps.CheckLimit(ctx); err != nil {
			return ChallengeConfirmResult{Failure: ChallengeFailureRateLimited, Err: err}
		}
	}

	payload, err := deps.TakeSession(ctx)
	if err != nil {
		return ChallengeConfirmResult{Failure: ChallengeFailureSession, Err: err}
	}

	if deps.Verify != nil {
		if err := deps.Verify(payload); err != nil {
			return ChallengeConfirmResult{Failure: ChallengeFailureVerify, Err: err}
		}
	}

	token, err := deps.Complete(ctx, payload)
	if err != nil {
		return ChallengeConfirmResult{Failure: ChallengeFailureComplete, Err: err}
	}
	return ChallengeConfirmResult{Token: token}
}
