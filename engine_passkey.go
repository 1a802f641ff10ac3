package saraAuth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/MrEthical07/saraAuth/internal/flows"
	"github.com/MrEthical07/saraAuth/internal/limiters"
)

// BeginPasskeyCeremony opens a WebAuthn ceremony of kind for userID and
// returns the challenge the authenticator must sign. Attestation and
// assertion checks are left to the caller.
func (e *Engine) BeginPasskeyCeremony(ctx context.Context, kind SessionKind, userID string) (PasskeyChallenge, error) {
	if e == nil || e.passkeyStore == nil {
		return PasskeyChallenge{}, ErrEngineNotReady
	}
	if err := checkPasskeyKind(kind); err != nil {
		return PasskeyChallenge{}, err
	}
	if userID == "" {
		return PasskeyChallenge{}, ErrSubjectInvalid
	}
	if err := e.flowLimiter.CheckRequest(ctx, limiters.FlowPasskey, clientIPFromContext(ctx)); err != nil {
		return PasskeyChallenge{}, e.limitFailure(ctx, limiters.FlowPasskey, "", err)
	}

	challenge, err := internal.NewChallenge()
	if err != nil {
		return PasskeyChallenge{}, fmt.Errorf("generate challenge: %w", err)
	}
	session, err := e.CreatePasskeySession(ctx, kind, PasskeyMetadata{UserID: userID, Challenge: challenge}, e.config.Sessions.PasskeyTTL)
	if err != nil {
		return PasskeyChallenge{}, err
	}
	return PasskeyChallenge{
		Kind:      kind,
		SessionID: session.SessionID,
		Challenge: challenge,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// FinishPasskeyCeremony consumes the ceremony and checks that the client
// answered the challenge it was given. The session is gone afterwards even
// when the challenge does not match.
func (e *Engine) FinishPasskeyCeremony(ctx context.Context, kind SessionKind, sessionID, challenge string) (PasskeyMetadata, error) {
	if e == nil || e.passkeyStore == nil {
		return PasskeyMetadata{}, ErrEngineNotReady
	}
	if err := checkPasskeyKind(kind); err != nil {
		return PasskeyMetadata{}, err
	}

	var metadata PasskeyMetadata
	res := flows.RunChallengeConfirm(ctx, flows.ChallengeConfirmDeps{
		CheckLimit: func(ctx context.Context) error {
			return e.flowLimiter.CheckConfirm(ctx, limiters.FlowPasskey, sessionID, clientIPFromContext(ctx))
		},
		TakeSession: func(ctx context.Context) ([]byte, error) {
			taken, err := e.TakePasskeySession(ctx, kind, sessionID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(taken)
		},
		Verify: func(payload []byte) error {
			if err := json.Unmarshal(payload, &metadata); err != nil {
				return ErrSessionNotFound
			}
			if subtle.ConstantTimeCompare([]byte(metadata.Challenge), []byte(challenge)) != 1 {
				return ErrChallengeMismatch
			}
			return nil
		},
		Complete: func(context.Context, []byte) (string, error) {
			return "", nil
		},
	})

	switch res.Failure {
	case flows.ChallengeFailureNone:
		return metadata, nil
	case flows.ChallengeFailureRateLimited:
		return PasskeyMetadata{}, e.limitFailure(ctx, limiters.FlowPasskey, sessionID, res.Err)
	case flows.ChallengeFailureVerify:
		if res.Err == ErrChallengeMismatch {
			e.metricInc(MetricPasskeyChallengeMismatch)
			e.logger.WarnContext(ctx, "passkey challenge mismatch")
		}
		return PasskeyMetadata{}, res.Err
	default:
		return PasskeyMetadata{}, res.Err
	}
}

// FinishPasskeyLogin finishes a login ceremony and issues a token for the
// subject it was opened for.
func (e *Engine) FinishPasskeyLogin(ctx context.Context, sessionID, challenge string) (string, error) {
	metadata, err := e.FinishPasskeyCeremony(ctx, SessionLoginPasskey, sessionID, challenge)
	if err != nil {
		return "", err
	}
	subject, err := e.subjects.FindSubjectByID(ctx, metadata.UserID)
	if err != nil {
		return "", mapSubjectError(err)
	}
	return e.IssueToken(ctx, subject)
}
