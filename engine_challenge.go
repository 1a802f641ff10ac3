package saraAuth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/saraAuth/internal/flows"
	"github.com/MrEthical07/saraAuth/internal/limiters"
)

// codeRequest describes the session-creating half of one code flow.
type codeRequest struct {
	flow     limiters.Flow
	kind     SessionKind
	settings CodeFlowConfig
	prepare  func(ctx context.Context) (SessionMetadata, codeRecipient, error)
}

type codeRecipient struct {
	to       string
	nickname string
}

func (e *Engine) requestCode(ctx context.Context, req codeRequest) (CodeChallenge, error) {
	if e == nil || e.codeStore == nil {
		return CodeChallenge{}, ErrEngineNotReady
	}
	if e.sender == nil {
		return CodeChallenge{}, fmt.Errorf("%w: no code sender configured", ErrEngineNotReady)
	}

	var recipient codeRecipient
	res := flows.RunChallengeRequest(ctx, flows.ChallengeRequestDeps{
		CheckLimit: func(ctx context.Context) error {
			return e.flowLimiter.CheckRequest(ctx, req.flow, clientIPFromContext(ctx))
		},
		Prepare: func(ctx context.Context) ([]byte, error) {
			metadata, to, err := req.prepare(ctx)
			if err != nil {
				return nil, err
			}
			recipient = to
			return encodeSessionMetadata(metadata)
		},
		CreateSession: func(ctx context.Context, payload []byte) (flows.ChallengeSession, error) {
			metadata, err := decodeSessionMetadata(payload)
			if err != nil {
				return flows.ChallengeSession{}, err
			}
			created, err := e.CreateCodeSession(ctx, req.kind, metadata, req.settings.CodeLength, req.settings.TTL)
			if err != nil {
				return flows.ChallengeSession{}, err
			}
			return flows.ChallengeSession{
				SessionID: created.SessionID,
				Code:      created.Code,
				ExpiresAt: created.ExpiresAt,
			}, nil
		},
		Send: func(ctx context.Context, session flows.ChallengeSession) error {
			return e.sender.SendCode(ctx, CodeMessage{
				Kind:      req.kind,
				To:        recipient.to,
				Nickname:  recipient.nickname,
				SessionID: session.SessionID,
				Code:      session.Code,
				IP:        clientIPFromContext(ctx),
			})
		},
		DropSession: func(ctx context.Context, session flows.ChallengeSession) {
			if _, err := e.DeleteCodeSession(ctx, req.kind, session.SessionID, session.Code); err != nil {
				e.logger.ErrorContext(ctx, "dropping undelivered session failed", slog.Any("error", err))
			}
		},
	})

	switch res.Failure {
	case flows.ChallengeFailureNone:
		return CodeChallenge{
			Kind:      req.kind,
			SessionID: res.Session.SessionID,
			ExpiresAt: res.Session.ExpiresAt,
		}, nil
	case flows.ChallengeFailureRateLimited:
		return CodeChallenge{}, e.limitFailure(ctx, req.flow, "", res.Err)
	case flows.ChallengeFailureDelivery:
		e.logger.ErrorContext(ctx, "code delivery failed", slog.String("kind", req.kind.String()), slog.Any("error", res.Err))
		return CodeChallenge{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, res.Err)
	default:
		return CodeChallenge{}, res.Err
	}
}

// codeConfirm describes the consuming half of one code flow. complete runs
// with the consumed metadata and returns the issued token.
type codeConfirm struct {
	flow      limiters.Flow
	kind      SessionKind
	sessionID string
	code      string
	complete  func(ctx context.Context, metadata SessionMetadata) (string, error)
}

func (e *Engine) confirmCode(ctx context.Context, req codeConfirm) (string, error) {
	if e == nil || e.codeStore == nil {
		return "", ErrEngineNotReady
	}

	res := flows.RunChallengeConfirm(ctx, flows.ChallengeConfirmDeps{
		CheckLimit: func(ctx context.Context) error {
			return e.flowLimiter.CheckConfirm(ctx, req.flow, req.sessionID, clientIPFromContext(ctx))
		},
		TakeSession: func(ctx context.Context) ([]byte, error) {
			metadata, err := e.TakeCodeSession(ctx, req.kind, req.sessionID, req.code)
			if err != nil {
				return nil, err
			}
			return encodeSessionMetadata(metadata)
		},
		Complete: func(ctx context.Context, payload []byte) (string, error) {
			metadata, err := decodeSessionMetadata(payload)
			if err != nil {
				return "", err
			}
			return req.complete(ctx, metadata)
		},
	})

	switch res.Failure {
	case flows.ChallengeFailureNone:
		return res.Token, nil
	case flows.ChallengeFailureRateLimited:
		return "", e.limitFailure(ctx, req.flow, req.sessionID, res.Err)
	default:
		return "", res.Err
	}
}

func (e *Engine) limitFailure(ctx context.Context, flow limiters.Flow, sessionID string, err error) error {
	mapped := mapLimiterError(err)
	if errors.Is(mapped, ErrRateLimited) {
		e.emitRateLimit(ctx, flow.String(), sessionID)
	} else {
		e.logger.ErrorContext(ctx, "brute-force guard unavailable", slog.Any("error", err))
	}
	return mapped
}

func encodeSessionMetadata(metadata SessionMetadata) ([]byte, error) {
	if metadata == nil {
		metadata = SessionMetadata{}
	}
	return json.Marshal(metadata)
}
