package saraAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/saraAuth/internal/limiters"
)

const maxNicknameLength = 64

// RequestRegistration sends a registration code to an unused address.
func (e *Engine) RequestRegistration(ctx context.Context, email, nickname string) (CodeChallenge, error) {
	email = normalizeEmail(email)
	nickname = strings.TrimSpace(nickname)
	return e.requestCode(ctx, codeRequest{
		flow:     limiters.FlowRegister,
		kind:     SessionCreateUser,
		settings: e.config.Sessions.Register,
		prepare: func(ctx context.Context) (SessionMetadata, codeRecipient, error) {
			if !validEmail(email) || len(nickname) > maxNicknameLength {
				return nil, codeRecipient{}, ErrSubjectInvalid
			}
			if err := e.ensureEmailFree(ctx, email); err != nil {
				return nil, codeRecipient{}, err
			}
			return SessionMetadata{
				"email":    email,
				"nickname": nickname,
			}, codeRecipient{to: email, nickname: nickname}, nil
		},
	})
}

// ConfirmRegistration consumes a registration session, creates the subject
// and issues its first token.
func (e *Engine) ConfirmRegistration(ctx context.Context, sessionID, code string) (string, error) {
	return e.confirmCode(ctx, codeConfirm{
		flow:      limiters.FlowRegister,
		kind:      SessionCreateUser,
		sessionID: sessionID,
		code:      code,
		complete: func(ctx context.Context, metadata SessionMetadata) (string, error) {
			email := metadata["email"]
			if err := e.ensureEmailFree(ctx, email); err != nil {
				return "", err
			}
			now := e.now().UTC()
			subject, err := e.subjects.SaveSubject(ctx, Subject{
				Email:     email,
				Nickname:  metadata["nickname"],
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return "", mapSubjectError(err)
			}

			e.metricInc(MetricSubjectRegistered)
			e.emitAudit(ctx, auditEventSubjectRegistered, true, subject.ID, sessionID, SessionCreateUser, nil, nil)
			return e.IssueToken(ctx, subject)
		},
	})
}

func (e *Engine) ensureEmailFree(ctx context.Context, email string) error {
	_, err := e.subjects.FindSubjectByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrSubjectExists
	case errors.Is(err, ErrSubjectNotFound):
		return nil
	default:
		return mapSubjectError(err)
	}
}
