package saraAuth

import (
	"context"
	"strings"

	"github.com/MrEthical07/saraAuth/internal/limiters"
)

// UpdateProfile applies change to the subject behind token and returns a
// re-issued token carrying the new snapshot. The ledger row is kept.
func (e *Engine) UpdateProfile(ctx context.Context, token string, change ProfileChange) (string, error) {
	if e == nil || e.subjects == nil {
		return "", ErrEngineNotReady
	}
	auth, err := e.ValidateToken(ctx, token)
	if err != nil {
		return "", err
	}

	subject, err := e.subjects.FindSubjectByID(ctx, auth.SubjectID)
	if err != nil {
		return "", mapSubjectError(err)
	}
	if change.Nickname != nil {
		nickname := strings.TrimSpace(*change.Nickname)
		if len(nickname) > maxNicknameLength {
			return "", ErrSubjectInvalid
		}
		subject.Nickname = nickname
	}
	subject.UpdatedAt = e.now().UTC()

	saved, err := e.subjects.SaveSubject(ctx, subject)
	if err != nil {
		return "", mapSubjectError(err)
	}
	updated, err := e.UpdateToken(ctx, token, saved)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, saved.ID, "", 0, nil, nil)
	return updated, nil
}

// RequestEmailChange sends a code to newEmail for the subject behind token.
func (e *Engine) RequestEmailChange(ctx context.Context, token, newEmail string) (CodeChallenge, error) {
	if e == nil || e.subjects == nil {
		return CodeChallenge{}, ErrEngineNotReady
	}
	newEmail = normalizeEmail(newEmail)
	auth, err := e.ValidateToken(ctx, token)
	if err != nil {
		return CodeChallenge{}, err
	}

	return e.requestCode(ctx, codeRequest{
		flow:     limiters.FlowEmailChange,
		kind:     SessionUpdateEmail,
		settings: e.config.Sessions.EmailChange,
		prepare: func(ctx context.Context) (SessionMetadata, codeRecipient, error) {
			if !validEmail(newEmail) {
				return nil, codeRecipient{}, ErrSubjectInvalid
			}
			if err := e.ensureEmailFree(ctx, newEmail); err != nil {
				return nil, codeRecipient{}, err
			}
			return SessionMetadata{
					"user_id": auth.SubjectID,
					"email":   newEmail,
				}, codeRecipient{
					to:       newEmail,
					nickname: auth.Profile.Nickname,
				}, nil
		},
	})
}

// ConfirmEmailChange consumes an email-change session opened by the same
// subject and returns a re-issued token with the new address.
func (e *Engine) ConfirmEmailChange(ctx context.Context, token, sessionID, code string) (string, error) {
	if e == nil || e.subjects == nil {
		return "", ErrEngineNotReady
	}
	auth, err := e.ValidateToken(ctx, token)
	if err != nil {
		return "", err
	}

	return e.confirmCode(ctx, codeConfirm{
		flow:      limiters.FlowEmailChange,
		kind:      SessionUpdateEmail,
		sessionID: sessionID,
		code:      code,
		complete: func(ctx context.Context, metadata SessionMetadata) (string, error) {
			if metadata["user_id"] != auth.SubjectID {
				return "", ErrSubjectMismatch
			}
			email := metadata["email"]
			if err := e.ensureEmailFree(ctx, email); err != nil {
				return "", err
			}

			subject, err := e.subjects.FindSubjectByID(ctx, auth.SubjectID)
			if err != nil {
				return "", mapSubjectError(err)
			}
			previous := subject.Email
			subject.Email = email
			subject.UpdatedAt = e.now().UTC()
			saved, err := e.subjects.SaveSubject(ctx, subject)
			if err != nil {
				return "", mapSubjectError(err)
			}
			updated, err := e.UpdateToken(ctx, token, saved)
			if err != nil {
				return "", err
			}

			e.metricInc(MetricEmailChanged)
			e.emitAudit(ctx, auditEventEmailChanged, true, saved.ID, sessionID, SessionUpdateEmail, nil, func() map[string]string {
				return map[string]string{"previous_domain": emailDomain(previous), "domain": emailDomain(email)}
			})
			return updated, nil
		},
	})
}

func emailDomain(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return ""
}
