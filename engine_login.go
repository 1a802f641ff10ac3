package saraAuth

import (
	"context"
	"strings"

	"github.com/MrEthical07/saraAuth/internal/limiters"
)

// RequestToken starts a login by emailed code. The subject must exist.
func (e *Engine) RequestToken(ctx context.Context, email string) (CodeChallenge, error) {
	email = normalizeEmail(email)
	return e.requestCode(ctx, codeRequest{
		flow:     limiters.FlowLogin,
		kind:     SessionCreateToken,
		settings: e.config.Sessions.Login,
		prepare: func(ctx context.Context) (SessionMetadata, codeRecipient, error) {
			if email == "" {
				return nil, codeRecipient{}, ErrSubjectInvalid
			}
			subject, err := e.subjects.FindSubjectByEmail(ctx, email)
			if err != nil {
				return nil, codeRecipient{}, mapSubjectError(err)
			}
			return SessionMetadata{
					"user_id": subject.ID,
					"email":   subject.Email,
				}, codeRecipient{
					to:       subject.Email,
					nickname: subject.Nickname,
				}, nil
		},
	})
}

// ConfirmToken consumes a login session and issues a token. The subject is
// looked up again by email and must still be the one the code was sent to.
func (e *Engine) ConfirmToken(ctx context.Context, sessionID, code string) (string, error) {
	return e.confirmCode(ctx, codeConfirm{
		flow:      limiters.FlowLogin,
		kind:      SessionCreateToken,
		sessionID: sessionID,
		code:      code,
		complete: func(ctx context.Context, metadata SessionMetadata) (string, error) {
			subject, err := e.subjects.FindSubjectByEmail(ctx, metadata["email"])
			if err != nil {
				return "", mapSubjectError(err)
			}
			if subject.ID != metadata["user_id"] {
				return "", ErrSubjectMismatch
			}
			return e.IssueToken(ctx, subject)
		},
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
