package saraAuth

import (
	"context"
	"errors"
)

const (
	auditEventTokenIssued            = "token_issued"
	auditEventTokenUpdated           = "token_updated"
	auditEventTokenRejected          = "token_rejected"
	auditEventTokenTamper            = "token_tamper"
	auditEventCodeSessionCreated     = "code_session_created"
	auditEventCodeSessionConsumed    = "code_session_consumed"
	auditEventPasskeySessionCreated  = "passkey_session_created"
	auditEventPasskeySessionConsumed = "passkey_session_consumed"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
	auditEventSubjectRegistered      = "subject_registered"
	auditEventProfileUpdated         = "profile_updated"
	auditEventEmailChanged           = "email_changed"
	auditEventRevokeAll              = "revoke_all"
)

// AuditErrorCode is the stable error vocabulary carried in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrMalformed        AuditErrorCode = "malformed"
	auditErrSignature        AuditErrorCode = "signature_invalid"
	auditErrExpired          AuditErrorCode = "expired"
	auditErrNotYetValid      AuditErrorCode = "not_yet_valid"
	auditErrGuardMismatch    AuditErrorCode = "guard_mismatch"
	auditErrRevoked          AuditErrorCode = "revoked"
	auditErrSessionNotFound  AuditErrorCode = "session_not_found"
	auditErrChallenge        AuditErrorCode = "challenge_mismatch"
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrSubjectNotFound  AuditErrorCode = "subject_not_found"
	auditErrSubjectExists    AuditErrorCode = "subject_exists"
	auditErrSubjectMismatch  AuditErrorCode = "subject_mismatch"
	auditErrDeliveryFailed   AuditErrorCode = "delivery_failed"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInvalidArguments AuditErrorCode = "invalid_arguments"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	sessionID string,
	kind SessionKind,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if kind.Valid() {
		event.Kind = kind.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, sessionID string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", sessionID, 0, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenMalformed):
		return auditErrMalformed
	case errors.Is(err, ErrTokenSignatureInvalid):
		return auditErrSignature
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpired
	case errors.Is(err, ErrTokenNotYetValid):
		return auditErrNotYetValid
	case errors.Is(err, ErrTokenGuardMismatch):
		return auditErrGuardMismatch
	case errors.Is(err, ErrTokenRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrChallengeMismatch):
		return auditErrChallenge
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSubjectNotFound):
		return auditErrSubjectNotFound
	case errors.Is(err, ErrSubjectExists):
		return auditErrSubjectExists
	case errors.Is(err, ErrSubjectMismatch):
		return auditErrSubjectMismatch
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrCacheUnavailable),
		errors.Is(err, ErrLedgerUnavailable),
		errors.Is(err, ErrSubjectStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrSessionKindInvalid),
		errors.Is(err, ErrCodeLengthInvalid),
		errors.Is(err, ErrSessionTTLInvalid),
		errors.Is(err, ErrSubjectInvalid),
		errors.Is(err, ErrPolicyInvalid):
		return auditErrInvalidArguments
	default:
		return auditErrInternal
	}
}
