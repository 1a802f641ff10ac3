package saraAuth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/saraAuth/internal/flows"
	"github.com/MrEthical07/saraAuth/jwt"
)

// IssueToken creates one ledger row for subject and returns a bearer token
// bound to that row and to subject.Revision.
func (e *Engine) IssueToken(ctx context.Context, subject Subject) (string, error) {
	if e == nil || e.jwtManager == nil || !e.jwtManager.CanSign() {
		return "", ErrEngineNotReady
	}
	if subject.ID == "" {
		return "", ErrSubjectInvalid
	}

	profile, err := json.Marshal(e.subjectProfile(subject))
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}

	res := flows.RunIssue(ctx, subject.ID, subject.Revision, profile, flows.IssueDeps{
		CreateLedger: func(ctx context.Context, subjectID string) (string, error) {
			entry, err := e.ledger.Create(ctx, subjectID)
			if err != nil {
				return "", err
			}
			return entry.ID, nil
		},
		Sign:     e.jwtManager.Sign,
		GuardTag: e.guardSecret.tag,
	})
	if res.Failure != flows.TokenFailureNone {
		err := tokenFailureError(res)
		e.logger.ErrorContext(ctx, "token issue failed", slog.String("subject_id", subject.ID), slog.Any("error", err))
		return "", err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, subject.ID, "", 0, nil, func() map[string]string {
		return map[string]string{"record_id": res.RecordID}
	})
	return res.Token, nil
}

// ValidateToken verifies token end to end and returns the subject snapshot
// it carries. Every rejection satisfies errors.Is(err, ErrTokenInvalid)
// unless a backend failed.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	res := flows.RunValidate(ctx, token, flows.ValidateDeps{
		Bearer: e.bearerDeps(),
		LookupLedger: func(ctx context.Context, recordID string) (string, error) {
			entry, err := e.ledger.Lookup(ctx, recordID)
			if err != nil {
				return "", err
			}
			return entry.SubjectID, nil
		},
		CurrentRevision: func(ctx context.Context, subjectID string) (uint64, error) {
			subject, err := e.subjects.FindSubjectByID(ctx, subjectID)
			if err != nil {
				return 0, err
			}
			return subject.Revision, nil
		},
		LedgerNotFound:  ErrLedgerEntryNotFound,
		SubjectNotFound: ErrSubjectNotFound,
		OnGuardMismatch: func(claims *jwt.Claims) {
			e.logger.WarnContext(ctx, "bearer guard tag mismatch",
				slog.String("subject_id", claims.Subject),
				slog.String("ip", clientIPFromContext(ctx)))
			e.emitAudit(ctx, auditEventTokenTamper, false, claims.Subject, "", 0, ErrTokenGuardMismatch, nil)
		},
	})
	if res.Failure != flows.TokenFailureNone {
		return nil, e.rejectToken(ctx, res)
	}

	var profile Profile
	if len(res.Claims.Profile) > 0 {
		if err := json.Unmarshal(res.Claims.Profile, &profile); err != nil {
			e.metricInc(MetricTokenMalformed)
			return nil, ErrTokenMalformed
		}
	}

	e.metricInc(MetricTokenValid)
	return &AuthResult{
		SubjectID:     res.Claims.Subject,
		Profile:       profile,
		TokenRecordID: res.RecordID,
		Revision:      res.Revision,
		ExpiresAt:     res.ExpiresAt,
	}, nil
}

// UpdateToken re-issues token for a newer revision of the same subject,
// keeping its ledger row. The previous token need not be current; it must
// still carry a valid signature, guard tag and expiry. The snapshot is
// rebuilt from subject, so cleared fields stay cleared; timestamps and
// identity fall back to the previous snapshot only when subject leaves them
// unset. The new token expires no later than the ledger row.
func (e *Engine) UpdateToken(ctx context.Context, token string, subject Subject) (string, error) {
	if e == nil || e.jwtManager == nil || !e.jwtManager.CanSign() {
		return "", ErrEngineNotReady
	}
	if subject.ID == "" {
		return "", ErrSubjectInvalid
	}

	res := flows.RunUpdate(ctx, token, subject.ID, subject.Revision, flows.UpdateDeps{
		Bearer: e.bearerDeps(),
		LedgerExpiry: func(ctx context.Context, recordID string) (time.Time, error) {
			entry, err := e.ledger.Lookup(ctx, recordID)
			if err != nil {
				return time.Time{}, err
			}
			return entry.ExpiresAt, nil
		},
		LedgerNotFound: ErrLedgerEntryNotFound,
		MergeProfile: func(prior json.RawMessage) (json.RawMessage, error) {
			return mergeProfile(prior, e.subjectProfile(subject))
		},
		Sign:     e.jwtManager.SignUntil,
		GuardTag: e.guardSecret.tag,
	})
	if res.Failure != flows.TokenFailureNone {
		return "", e.rejectToken(ctx, res)
	}

	e.metricInc(MetricTokenUpdated)
	e.emitAudit(ctx, auditEventTokenUpdated, true, subject.ID, "", 0, nil, func() map[string]string {
		return map[string]string{"record_id": res.RecordID}
	})
	return res.Token, nil
}

// RevokeToken deletes the ledger row of token. Tokens that are already
// revision-stale can still be revoked; expired ones cannot.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}

	res := flows.RunVerify(token, e.bearerDeps())
	if res.Failure != flows.TokenFailureNone {
		return e.rejectToken(ctx, res)
	}
	return e.RevokeRecord(ctx, res.RecordID)
}

// RevokeRecord deletes one ledger row by id.
func (e *Engine) RevokeRecord(ctx context.Context, recordID string) error {
	if e == nil || e.ledger == nil {
		return ErrEngineNotReady
	}
	if err := e.ledger.Delete(ctx, recordID); err != nil {
		return mapLedgerError(err)
	}
	return nil
}

// RevokeAll invalidates every token of subjectID by bumping its revision.
func (e *Engine) RevokeAll(ctx context.Context, subjectID string) error {
	if e == nil || e.subjects == nil {
		return ErrEngineNotReady
	}
	subject, err := e.subjects.FindSubjectByID(ctx, subjectID)
	if err != nil {
		return mapSubjectError(err)
	}
	if _, err := e.subjects.SaveSubject(ctx, subject); err != nil {
		return mapSubjectError(err)
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, subjectID, "", 0, nil, nil)
	return nil
}

func (e *Engine) bearerDeps() flows.BearerDeps {
	return flows.BearerDeps{
		Parse:         e.jwtManager.Parse,
		GuardTagEqual: e.guardSecret.equal,
	}
}

func (e *Engine) rejectToken(ctx context.Context, res flows.TokenResult) error {
	err := tokenFailureError(res)
	if id, ok := tokenFailureMetric(res.Failure); ok {
		e.metricInc(id)
	}

	switch res.Failure {
	case flows.TokenFailureGuardMismatch:
		// logged with the tamper event
	case flows.TokenFailureRevoked:
		e.logger.InfoContext(ctx, "token revoked", slog.String("reason", res.Err.Error()))
	case flows.TokenFailureLedgerUnavailable, flows.TokenFailureSubjectUnavailable, flows.TokenFailureInternal:
		e.logger.ErrorContext(ctx, "token check failed", slog.Any("error", err))
	default:
		e.logger.DebugContext(ctx, "token rejected", slog.Any("error", err))
	}

	if errors.Is(err, ErrTokenInvalid) && res.Failure != flows.TokenFailureGuardMismatch {
		e.emitAudit(ctx, auditEventTokenRejected, false, "", "", 0, err, nil)
	}
	return err
}

// mergeProfile returns next as the refreshed snapshot. Only fields a
// subject record may leave unset are taken from prior.
func mergeProfile(prior json.RawMessage, next Profile) (json.RawMessage, error) {
	var previous Profile
	if len(prior) > 0 {
		if err := json.Unmarshal(prior, &previous); err != nil {
			return nil, err
		}
	}
	merged := next
	if merged.ID == "" {
		merged.ID = previous.ID
	}
	if merged.Email == "" {
		merged.Email = previous.Email
	}
	if merged.CreatedAt == 0 {
		merged.CreatedAt = previous.CreatedAt
	}
	if merged.UpdatedAt == 0 {
		merged.UpdatedAt = previous.UpdatedAt
	}
	return json.Marshal(merged)
}
