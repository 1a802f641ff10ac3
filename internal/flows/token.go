package flows

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/MrEthical07/saraAuth/jwt"
)

// TokenFailureKind classifies token flow failures for root-level mapping.
type TokenFailureKind int

const (
	TokenFailureNone TokenFailureKind = iota
	TokenFailureMalformed
	TokenFailureSignature
	TokenFailureExpired
	TokenFailureNotYetValid
	TokenFailureGuardMismatch
	TokenFailureRevoked
	TokenFailureSubjectMismatch
	TokenFailureLedgerUnavailable
	TokenFailureSubjectUnavailable
	TokenFailureInternal
)

// BearerDeps verifies the signed half and the guard tag of a bearer token.
type BearerDeps struct {
	Parse         func(string) (*jwt.Claims, error)
	GuardTagEqual func(tag, jti string) (bool, error)
}

// IssueDeps creates one ledger row and signs over it.
type IssueDeps struct {
	CreateLedger func(ctx context.Context, subjectID string) (string, error)
	Sign         func(subjectID, jti string, profile json.RawMessage) (string, error)
	GuardTag     func(jti string) (string, error)
}

// ValidateDeps resolves the ledger row and the subject's current revision.
// Lookups return the matching NotFound sentinel when the row is absent.
type ValidateDeps struct {
	Bearer           BearerDeps
	LookupLedger     func(ctx context.Context, recordID string) (subjectID string, err error)
	CurrentRevision  func(ctx context.Context, subjectID string) (uint64, error)
	LedgerNotFound   error
	SubjectNotFound  error
	OnGuardMismatch  func(claims *jwt.Claims)
	OnRevisionChange func(claims *jwt.Claims, issued, current uint64)
}

// UpdateDeps re-signs a token for a newer revision of the same subject.
// Sign caps exp at notAfter, the expiry of the kept ledger row.
type UpdateDeps struct {
	Bearer         BearerDeps
	LedgerExpiry   func(ctx context.Context, recordID string) (time.Time, error)
	LedgerNotFound error
	MergeProfile   func(prior json.RawMessage) (json.RawMessage, error)
	Sign           func(subjectID, jti string, profile json.RawMessage, notAfter time.Time) (string, error)
	GuardTag       func(jti string) (string, error)
}

type TokenResult struct {
	Failure   TokenFailureKind
	Err       error
	Token     string
	Claims    *jwt.Claims
	RecordID  string
	Revision  uint64
	ExpiresAt time.Time
}

func tokenFailure(kind TokenFailureKind, err error) TokenResult {
	return TokenResult{Failure: kind, Err: err}
}

// RunIssue creates a ledger row, signs jti = "<row>/<revision>" and appends
// the guard tag.
func RunIssue(ctx context.Context, subjectID string, revision uint64, profile json.RawMessage, deps IssueDeps) TokenResult {
	recordID, err := deps.CreateLedger(ctx, subjectID)
	if err != nil {
		return tokenFailure(TokenFailureLedgerUnavailable, err)
	}
	return signBearer(subjectID, recordID, revision, profile, deps.Sign, deps.GuardTag)
}

// RunValidate checks, in order: shape, signature and time claims, guard tag,
// token id, ledger row, subject existence and revision.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) TokenResult {
	claims, res := verifyBearer(token, deps.Bearer, deps.OnGuardMismatch)
	if res.Failure != TokenFailureNone {
		return res
	}

	recordID, issued, err := internal.ParseJTI(claims.ID)
	if err != nil {
		return tokenFailure(TokenFailureMalformed, err)
	}

	ledgerSubject, err := deps.LookupLedger(ctx, recordID)
	if err != nil {
		if errors.Is(err, deps.LedgerNotFound) {
			return tokenFailure(TokenFailureRevoked, err)
		}
		return tokenFailure(TokenFailureLedgerUnavailable, err)
	}
	if ledgerSubject != claims.Subject {
		return tokenFailure(TokenFailureRevoked, errors.New("ledger row belongs to another subject"))
	}

	current, err := deps.CurrentRevision(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, deps.SubjectNotFound) {
			return tokenFailure(TokenFailureRevoked, err)
		}
		return tokenFailure(TokenFailureSubjectUnavailable, err)
	}
	if current > issued {
		if deps.OnRevisionChange != nil {
			deps.OnRevisionChange(claims, issued, current)
		}
		return tokenFailure(TokenFailureRevoked, errors.New("subject revision advanced"))
	}

	return TokenResult{
		Claims:    claims,
		RecordID:  recordID,
		Revision:  issued,
		ExpiresAt: expiresAt(claims),
	}
}

// RunUpdate re-signs token for (subjectID, revision) keeping its ledger row.
// Revision staleness is not checked but revision must not go back. The new
// exp never passes the ledger row's expiry, or the prior exp when no
// LedgerExpiry is wired.
func RunUpdate(ctx context.Context, token, subjectID string, revision uint64, deps UpdateDeps) TokenResult {
	claims, res := verifyBearer(token, deps.Bearer, nil)
	if res.Failure != TokenFailureNone {
		return res
	}
	if claims.Subject != subjectID {
		return tokenFailure(TokenFailureSubjectMismatch, errors.New("token subject differs"))
	}

	recordID, issued, err := internal.ParseJTI(claims.ID)
	if err != nil {
		return tokenFailure(TokenFailureMalformed, err)
	}
	if revision < issued {
		return tokenFailure(TokenFailureSubjectMismatch, errors.New("subject revision went backwards"))
	}

	notAfter := expiresAt(claims)
	if deps.LedgerExpiry != nil {
		notAfter, err = deps.LedgerExpiry(ctx, recordID)
		if err != nil {
			if errors.Is(err, deps.LedgerNotFound) {
				return tokenFailure(TokenFailureRevoked, err)
			}
			return tokenFailure(TokenFailureLedgerUnavailable, err)
		}
	}

	profile, err := deps.MergeProfile(claims.Profile)
	if err != nil {
		return tokenFailure(TokenFailureInternal, err)
	}
	sign := func(subjectID, jti string, profile json.RawMessage) (string, error) {
		return deps.Sign(subjectID, jti, profile, notAfter)
	}
	return signBearer(subjectID, recordID, revision, profile, sign, deps.GuardTag)
}

func verifyBearer(token string, deps BearerDeps, onMismatch func(*jwt.Claims)) (*jwt.Claims, TokenResult) {
	signed, tag, err := internal.SplitBearer(token)
	if err != nil {
		return nil, tokenFailure(TokenFailureMalformed, err)
	}

	claims, err := deps.Parse(signed)
	if err != nil {
		switch jwt.Classify(err) {
		case jwt.FailureMalformed:
			return nil, tokenFailure(TokenFailureMalformed, err)
		case jwt.FailureExpired:
			return nil, tokenFailure(TokenFailureExpired, err)
		case jwt.FailureNotYetValid:
			return nil, tokenFailure(TokenFailureNotYetValid, err)
		default:
			return nil, tokenFailure(TokenFailureSignature, err)
		}
	}

	ok, err := deps.GuardTagEqual(tag, claims.ID)
	if err != nil {
		return nil, tokenFailure(TokenFailureInternal, err)
	}
	if !ok {
		if onMismatch != nil {
			onMismatch(claims)
		}
		return nil, tokenFailure(TokenFailureGuardMismatch, errors.New("guard tag mismatch"))
	}
	return claims, TokenResult{}
}

func signBearer(
	subjectID, recordID string,
	revision uint64,
	profile json.RawMessage,
	sign func(string, string, json.RawMessage) (string, error),
	guardTag func(string) (string, error),
) TokenResult {
	jti := internal.FormatJTI(recordID, revision)
	signed, err := sign(subjectID, jti, profile)
	if err != nil {
		return tokenFailure(TokenFailureInternal, err)
	}
	tag, err := guardTag(jti)
	if err != nil {
		return tokenFailure(TokenFailureInternal, err)
	}
	return TokenResult{
		Token:    internal.JoinBearer(signed, tag),
		RecordID: recordID,
		Revision: revision,
	}
}

func expiresAt(claims *jwt.Claims) time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// RunVerify checks shape, signature, time claims and guard tag only, and
// decodes the token id. It backs revocation of one token.
func RunVerify(token string, deps BearerDeps) TokenResult {
	claims, res := verifyBearer(token, deps, nil)
	if res.Failure != TokenFailureNone {
		return res
	}
	recordID, revision, err := internal.ParseJTI(claims.ID)
	if err != nil {
		return tokenFailure(TokenFailureMalformed, err)
	}
	return TokenResult{
		Claims:    claims,
		RecordID:  recordID,
		Revision:  revision,
		ExpiresAt: expiresAt(claims),
	}
}
