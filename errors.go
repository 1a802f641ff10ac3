package saraAuth

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenInvalid is the parent of every token rejection below.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenMalformed covers bad bearer shape, bad JWS encoding and bad token ids.
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	// ErrTokenSignatureInvalid covers bad signatures, foreign algorithms, issuers and audiences.
	ErrTokenSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrTokenInvalid)
	ErrTokenExpired          = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenNotYetValid      = fmt.Errorf("%w: not yet valid", ErrTokenInvalid)
	// ErrTokenGuardMismatch means the signature verified but the guard tag did not.
	ErrTokenGuardMismatch = fmt.Errorf("%w: guard mismatch", ErrTokenInvalid)
	// ErrTokenRevoked covers a missing ledger row, a missing subject and a stale revision.
	ErrTokenRevoked = fmt.Errorf("%w: revoked", ErrTokenInvalid)

	// ErrSessionNotFound is returned for wrong, expired and consumed sessions alike.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionKindInvalid rejects session kinds outside the closed set.
	ErrSessionKindInvalid = errors.New("invalid session kind")
	// ErrCodeLengthInvalid rejects code lengths outside 4..12.
	ErrCodeLengthInvalid = errors.New("invalid code length")
	// ErrSessionTTLInvalid rejects non-positive session lifetimes.
	ErrSessionTTLInvalid = errors.New("invalid session ttl")
	// ErrChallengeMismatch is returned when a passkey ceremony answers a different challenge.
	ErrChallengeMismatch = errors.New("passkey challenge mismatch")

	// ErrRateLimited never carries counters or thresholds.
	ErrRateLimited = errors.New("rate limited")
	// ErrPolicyInvalid rejects brute-force policies with an empty type, a
	// negative retry budget or a non-positive window.
	ErrPolicyInvalid = errors.New("invalid brute-force policy")

	ErrSubjectNotFound = errors.New("subject not found")
	ErrSubjectExists   = errors.New("subject already exists")
	// ErrSubjectMismatch is returned when a session or token belongs to another subject.
	ErrSubjectMismatch     = errors.New("subject mismatch")
	ErrSubjectInvalid      = errors.New("invalid subject")
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")

	ErrCacheUnavailable        = errors.New("cache backend unavailable")
	ErrLedgerUnavailable       = errors.New("ledger backend unavailable")
	ErrSubjectStoreUnavailable = errors.New("subject store unavailable")
	ErrDeliveryFailed          = errors.New("code delivery failed")
	ErrEngineNotReady          = errors.New("engine not ready")
)
