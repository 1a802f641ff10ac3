package jwt

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Failure classifies a Parse error without exposing golang-jwt sentinels
// to callers.
type Failure int

const (
	FailureNone Failure = iota
	FailureMalformed
	FailureSignature
	FailureExpired
	FailureNotYetValid
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureMalformed:
		return "malformed"
	case FailureSignature:
		return "signature"
	case FailureExpired:
		return "expired"
	case FailureNotYetValid:
		return "not_yet_valid"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by [Manager.Parse] to a [Failure].
// Claim mismatches (issuer, audience, algorithm, kid) count as signature
// failures: the token was not minted by this deployment.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, jwt.ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return FailureNotYetValid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return FailureMalformed
	default:
		return FailureSignature
	}
}
