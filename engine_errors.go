package saraAuth

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/MrEthical07/saraAuth/internal/flows"
	"github.com/MrEthical07/saraAuth/internal/limiters"
	"github.com/MrEthical07/saraAuth/internal/rate"
	"github.com/MrEthical07/saraAuth/internal/stores"
)

func mapGuardError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	case errors.Is(err, rate.ErrPolicyInvalid):
		return fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
}

func mapLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrFlowRateLimited):
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
}

// mapSessionError folds every store miss into ErrSessionNotFound. Malformed
// session ids and codes are misses too; only bad kinds, lengths and
// lifetimes are argument errors.
func mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, internal.ErrInvalidCodeDigits):
		return ErrCodeLengthInvalid
	case errors.Is(err, stores.ErrSessionRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	case errors.Is(err, stores.ErrSessionInvalid):
		return ErrSessionTTLInvalid
	default:
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
}

func mapLedgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLedgerEntryNotFound):
		return err
	case errors.Is(err, ErrLedgerUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
}

func mapSubjectError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSubjectNotFound),
		errors.Is(err, ErrSubjectExists),
		errors.Is(err, ErrSubjectInvalid),
		errors.Is(err, ErrSubjectStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrSubjectStoreUnavailable, err)
	}
}

func tokenFailureError(res flows.TokenResult) error {
	switch res.Failure {
	case flows.TokenFailureNone:
		return nil
	case flows.TokenFailureMalformed:
		return ErrTokenMalformed
	case flows.TokenFailureSignature:
		return ErrTokenSignatureInvalid
	case flows.TokenFailureExpired:
		return ErrTokenExpired
	case flows.TokenFailureNotYetValid:
		return ErrTokenNotYetValid
	case flows.TokenFailureGuardMismatch:
		return ErrTokenGuardMismatch
	case flows.TokenFailureRevoked:
		return ErrTokenRevoked
	case flows.TokenFailureSubjectMismatch:
		return ErrSubjectMismatch
	case flows.TokenFailureLedgerUnavailable:
		return mapLedgerError(res.Err)
	case flows.TokenFailureSubjectUnavailable:
		return mapSubjectError(res.Err)
	default:
		return fmt.Errorf("token: %w", res.Err)
	}
}

func tokenFailureMetric(kind flows.TokenFailureKind) (MetricID, bool) {
	switch kind {
	case flows.TokenFailureMalformed:
		return MetricTokenMalformed, true
	case flows.TokenFailureSignature:
		return MetricTokenSignatureInvalid, true
	case flows.TokenFailureExpired:
		return MetricTokenExpired, true
	case flows.TokenFailureNotYetValid:
		return MetricTokenNotYetValid, true
	case flows.TokenFailureGuardMismatch:
		return MetricTokenGuardMismatch, true
	case flows.TokenFailureRevoked:
		return MetricTokenRevoked, true
	default:
		return 0, false
	}
}
