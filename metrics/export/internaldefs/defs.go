package internaldefs

import (
	saraAuth "github.com/MrEthical07/saraAuth"
)

// Namespace prefixes every exported metric name.
const Namespace = "sara"

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = Namespace + "_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   saraAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   saraAuth.MetricID
	Name string
	Help string
}

func counter(id saraAuth.MetricID, name, help string) CounterDef {
	return CounterDef{ID: id, Name: Namespace + "_" + name + "_total", Help: help}
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	counter(saraAuth.MetricTokenIssued, "token_issued", "Bearer tokens issued."),
	counter(saraAuth.MetricTokenUpdated, "token_updated", "Bearer tokens re-issued for a newer subject revision."),
	counter(saraAuth.MetricTokenValid, "token_valid", "Bearer tokens that passed validation."),
	counter(saraAuth.MetricTokenMalformed, "token_malformed", "Bearer tokens rejected as malformed."),
	counter(saraAuth.MetricTokenSignatureInvalid, "token_signature_invalid", "Bearer tokens rejected for a bad signature, issuer or audience."),
	counter(saraAuth.MetricTokenExpired, "token_expired", "Bearer tokens rejected as expired."),
	counter(saraAuth.MetricTokenNotYetValid, "token_not_yet_valid", "Bearer tokens presented before nbf."),
	counter(saraAuth.MetricTokenGuardMismatch, "token_guard_mismatch", "Bearer tokens whose guard tag did not match the token id."),
	counter(saraAuth.MetricTokenRevoked, "token_revoked", "Bearer tokens rejected as revoked or stale."),
	counter(saraAuth.MetricCodeSessionCreated, "code_session_created", "Code sessions created."),
	counter(saraAuth.MetricCodeSessionConsumed, "code_session_consumed", "Code sessions consumed."),
	counter(saraAuth.MetricCodeSessionMiss, "code_session_miss", "Code session lookups that found nothing."),
	counter(saraAuth.MetricPasskeySessionCreated, "passkey_session_created", "Passkey sessions created."),
	counter(saraAuth.MetricPasskeySessionConsumed, "passkey_session_consumed", "Passkey sessions consumed."),
	counter(saraAuth.MetricPasskeyChallengeMismatch, "passkey_challenge_mismatch", "Passkey ceremonies finished with the wrong challenge."),
	counter(saraAuth.MetricRateLimitHit, "rate_limit_hit", "Requests denied by the brute-force guard."),
	counter(saraAuth.MetricSubjectRegistered, "subject_registered", "Subjects created by confirmed registrations."),
	counter(saraAuth.MetricProfileUpdated, "profile_updated", "Profile updates."),
	counter(saraAuth.MetricEmailChanged, "email_changed", "Confirmed email changes."),
	counter(saraAuth.MetricRevokeAll, "revoke_all", "Revoke-all operations."),
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: saraAuth.MetricValidateLatency, Name: Namespace + "_validate_latency_seconds", Help: "ValidateToken latency."},
}

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
var HistogramBounds = [BucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = [BucketCount]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// BucketCount is the fixed number of latency buckets.
const BucketCount = 8

// Cumulative pads or truncates raw per-bucket counts to [BucketCount] and
// returns running totals, as required for "le" buckets.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
