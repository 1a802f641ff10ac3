package saraAuth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/saraAuth/internal/audit"
	internalmetrics "github.com/MrEthical07/saraAuth/internal/metrics"
)

// Subject is an authenticated principal as stored by a [SubjectProvider].
//
// Revision only ever increases; the provider bumps it on every save. Tokens
// issued before a bump stop validating.
type Subject struct {
	ID        string
	Email     string
	Nickname  string
	Roles     []string
	Passkeys  []PasskeyCredential
	Revision  uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PasskeyCredential is a registered WebAuthn credential. Verification of
// assertions against it happens outside saraAuth.
type PasskeyCredential struct {
	ID         string   `json:"id"`
	Label      string   `json:"label,omitempty"`
	PublicKey  []byte   `json:"public_key,omitempty"`
	Counter    uint32   `json:"counter,omitempty"`
	Transports []string `json:"transports,omitempty"`
}

// Profile is the subject snapshot embedded in tokens under the "subject" claim.
type Profile struct {
	ID        string              `json:"_id"`
	Email     string              `json:"email"`
	Nickname  string              `json:"nickname,omitempty"`
	Roles     []string            `json:"roles,omitempty"`
	Passkeys  []PasskeyCredential `json:"passkeys,omitempty"`
	CreatedAt int64               `json:"created_at,omitempty"`
	UpdatedAt int64               `json:"updated_at,omitempty"`
}

// HasRole reports whether the snapshot carries role.
func (p Profile) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthResult is returned by [Engine.ValidateToken].
type AuthResult struct {
	SubjectID     string
	Profile       Profile
	TokenRecordID string
	Revision      uint64
	ExpiresAt     time.Time
}

// SubjectProvider is the persistence collaborator for subjects. SaveSubject
// inserts when ID is empty, atomically increments Revision and returns the
// stored row. Lookups return [ErrSubjectNotFound] when nothing matches.
type SubjectProvider interface {
	FindSubjectByID(ctx context.Context, id string) (Subject, error)
	FindSubjectByEmail(ctx context.Context, email string) (Subject, error)
	SaveSubject(ctx context.Context, subject Subject) (Subject, error)
}

// LedgerEntry is one issued-token row.
type LedgerEntry struct {
	ID        string
	SubjectID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LedgerStore records issued tokens. Lookup returns [ErrLedgerEntryNotFound]
// for rows that were never created, were deleted, or have expired, even if
// the backend has not reaped them yet.
type LedgerStore interface {
	Create(ctx context.Context, subjectID string) (LedgerEntry, error)
	Lookup(ctx context.Context, id string) (LedgerEntry, error)
	Delete(ctx context.Context, id string) error
}

// CodeMessage is handed to a [CodeSender] after a code session is created.
type CodeMessage struct {
	Kind      SessionKind
	To        string
	Nickname  string
	SessionID string
	Code      string
	IP        string
}

// CodeSender delivers one-time codes out of band (usually mail).
type CodeSender interface {
	SendCode(ctx context.Context, msg CodeMessage) error
}

// CodeSenderFunc adapts a function to [CodeSender].
type CodeSenderFunc func(ctx context.Context, msg CodeMessage) error

func (f CodeSenderFunc) SendCode(ctx context.Context, msg CodeMessage) error {
	return f(ctx, msg)
}

// CodeChallenge is what a code-requesting flow returns to the client. The
// code itself only travels through the [CodeSender].
type CodeChallenge struct {
	Kind      SessionKind
	SessionID string
	ExpiresAt time.Time
}

// ProfileChange carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileChange struct {
	Nickname *string
}

// PasskeyChallenge starts a WebAuthn ceremony.
type PasskeyChallenge struct {
	Kind      SessionKind
	SessionID string
	Challenge string
	ExpiresAt time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes events as structured log records.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] logging at INFO on logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricTokenIssued              = MetricID(internalmetrics.MetricTokenIssued)
	MetricTokenUpdated             = MetricID(internalmetrics.MetricTokenUpdated)
	MetricTokenValid               = MetricID(internalmetrics.MetricTokenValid)
	MetricTokenMalformed           = MetricID(internalmetrics.MetricTokenMalformed)
	MetricTokenSignatureInvalid    = MetricID(internalmetrics.MetricTokenSignatureInvalid)
	MetricTokenExpired             = MetricID(internalmetrics.MetricTokenExpired)
	MetricTokenNotYetValid         = MetricID(internalmetrics.MetricTokenNotYetValid)
	MetricTokenGuardMismatch       = MetricID(internalmetrics.MetricTokenGuardMismatch)
	MetricTokenRevoked             = MetricID(internalmetrics.MetricTokenRevoked)
	MetricCodeSessionCreated       = MetricID(internalmetrics.MetricCodeSessionCreated)
	MetricCodeSessionConsumed      = MetricID(internalmetrics.MetricCodeSessionConsumed)
	MetricCodeSessionMiss          = MetricID(internalmetrics.MetricCodeSessionMiss)
	MetricPasskeySessionCreated    = MetricID(internalmetrics.MetricPasskeySessionCreated)
	MetricPasskeySessionConsumed   = MetricID(internalmetrics.MetricPasskeySessionConsumed)
	MetricPasskeyChallengeMismatch = MetricID(internalmetrics.MetricPasskeyChallengeMismatch)
	MetricRateLimitHit             = MetricID(internalmetrics.MetricRateLimitHit)
	MetricSubjectRegistered        = MetricID(internalmetrics.MetricSubjectRegistered)
	MetricProfileUpdated           = MetricID(internalmetrics.MetricProfileUpdated)
	MetricEmailChanged             = MetricID(internalmetrics.MetricEmailChanged)
	MetricRevokeAll                = MetricID(internalmetrics.MetricRevokeAll)
	MetricValidateLatency          = MetricID(internalmetrics.MetricValidateLatency)
)

// Metrics holds atomic counters and an optional validate latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false, all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
