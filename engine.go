package saraAuth

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/saraAuth/internal/audit"
	"github.com/MrEthical07/saraAuth/internal/limiters"
	"github.com/MrEthical07/saraAuth/internal/rate"
	"github.com/MrEthical07/saraAuth/internal/stores"
	"github.com/MrEthical07/saraAuth/jwt"
)

// Engine issues, validates and updates bearer tokens and runs the code and
// passkey session flows. Build one with [New]; it is safe for concurrent use.
type Engine struct {
	config        Config
	logger        *slog.Logger
	now           func() time.Time
	codeStore     *stores.CodeSessionStore
	passkeyStore  *stores.PasskeySessionStore
	guard         *rate.Guard
	flowLimiter   *limiters.FlowLimiter
	ledger        LedgerStore
	ledgerBackend string
	subjects      SubjectProvider
	sender        CodeSender
	jwtManager    *jwt.Manager
	guardSecret   *guardSecret
	audit         *audit.Dispatcher
	metrics       *Metrics
}

// Close flushes the audit dispatcher and wipes the guard secret.
// The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	e.guardSecret.destroy()
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Metrics exposes the live counters, for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Inspect records one attempt against target under policy and reports
// whether the caller is blocked. Blocked attempts are not counted.
func (e *Engine) Inspect(ctx context.Context, policy BruteForcePolicy, target string) (bool, error) {
	if e == nil || e.guard == nil {
		return false, ErrEngineNotReady
	}
	blocked, err := e.guard.Inspect(ctx, policy.rate(), target)
	if err != nil {
		return false, mapGuardError(err)
	}
	if blocked {
		e.emitRateLimit(ctx, policy.Type, "")
	}
	return blocked, nil
}

func (p BruteForcePolicy) rate() rate.Policy {
	return rate.Policy{Type: p.Type, MaxRetry: p.MaxRetry, TTL: p.TTL}
}

func (e *Engine) subjectProfile(s Subject) Profile {
	p := Profile{
		ID:       s.ID,
		Email:    s.Email,
		Nickname: s.Nickname,
		Roles:    append([]string(nil), s.Roles...),
		Passkeys: append([]PasskeyCredential(nil), s.Passkeys...),
	}
	if !s.CreatedAt.IsZero() {
		p.CreatedAt = s.CreatedAt.Unix()
	}
	if !s.UpdatedAt.IsZero() {
		p.UpdatedAt = s.UpdatedAt.Unix()
	}
	return p
}
