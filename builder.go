package saraAuth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/saraAuth/internal/audit"
	"github.com/MrEthical07/saraAuth/internal/limiters"
	"github.com/MrEthical07/saraAuth/internal/rate"
	"github.com/MrEthical07/saraAuth/internal/stores"
	"github.com/MrEthical07/saraAuth/jwt"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	subjects      SubjectProvider
	ledger        LedgerStore
	ledgerBackend string
	sender        CodeSender
	auditSink     AuditSink
	logger        *slog.Logger
	now           func() time.Time

	built bool
}

// New starts a builder from [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Byte slices are copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the cache used for sessions, guard counters and, unless
// [Builder.WithLedger] is used, the ledger.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithSubjectProvider(provider SubjectProvider) *Builder {
	b.subjects = provider
	return b
}

// WithLedger swaps the default Redis ledger for a durable store. backend
// names it in the security report.
func (b *Builder) WithLedger(ledger LedgerStore, backend string) *Builder {
	b.ledger = ledger
	b.ledgerBackend = backend
	return b
}

// WithCodeSender sets the out-of-band delivery channel for codes. Without
// one, the Request* flows fail with [ErrEngineNotReady].
func (b *Builder) WithCodeSender(sender CodeSender) *Builder {
	b.sender = sender
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine clock used for token time claims, ledger
// rows and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, parses key material and wires every
// store. The guard secret is sealed and wiped from the builder.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.subjects == nil {
		return nil, errors.New("subject provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	jm, err := jwt.NewManager(jwt.Config{
		TokenTTL:      cfg.Token.TTL,
		NotBefore:     cfg.Token.NotBefore,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger.With(slog.String("component", "saraAuth")),
		now:          now,
		codeStore:    stores.NewCodeSessionStore(b.redis, cfg.Sessions.CodePrefix),
		passkeyStore: stores.NewPasskeySessionStore(b.redis, cfg.Sessions.PasskeyPrefix),
		guard:        rate.NewGuard(b.redis, cfg.BruteForce.Prefix),
		subjects:     b.subjects,
		sender:       b.sender,
		jwtManager:   jm,
		guardSecret:  newGuardSecret(cfg.Token.GuardSecret),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink, now),
		metrics: NewMetrics(cfg.Metrics),
	}

	if cfg.BruteForce.Enabled {
		engine.flowLimiter = limiters.NewFlowLimiter(engine.guard, limiters.Config{
			IPLogin:    cfg.BruteForce.IPLogin.rate(),
			IPRegister: cfg.BruteForce.IPRegister.rate(),
			IPPasskey:  cfg.BruteForce.IPPasskey.rate(),
			CodeGuess:  cfg.BruteForce.CodeGuess.rate(),
		})
	}

	if b.ledger != nil {
		engine.ledger = b.ledger
		engine.ledgerBackend = b.ledgerBackend
		if engine.ledgerBackend == "" {
			engine.ledgerBackend = "custom"
		}
	} else {
		ledger := stores.NewLedger(b.redis, cfg.Ledger.RedisPrefix, cfg.ledgerTTL())
		ledger.SetClock(now)
		engine.ledger = newRedisLedger(ledger)
		engine.ledgerBackend = "redis"
	}

	// the engine holds the sealed copy only
	wipe(engine.config.Token.GuardSecret)
	engine.config.Token.GuardSecret = nil
	wipe(b.config.Token.GuardSecret)
	engine.config.Token.PrivateKey = nil

	b.built = true

	return engine, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
