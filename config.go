package saraAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/saraAuth/internal"
)

// Config is the full engine configuration. Start from [DefaultConfig] and
// override what differs; key material is never read from YAML directly,
// see [LoadConfigFile].
type Config struct {
	Token      TokenConfig      `yaml:"token"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	BruteForce BruteForceConfig `yaml:"brute_force"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls bearer token signing and time claims.
type TokenConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	NotBefore time.Duration `yaml:"not_before"`
	// Leeway is the clock skew tolerated on exp and nbf. Zero is strict.
	Leeway        time.Duration `yaml:"leeway"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	SigningMethod string        `yaml:"signing_method"` // "es256" (default) or "ed25519"
	KeyID         string        `yaml:"key_id"`

	PrivateKey  []byte `yaml:"-"`
	PublicKey   []byte `yaml:"-"`
	GuardSecret []byte `yaml:"-"`
}

/*
====================================
LEDGER CONFIG
====================================
*/

// LedgerConfig controls the default Redis ledger. TTL zero means Token.TTL.
type LedgerConfig struct {
	RedisPrefix string        `yaml:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl"`
}

/*
====================================
SESSIONS CONFIG
====================================
*/

// CodeFlowConfig sizes the code sessions of one flow.
type CodeFlowConfig struct {
	CodeLength int           `yaml:"code_length"`
	TTL        time.Duration `yaml:"ttl"`
}

type SessionsConfig struct {
	CodePrefix    string         `yaml:"code_prefix"`
	PasskeyPrefix string         `yaml:"passkey_prefix"`
	Login         CodeFlowConfig `yaml:"login"`
	Register      CodeFlowConfig `yaml:"register"`
	EmailChange   CodeFlowConfig `yaml:"email_change"`
	PasskeyTTL    time.Duration  `yaml:"passkey_ttl"`
}

/*
====================================
BRUTE FORCE CONFIG
====================================
*/

// BruteForcePolicy allows MaxRetry+1 attempts per TTL window per target.
// Every admitted attempt restarts the window.
type BruteForcePolicy struct {
	Type     string        `yaml:"type"`
	MaxRetry int           `yaml:"max_retry"`
	TTL      time.Duration `yaml:"ttl"`
}

type BruteForceConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Prefix     string           `yaml:"prefix"`
	IPLogin    BruteForcePolicy `yaml:"ip_login"`
	IPRegister BruteForcePolicy `yaml:"ip_register"`
	IPPasskey  BruteForcePolicy `yaml:"ip_passkey"`
	CodeGuess  BruteForcePolicy `yaml:"code_guess"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	DefaultIssuer      = "Sara Hoshikawa"
	minGuardSecretSize = 32
)

// DefaultConfig returns the stock configuration. Key material, the guard
// secret and the audience must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:           24 * time.Hour,
			NotBefore:     500 * time.Millisecond,
			Issuer:        DefaultIssuer,
			SigningMethod: "es256",
		},
		Ledger: LedgerConfig{
			RedisPrefix: "ledger",
		},
		Sessions: SessionsConfig{
			CodePrefix:    "code",
			PasskeyPrefix: "passkey",
			Login:         CodeFlowConfig{CodeLength: 6, TTL: 30 * time.Minute},
			Register:      CodeFlowConfig{CodeLength: 7, TTL: 30 * time.Minute},
			EmailChange:   CodeFlowConfig{CodeLength: 8, TTL: 30 * time.Minute},
			PasskeyTTL:    5 * time.Minute,
		},
		BruteForce: BruteForceConfig{
			Enabled:    true,
			Prefix:     "bfap",
			IPLogin:    BruteForcePolicy{Type: "ip_login", MaxRetry: 10, TTL: time.Hour},
			IPRegister: BruteForcePolicy{Type: "ip_register", MaxRetry: 20, TTL: time.Hour},
			IPPasskey:  BruteForcePolicy{Type: "ip_passkey", MaxRetry: 10, TTL: time.Hour},
			CodeGuess:  BruteForcePolicy{Type: "code_token", MaxRetry: 10, TTL: 24 * time.Hour},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Token.GuardSecret = cloneBytes(cfg.Token.GuardSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ledgerTTL resolves the zero default.
func (c *Config) ledgerTTL() time.Duration {
	if c.Ledger.TTL == 0 {
		return c.Token.TTL
	}
	return c.Ledger.TTL
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. It never inspects key bytes beyond
// presence; parsing happens in Build.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.NotBefore < 0 || c.Token.NotBefore >= c.Token.TTL {
		return errors.New("Token NotBefore must be >= 0 and < TTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}
	if strings.TrimSpace(c.Token.Issuer) == "" {
		return errors.New("Token Issuer must not be empty")
	}
	if strings.TrimSpace(c.Token.Audience) == "" {
		return errors.New("Token Audience must not be empty")
	}
	switch c.Token.SigningMethod {
	case "es256", "ed25519":
	default:
		return errors.New("unsupported Token signing method")
	}
	if len(c.Token.PrivateKey) == 0 && len(c.Token.PublicKey) == 0 {
		return errors.New("Token requires PrivateKey or PublicKey")
	}
	if len(c.Token.GuardSecret) < minGuardSecretSize {
		return errors.New("Token GuardSecret must be >= 32 bytes")
	}

	// Ledger
	if c.Ledger.TTL < 0 {
		return errors.New("Ledger TTL must be >= 0")
	}
	if c.Ledger.TTL > 0 && c.Ledger.TTL < c.Token.TTL {
		return errors.New("Ledger TTL must be >= Token TTL")
	}
	if strings.ContainsAny(c.Ledger.RedisPrefix, " ") {
		return errors.New("Ledger RedisPrefix must not contain spaces")
	}

	// Sessions
	for name, flow := range map[string]CodeFlowConfig{
		"Login":       c.Sessions.Login,
		"Register":    c.Sessions.Register,
		"EmailChange": c.Sessions.EmailChange,
	} {
		if flow.CodeLength < internal.MinCodeDigits || flow.CodeLength > internal.MaxCodeDigits {
			return errors.New("Sessions " + name + " CodeLength must be between 4 and 12")
		}
		if flow.TTL <= 0 {
			return errors.New("Sessions " + name + " TTL must be > 0")
		}
	}
	if c.Sessions.PasskeyTTL <= 0 {
		return errors.New("Sessions PasskeyTTL must be > 0")
	}

	// Brute force
	if c.BruteForce.Enabled {
		for _, p := range []BruteForcePolicy{
			c.BruteForce.IPLogin,
			c.BruteForce.IPRegister,
			c.BruteForce.IPPasskey,
			c.BruteForce.CodeGuess,
		} {
			if err := p.validate(); err != nil {
				return err
			}
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func (p BruteForcePolicy) validate() error {
	if p.Type == "" || strings.Contains(p.Type, ":") {
		return errors.New("BruteForce policy Type must be non-empty and must not contain ':'")
	}
	if p.MaxRetry < 0 {
		return errors.New("BruteForce policy MaxRetry must be >= 0")
	}
	if p.TTL <= 0 {
		return errors.New("BruteForce policy TTL must be > 0")
	}
	return nil
}
