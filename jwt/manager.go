package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the asymmetric algorithm used for bearer tokens.
type SigningMethod string

const (
	// MethodES256 is ECDSA P-256 with SHA-256.
	MethodES256 SigningMethod = "es256"
	// MethodEd25519 is EdDSA over Ed25519.
	MethodEd25519 SigningMethod = "ed25519"
)

// Config holds key material and time policy for a [Manager].
//
// PrivateKey may be empty for verify-only managers. When PublicKey is empty
// it is derived from PrivateKey.
type Config struct {
	TokenTTL      time.Duration
	NotBefore     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	Now           func() time.Time
}

// Manager signs and verifies bearer JWTs with a single-algorithm allow-list.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   crypto.Signer
	verifyKey crypto.PublicKey
	now       func() time.Time
}

// Claims is the payload of a bearer token. Profile is carried under the
// "subject" claim; RegisteredClaims.Subject ("sub") is the subject id.
type Claims struct {
	Profile json.RawMessage `json:"subject"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and parses key material once.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.NotBefore < 0 || cfg.NotBefore >= cfg.TokenTTL {
		return nil, errors.New("invalid not-before configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer must not be empty")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("audience must not be empty")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodES256
	}

	m := &Manager{config: cfg, now: cfg.Now}
	if m.now == nil {
		m.now = time.Now
	}

	switch cfg.SigningMethod {
	case MethodES256:
		m.method = jwt.SigningMethodES256
		if len(cfg.PrivateKey) > 0 {
			key, err := parseECPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = key
			m.verifyKey = &key.PublicKey
		}
		if len(cfg.PublicKey) > 0 {
			key, err := parseECPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			if m.signKey != nil && !key.Equal(m.verifyKey) {
				return nil, errors.New("es256 public key does not match private key")
			}
			m.verifyKey = key
		}
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			key, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = key
			m.verifyKey = key.Public()
		}
		if len(cfg.PublicKey) > 0 {
			key, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			if m.signKey != nil && !key.Equal(m.verifyKey) {
				return nil, errors.New("ed25519 public key does not match private key")
			}
			m.verifyKey = key
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	if m.verifyKey == nil {
		return nil, fmt.Errorf("%s requires a private or public key", cfg.SigningMethod)
	}
	return m, nil
}

// CanSign reports whether the manager holds a private key.
func (m *Manager) CanSign() bool {
	return m.signKey != nil
}

// Algorithm returns the JOSE alg name accepted by Parse.
func (m *Manager) Algorithm() string {
	return m.method.Alg()
}

// Sign issues a token for subjectID with time claims anchored at the
// manager clock: iat=now, nbf=now+NotBefore, exp=now+TokenTTL.
func (m *Manager) Sign(subjectID, tokenID string, profile json.RawMessage) (string, error) {
	return m.SignUntil(subjectID, tokenID, profile, time.Time{})
}

// SignUntil is Sign with exp capped at notAfter. A zero notAfter means no cap.
func (m *Manager) SignUntil(subjectID, tokenID string, profile json.RawMessage, notAfter time.Time) (string, error) {
	if m.signKey == nil {
		return "", errors.New("manager has no signing key")
	}

	now := m.now()
	exp := now.Add(m.config.TokenTTL)
	if !notAfter.IsZero() && notAfter.Before(exp) {
		exp = notAfter
	}
	claims := Claims{
		Profile: profile,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        tokenID,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(m.config.NotBefore)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.signKey)
}

// Parse verifies signature, algorithm, issuer, audience and time claims.
// Errors wrap the golang-jwt sentinels (ErrTokenExpired,
// ErrTokenNotValidYet, ErrTokenMalformed, ErrTokenSignatureInvalid).
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

func parseECPrivateKey(key []byte) (*ecdsa.PrivateKey, error) {
	parsed, err := jwt.ParseECPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid es256 private key")
	}
	if parsed.Curve != elliptic.P256() {
		return nil, errors.New("es256 private key must use P-256")
	}
	return parsed, nil
}

func parseECPublicKey(key []byte) (*ecdsa.PublicKey, error) {
	parsed, err := jwt.ParseECPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid es256 public key")
	}
	if parsed.Curve != elliptic.P256() {
		return nil, errors.New("es256 public key must use P-256")
	}
	return parsed, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
