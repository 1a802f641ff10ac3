package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// SessionID is the raw form of an ephemeral session identifier.
type SessionID [16]byte

const (
	// MinCodeDigits and MaxCodeDigits bound the length of one-time codes.
	MinCodeDigits = 4
	MaxCodeDigits = 12

	challengeSize   = 32
	guardSecretSize = 32
)

var (
	ErrInvalidCodeDigits = errors.New("invalid code digits")
	ErrInvalidSessionID  = errors.New("invalid session id")
)

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID accepts only identifiers produced by NewSessionID.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, ErrInvalidSessionID
	}
	if len(raw) != len(sid) {
		return sid, ErrInvalidSessionID
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewCode draws one integer uniformly from [0, 10^digits) and renders it
// zero-padded to exactly digits characters.
func NewCode(digits int) (string, error) {
	if digits < MinCodeDigits || digits > MaxCodeDigits {
		return "", ErrInvalidCodeDigits
	}
	return newCode(digits)
}

func newCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}

	s := n.String()
	if len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return s, nil
}

// IsCode reports whether s is exactly digits decimal characters.
func IsCode(s string, digits int) bool {
	if len(s) != digits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NewChallenge returns a base64url WebAuthn challenge.
func NewChallenge() (string, error) {
	var raw [challengeSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewGuardSecret returns fresh key material for the bearer guard tag.
func NewGuardSecret() ([]byte, error) {
	secret := make([]byte, guardSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// HashTarget is the fixed-length counter identity for a guarded target.
func HashTarget(target string) string {
	sum := sha256.Sum256([]byte(target))
	return hex.EncodeToString(sum[:])
}
