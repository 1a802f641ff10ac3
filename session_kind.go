package saraAuth

import (
	"fmt"
	"time"
)

// SessionKind names the purpose of an ephemeral session. The set is closed;
// kinds of different value never see each other's sessions.
type SessionKind uint8

const (
	sessionKindUnknown SessionKind = iota
	SessionCreateUser
	SessionCreateToken
	SessionUpdateEmail
	SessionCreatePasskey
	SessionLoginPasskey
)

var sessionKindNames = [...]string{
	SessionCreateUser:    "create_user",
	SessionCreateToken:   "create_token",
	SessionUpdateEmail:   "update_email",
	SessionCreatePasskey: "create_passkey",
	SessionLoginPasskey:  "login_passkey",
}

func (k SessionKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("SessionKind(%d)", uint8(k))
	}
	return sessionKindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k SessionKind) Valid() bool {
	return k > sessionKindUnknown && int(k) < len(sessionKindNames)
}

// passkey reports whether sessions of this kind live in the passkey store.
func (k SessionKind) passkey() bool {
	return k == SessionCreatePasskey || k == SessionLoginPasskey
}

// ParseSessionKind maps a wire name back to its kind.
func ParseSessionKind(s string) (SessionKind, error) {
	for k := SessionCreateUser; int(k) < len(sessionKindNames); k++ {
		if sessionKindNames[k] == s {
			return k, nil
		}
	}
	return sessionKindUnknown, fmt.Errorf("%w: %q", ErrSessionKindInvalid, s)
}

func (k SessionKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, ErrSessionKindInvalid
	}
	return []byte(k.String()), nil
}

func (k *SessionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SessionMetadata is the payload of a code session.
type SessionMetadata map[string]string

// PasskeyMetadata is the payload of a passkey session.
type PasskeyMetadata struct {
	UserID    string `json:"user_id"`
	Challenge string `json:"challenge"`
}

// SessionHandle names one stored session. It is returned by the create and
// get calls and is only useful for [Engine.ConsumeSession].
type SessionHandle struct {
	kind SessionKind
	key  string
}

// Kind returns the kind of the session the handle names.
func (h SessionHandle) Kind() SessionKind {
	return h.kind
}

// IsZero reports whether h names nothing.
func (h SessionHandle) IsZero() bool {
	return h.key == ""
}

// CodeSession is a created code session. Code must only travel out of band.
type CodeSession struct {
	Kind      SessionKind
	SessionID string
	Code      string
	ExpiresAt time.Time
	Handle    SessionHandle
}

// PasskeySession is a created passkey session.
type PasskeySession struct {
	Kind      SessionKind
	SessionID string
	ExpiresAt time.Time
	Handle    SessionHandle
}
