package stores

import (
	"context"
	"time"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/redis/go-redis/v9"
)

// CodeSession is a freshly created code session. Code is only ever handed
// to the delivery channel.
type CodeSession struct {
	SessionID string
	Code      string
	Key       string
}

// CodeSessionStore keys each record by (kind, session id, code), so a wrong
// code is indistinguishable from a missing or expired session.
type CodeSessionStore struct {
	ephemeral
	prefix string
}

func NewCodeSessionStore(redisClient redis.UniversalClient, prefix string) *CodeSessionStore {
	if prefix == "" {
		prefix = "code"
	}
	return &CodeSessionStore{
		ephemeral: ephemeral{redis: redisClient},
		prefix:    prefix,
	}
}

func (s *CodeSessionStore) key(kind, sessionID, code string) string {
	return s.prefix + ":" + kind + ":" + sessionID + "@" + code
}

// CreateOne stores payload under a new session id and a uniformly drawn code.
func (s *CodeSessionStore) CreateOne(ctx context.Context, kind string, payload []byte, digits int, ttl time.Duration) (CodeSession, error) {
	if !validKind(kind) {
		return CodeSession{}, ErrSessionInvalid
	}
	code, err := internal.NewCode(digits)
	if err != nil {
		return CodeSession{}, err
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return CodeSession{}, err
	}

	sessionID := sid.String()
	key := s.key(kind, sessionID, code)
	if err := s.save(ctx, key, payload, ttl); err != nil {
		return CodeSession{}, err
	}

	return CodeSession{
		SessionID: sessionID,
		Code:      code,
		Key:       key,
	}, nil
}

// GetOne returns the payload and its record key without consuming it.
func (s *CodeSessionStore) GetOne(ctx context.Context, kind, sessionID, code string) ([]byte, string, error) {
	key, ok := s.lookupKey(kind, sessionID, code)
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	payload, err := s.get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return payload, key, nil
}

// TakeOne returns the payload and deletes the record in one step. Of two
// concurrent calls with the same code at most one succeeds.
func (s *CodeSessionStore) TakeOne(ctx context.Context, kind, sessionID, code string) ([]byte, error) {
	key, ok := s.lookupKey(kind, sessionID, code)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.take(ctx, key)
}

// DeleteOne is idempotent. It reports whether a record was removed.
func (s *CodeSessionStore) DeleteOne(ctx context.Context, kind, sessionID, code string) (bool, error) {
	key, ok := s.lookupKey(kind, sessionID, code)
	if !ok {
		return false, nil
	}
	return s.remove(ctx, key)
}

// DeleteKey removes the record named by a key previously returned from
// CreateOne or GetOne.
func (s *CodeSessionStore) DeleteKey(ctx context.Context, key string) (bool, error) {
	return s.remove(ctx, key)
}

func (s *CodeSessionStore) lookupKey(kind, sessionID, code string) (string, bool) {
	if !validKind(kind) {
		return "", false
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return "", false
	}
	if len(code) < internal.MinCodeDigits || len(code) > internal.MaxCodeDigits || !internal.IsCode(code, len(code)) {
		return "", false
	}
	return s.key(kind, sessionID, code), true
}
