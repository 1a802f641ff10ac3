package stores

import (
	"context"
	"time"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/redis/go-redis/v9"
)

// PasskeySessionStore holds WebAuthn ceremony state keyed by (kind, session id).
type PasskeySessionStore struct {
	ephemeral
	prefix string
}

func NewPasskeySessionStore(redisClient redis.UniversalClient, prefix string) *PasskeySessionStore {
	if prefix == "" {
		prefix = "passkey"
	}
	return &PasskeySessionStore{
		ephemeral: ephemeral{redis: redisClient},
		prefix:    prefix,
	}
}

func (s *PasskeySessionStore) key(kind, sessionID string) string {
	return s.prefix + ":" + kind + ":" + sessionID
}

// CreateOne stores payload under a new session id and returns the id and key.
func (s *PasskeySessionStore) CreateOne(ctx context.Context, kind string, payload []byte, ttl time.Duration) (string, string, error) {
	if !validKind(kind) {
		return "", "", ErrSessionInvalid
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", "", err
	}
	sessionID := sid.String()
	key := s.key(kind, sessionID)
	if err := s.save(ctx, key, payload, ttl); err != nil {
		return "", "", err
	}
	return sessionID, key, nil
}

func (s *PasskeySessionStore) GetOne(ctx context.Context, kind, sessionID string) ([]byte, string, error) {
	key, ok := s.lookupKey(kind, sessionID)
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	payload, err := s.get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return payload, key, nil
}

func (s *PasskeySessionStore) TakeOne(ctx context.Context, kind, sessionID string) ([]byte, error) {
	key, ok := s.lookupKey(kind, sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.take(ctx, key)
}

func (s *PasskeySessionStore) DeleteOne(ctx context.Context, kind, sessionID string) (bool, error) {
	key, ok := s.lookupKey(kind, sessionID)
	if !ok {
		return false, nil
	}
	return s.remove(ctx, key)
}

func (s *PasskeySessionStore) DeleteKey(ctx context.Context, key string) (bool, error) {
	return s.remove(ctx, key)
}

func (s *PasskeySessionStore) lookupKey(kind, sessionID string) (string, bool) {
	if !validKind(kind) {
		return "", false
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return "", false
	}
	return s.key(kind, sessionID), true
}
