package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionRecordVersionV1 = 1
)

var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionInvalid          = errors.New("invalid session parameters")
	ErrSessionRedisUnavailable = errors.New("session redis unavailable")
)

// takeSessionLua atomically performs GET→DEL on a session record.
// KEYS[1] = record key
//
// Returns the record bytes, or nil when the key is absent.
var takeSessionLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return false
end
redis.call('DEL', KEYS[1])
return data
`)

// ephemeral is the shared TTL-bound record core behind the code and passkey
// stores. Records are a version byte followed by an opaque payload.
type ephemeral struct {
	redis redis.UniversalClient
}

func (s *ephemeral) save(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be > 0", ErrSessionInvalid)
	}
	if err := s.redis.Set(ctx, key, encodeSessionRecord(payload), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return nil
}

func (s *ephemeral) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return s.decodeOrDrop(ctx, key, data)
}

func (s *ephemeral) take(ctx context.Context, key string) ([]byte, error) {
	result, err := takeSessionLua.Run(ctx, s.redis, []string{key}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrSessionRedisUnavailable)
	}
	payload, decErr := decodeSessionRecord([]byte(data))
	if decErr != nil {
		return nil, ErrSessionNotFound
	}
	return payload, nil
}

// remove reports whether a record existed. Removing an absent key is not an error.
func (s *ephemeral) remove(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return n > 0, nil
}

func (s *ephemeral) decodeOrDrop(ctx context.Context, key string, data []byte) ([]byte, error) {
	payload, err := decodeSessionRecord(data)
	if err != nil {
		// Unknown layout: treat as a miss and reap it.
		_ = s.redis.Del(ctx, key).Err()
		return nil, ErrSessionNotFound
	}
	return payload, nil
}

func encodeSessionRecord(payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, sessionRecordVersionV1)
	return append(buf, payload...)
}

func decodeSessionRecord(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != sessionRecordVersionV1 {
		return nil, errors.New("invalid session record version")
	}
	return data[1:], nil
}

func validKind(kind string) bool {
	return kind != "" && !strings.ContainsAny(kind, ":@")
}
