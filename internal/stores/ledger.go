package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ledgerRecordVersionV1 = 1
)

var (
	ErrLedgerNotFound         = errors.New("ledger record not found")
	ErrLedgerRedisUnavailable = errors.New("ledger redis unavailable")
)

// LedgerRecord is one issued-token row. Times are unix seconds.
type LedgerRecord struct {
	ID        string
	SubjectID string
	CreatedAt int64
	ExpiresAt int64
}

// Ledger is the Redis revocation ledger. Rows expire with the key TTL.
type Ledger struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewLedger(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *Ledger {
	if prefix == "" {
		prefix = "ledger"
	}
	return &Ledger{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock replaces the clock used for row timestamps and expiry checks.
func (l *Ledger) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// TTL is the lifetime given to new rows.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

func (l *Ledger) key(id string) string {
	return l.prefix + ":" + id
}

// Create inserts a new row for subjectID under a fresh UUIDv7.
func (l *Ledger) Create(ctx context.Context, subjectID string) (LedgerRecord, error) {
	if subjectID == "" {
		return LedgerRecord{}, errors.New("ledger subject id must not be empty")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return LedgerRecord{}, err
	}

	now := l.now()
	record := LedgerRecord{
		ID:        id.String(),
		SubjectID: subjectID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(l.ttl).Unix(),
	}
	encoded, err := encodeLedgerRecord(&record)
	if err != nil {
		return LedgerRecord{}, err
	}

	if err := l.redis.Set(ctx, l.key(record.ID), encoded, l.ttl).Err(); err != nil {
		return LedgerRecord{}, fmt.Errorf("%w: %v", ErrLedgerRedisUnavailable, err)
	}
	return record, nil
}

// Lookup returns the row for id, or ErrLedgerNotFound when it was never
// created, has expired, or was revoked.
func (l *Ledger) Lookup(ctx context.Context, id string) (LedgerRecord, error) {
	if id == "" {
		return LedgerRecord{}, ErrLedgerNotFound
	}
	data, err := l.redis.Get(ctx, l.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return LedgerRecord{}, ErrLedgerNotFound
		}
		return LedgerRecord{}, fmt.Errorf("%w: %v", ErrLedgerRedisUnavailable, err)
	}

	record, err := decodeLedgerRecord(data)
	if err != nil {
		return LedgerRecord{}, ErrLedgerNotFound
	}
	if record.ExpiresAt <= l.now().Unix() {
		return LedgerRecord{}, ErrLedgerNotFound
	}
	record.ID = id
	return record, nil
}

// Delete removes one row. Deleting an absent row is not an error.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	if err := l.redis.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerRedisUnavailable, err)
	}
	return nil
}

func encodeLedgerRecord(record *LedgerRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(ledgerRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if len(record.SubjectID) > 65535 {
		return nil, errors.New("ledger subject id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.SubjectID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.SubjectID)

	return buf.Bytes(), nil
}

func decodeLedgerRecord(data []byte) (LedgerRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return LedgerRecord{}, err
	}
	if version != ledgerRecordVersionV1 {
		return LedgerRecord{}, errors.New("invalid ledger record version")
	}

	var record LedgerRecord
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return LedgerRecord{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return LedgerRecord{}, err
	}

	var subjectLen uint16
	if err := binary.Read(reader, binary.BigEndian, &subjectLen); err != nil {
		return LedgerRecord{}, err
	}
	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return LedgerRecord{}, err
	}
	record.SubjectID = string(subject)

	return record, nil
}
