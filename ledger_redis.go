package saraAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/saraAuth/internal/stores"
)

// redisLedger adapts the internal Redis ledger to [LedgerStore].
type redisLedger struct {
	ledger *stores.Ledger
}

func newRedisLedger(ledger *stores.Ledger) *redisLedger {
	return &redisLedger{ledger: ledger}
}

func (l *redisLedger) Create(ctx context.Context, subjectID string) (LedgerEntry, error) {
	if subjectID == "" {
		return LedgerEntry{}, ErrSubjectInvalid
	}
	record, err := l.ledger.Create(ctx, subjectID)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return ledgerEntryFromRecord(record), nil
}

func (l *redisLedger) Lookup(ctx context.Context, id string) (LedgerEntry, error) {
	record, err := l.ledger.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrLedgerNotFound) {
			return LedgerEntry{}, ErrLedgerEntryNotFound
		}
		return LedgerEntry{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return ledgerEntryFromRecord(record), nil
}

func (l *redisLedger) Delete(ctx context.Context, id string) error {
	if err := l.ledger.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

func ledgerEntryFromRecord(record stores.LedgerRecord) LedgerEntry {
	return LedgerEntry{
		ID:        record.ID,
		SubjectID: record.SubjectID,
		CreatedAt: time.Unix(record.CreatedAt, 0).UTC(),
		ExpiresAt: time.Unix(record.ExpiresAt, 0).UTC(),
	}
}
