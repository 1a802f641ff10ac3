// Package gormstore stores subjects and ledger rows in PostgreSQL or SQLite
// through GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/saraAuth"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements saraAuth.SubjectProvider and saraAuth.LedgerStore.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

var (
	_ saraAuth.SubjectProvider = (*Store)(nil)
	_ saraAuth.LedgerStore     = (*Store)(nil)
)

// Open connects to dialect ("postgres" or "sqlite") at dsn. Duplicate-key
// errors are translated so SaveSubject can report saraAuth.ErrSubjectExists.
func Open(dialect, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("gormstore: unsupported dialect %q", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open %s: %w", dialect, err)
	}
	return db, nil
}

// New wraps db. ttl is the ledger row lifetime and should equal the token
// TTL. now defaults to time.Now.
func New(db *gorm.DB, ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, ttl: ttl, now: now}
}

// Migrate creates or updates the sara_subjects and sara_tokens tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&subjectRow{}, &tokenRow{})
}

func (s *Store) FindSubjectByID(ctx context.Context, id string) (saraAuth.Subject, error) {
	var row subjectRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return saraAuth.Subject{}, subjectError(err)
	}
	return row.subject(), nil
}

func (s *Store) FindSubjectByEmail(ctx context.Context, email string) (saraAuth.Subject, error) {
	var row subjectRow
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&row).Error
	if err != nil {
		return saraAuth.Subject{}, subjectError(err)
	}
	return row.subject(), nil
}

// SaveSubject inserts subjects without an ID at revision 1. Existing rows
// are overwritten and their revision incremented inside one transaction.
func (s *Store) SaveSubject(ctx context.Context, subject saraAuth.Subject) (saraAuth.Subject, error) {
	row := subjectRow{
		ID:        subject.ID,
		Email:     strings.ToLower(subject.Email),
		Nickname:  subject.Nickname,
		Roles:     subject.Roles,
		Passkeys:  subject.Passkeys,
		CreatedAt: subject.CreatedAt,
		UpdatedAt: subject.UpdatedAt,
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = s.now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ID == "" {
			row.ID = uuid.NewString()
			row.Revision = 1
			if row.CreatedAt.IsZero() {
				row.CreatedAt = row.UpdatedAt
			}
			return tx.Create(&row).Error
		}

		res := tx.Model(&subjectRow{}).
			Where("id = ?", row.ID).
			Select("email", "nickname", "roles", "passkeys", "updated_at").
			Updates(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&subjectRow{}).
			Where("id = ?", row.ID).
			UpdateColumn("revision", gorm.Expr("revision + 1")).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", row.ID).First(&row).Error
	})
	if err != nil {
		return saraAuth.Subject{}, subjectError(err)
	}
	return row.subject(), nil
}

func (s *Store) Create(ctx context.Context, subjectID string) (saraAuth.LedgerEntry, error) {
	if subjectID == "" {
		return saraAuth.LedgerEntry{}, saraAuth.ErrSubjectInvalid
	}
	id, err := uuid.NewV7()
	if err != nil {
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	now := s.now().UTC().Truncate(time.Second)
	row := tokenRow{
		ID:        id.String(),
		SubjectID: subjectID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return row.entry(), nil
}

// Lookup ignores rows past their expiry even before PurgeExpired runs.
func (s *Store) Lookup(ctx context.Context, id string) (saraAuth.LedgerEntry, error) {
	var row tokenRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, s.now().UTC()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return saraAuth.LedgerEntry{}, saraAuth.ErrLedgerEntryNotFound
		}
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return row.entry(), nil
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&tokenRow{}).Error; err != nil {
		return fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return nil
}

// PurgeExpired removes expired ledger rows and reports how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&tokenRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}

func subjectError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return saraAuth.ErrSubjectNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return saraAuth.ErrSubjectExists
	default:
		return fmt.Errorf("%w: %v", saraAuth.ErrSubjectStoreUnavailable, err)
	}
}
