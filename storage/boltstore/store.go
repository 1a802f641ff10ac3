// Package boltstore keeps subjects and ledger rows in an embedded bbolt
// file. It suits single-node deployments and the bundled CLI.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/saraAuth"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	subjectsBucket = []byte("subjects")
	emailsBucket   = []byte("subject_emails")
	ledgerBucket   = []byte("ledger")
)

// Store implements saraAuth.SubjectProvider and saraAuth.LedgerStore.
type Store struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

var (
	_ saraAuth.SubjectProvider = (*Store)(nil)
	_ saraAuth.LedgerStore     = (*Store)(nil)
)

type ledgerRecord struct {
	SubjectID string `json:"sub"`
	CreatedAt int64  `json:"c"`
	ExpiresAt int64  `json:"exp"`
}

// Open opens or creates the database at path and its buckets.
func Open(path string, ttl time.Duration, now func() time.Time) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db, ttl, now)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. now defaults to time.Now.
func New(db *bbolt.DB, ttl time.Duration, now func() time.Time) (*Store, error) {
	if now == nil {
		now = time.Now
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{subjectsBucket, emailsBucket, ledgerBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db, ttl: ttl, now: now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindSubjectByID(_ context.Context, id string) (saraAuth.Subject, error) {
	var subject saraAuth.Subject
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		subject, err = getSubject(tx, id)
		return err
	})
	return subject, wrapSubject(err)
}

func (s *Store) FindSubjectByEmail(_ context.Context, email string) (saraAuth.Subject, error) {
	var subject saraAuth.Subject
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(emailsBucket).Get([]byte(strings.ToLower(email)))
		if id == nil {
			return saraAuth.ErrSubjectNotFound
		}
		var err error
		subject, err = getSubject(tx, string(id))
		return err
	})
	return subject, wrapSubject(err)
}

// SaveSubject runs in one write transaction, so revisions never collide.
func (s *Store) SaveSubject(_ context.Context, subject saraAuth.Subject) (saraAuth.Subject, error) {
	subject.Email = strings.ToLower(subject.Email)
	if subject.UpdatedAt.IsZero() {
		subject.UpdatedAt = s.now().UTC()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(emailsBucket)
		if owner := emails.Get([]byte(subject.Email)); owner != nil && string(owner) != subject.ID {
			return saraAuth.ErrSubjectExists
		}

		if subject.ID == "" {
			subject.ID = uuid.NewString()
			subject.Revision = 1
			if subject.CreatedAt.IsZero() {
				subject.CreatedAt = subject.UpdatedAt
			}
		} else {
			prior, err := getSubject(tx, subject.ID)
			if err != nil {
				return err
			}
			if prior.Email != subject.Email {
				if err := emails.Delete([]byte(prior.Email)); err != nil {
					return err
				}
			}
			subject.CreatedAt = prior.CreatedAt
			subject.Revision = prior.Revision + 1
		}

		data, err := json.Marshal(subject)
		if err != nil {
			return err
		}
		if err := tx.Bucket(subjectsBucket).Put([]byte(subject.ID), data); err != nil {
			return err
		}
		return emails.Put([]byte(subject.Email), []byte(subject.ID))
	})
	if err != nil {
		return saraAuth.Subject{}, wrapSubject(err)
	}
	return subject, nil
}

func (s *Store) Create(_ context.Context, subjectID string) (saraAuth.LedgerEntry, error) {
	if subjectID == "" {
		return saraAuth.LedgerEntry{}, saraAuth.ErrSubjectInvalid
	}
	id, err := uuid.NewV7()
	if err != nil {
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	now := s.now().Unix()
	record := ledgerRecord{SubjectID: subjectID, CreatedAt: now, ExpiresAt: now + int64(s.ttl/time.Second)}
	data, err := json.Marshal(record)
	if err != nil {
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(ledgerBucket).Put([]byte(id.String()), data)
	})
	if err != nil {
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return record.entry(id.String()), nil
}

func (s *Store) Lookup(_ context.Context, id string) (saraAuth.LedgerEntry, error) {
	var record ledgerRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(ledgerBucket).Get([]byte(id))
		if data == nil {
			return saraAuth.ErrLedgerEntryNotFound
		}
		return json.Unmarshal(data, &record)
	})
	switch {
	case err == saraAuth.ErrLedgerEntryNotFound:
		return saraAuth.LedgerEntry{}, err
	case err != nil:
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	case record.ExpiresAt <= s.now().Unix():
		return saraAuth.LedgerEntry{}, saraAuth.ErrLedgerEntryNotFound
	}
	return record.entry(id), nil
}

// Delete is idempotent.
func (s *Store) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(ledgerBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return nil
}

// PurgeExpired removes expired ledger rows and reports how many went.
func (s *Store) PurgeExpired(_ context.Context) (int, error) {
	now := s.now().Unix()
	purged := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ledgerBucket)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var record ledgerRecord
			if err := json.Unmarshal(v, &record); err != nil || record.ExpiresAt <= now {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return purged, nil
}

func getSubject(tx *bbolt.Tx, id string) (saraAuth.Subject, error) {
	data := tx.Bucket(subjectsBucket).Get([]byte(id))
	if data == nil {
		return saraAuth.Subject{}, saraAuth.ErrSubjectNotFound
	}
	var subject saraAuth.Subject
	if err := json.Unmarshal(data, &subject); err != nil {
		return saraAuth.Subject{}, err
	}
	return subject, nil
}

func wrapSubject(err error) error {
	switch err {
	case nil, saraAuth.ErrSubjectNotFound, saraAuth.ErrSubjectExists:
		return err
	default:
		return fmt.Errorf("%w: %v", saraAuth.ErrSubjectStoreUnavailable, err)
	}
}

func (r ledgerRecord) entry(id string) saraAuth.LedgerEntry {
	return saraAuth.LedgerEntry{
		ID:        id,
		SubjectID: r.SubjectID,
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
		ExpiresAt: time.Unix(r.ExpiresAt, 0).UTC(),
	}
}
