// Package mongostore keeps subjects and ledger rows in MongoDB. Ledger
// documents carry their expiry in a date field covered by a TTL index, so
// the server reaps them; Lookup still checks the expiry itself because the
// reaper runs about once a minute.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/saraAuth"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDatabase           = "sara"
	DefaultSubjectsCollection = "subjects"
	DefaultTokensCollection   = "tokens"
)

// Config names the database objects. Zero fields take the defaults.
type Config struct {
	Database           string
	SubjectsCollection string
	TokensCollection   string
	TTL                time.Duration
	Now                func() time.Time
}

type subjectDoc struct {
	ID        string                       `bson:"_id"`
	Email     string                       `bson:"lemail"`
	Nickname  string                       `bson:"nickname,omitempty"`
	Roles     []string                     `bson:"roles,omitempty"`
	Passkeys  []saraAuth.PasskeyCredential `bson:"passkeys,omitempty"`
	Revision  uint64                       `bson:"rev"`
	CreatedAt time.Time                    `bson:"c"`
	UpdatedAt time.Time                    `bson:"u"`
}

type tokenDoc struct {
	ID        string    `bson:"_id"`
	SubjectID string    `bson:"sub"`
	CreatedAt time.Time `bson:"c"`
	ExpiresAt time.Time `bson:"exp"`
}

// Store implements saraAuth.SubjectProvider and saraAuth.LedgerStore.
type Store struct {
	subjects *mongo.Collection
	tokens   *mongo.Collection
	ttl      time.Duration
	now      func() time.Time
}

var (
	_ saraAuth.SubjectProvider = (*Store)(nil)
	_ saraAuth.LedgerStore     = (*Store)(nil)
)

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	return client, nil
}

// New panics if client is nil.
func New(client *mongo.Client, cfg Config) *Store {
	if client == nil {
		panic("mongo client must be provided")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.SubjectsCollection == "" {
		cfg.SubjectsCollection = DefaultSubjectsCollection
	}
	if cfg.TokensCollection == "" {
		cfg.TokensCollection = DefaultTokensCollection
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	db := client.Database(cfg.Database)
	return &Store{
		subjects: db.Collection(cfg.SubjectsCollection),
		tokens:   db.Collection(cfg.TokensCollection),
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
}

// EnsureIndexes creates the unique email index and the ledger TTL index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.subjects.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "lemail", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongostore: subject index: %w", err)
	}
	_, err = s.tokens.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "exp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "sub", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: token indexes: %w", err)
	}
	return nil
}

func (s *Store) FindSubjectByID(ctx context.Context, id string) (saraAuth.Subject, error) {
	return s.findSubject(ctx, bson.M{"_id": id})
}

func (s *Store) FindSubjectByEmail(ctx context.Context, email string) (saraAuth.Subject, error) {
	return s.findSubject(ctx, bson.M{"lemail": strings.ToLower(email)})
}

func (s *Store) findSubject(ctx context.Context, filter bson.M) (saraAuth.Subject, error) {
	var doc subjectDoc
	if err := s.subjects.FindOne(ctx, filter).Decode(&doc); err != nil {
		return saraAuth.Subject{}, subjectError(err)
	}
	return doc.subject(), nil
}

// SaveSubject increments rev with $inc, so concurrent saves never reuse a
// revision.
func (s *Store) SaveSubject(ctx context.Context, subject saraAuth.Subject) (saraAuth.Subject, error) {
	now := s.now().UTC()
	updatedAt := subject.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	if subject.ID == "" {
		createdAt := subject.CreatedAt
		if createdAt.IsZero() {
			createdAt = updatedAt
		}
		doc := subjectDoc{
			ID:        uuid.NewString(),
			Email:     strings.ToLower(subject.Email),
			Nickname:  subject.Nickname,
			Roles:     subject.Roles,
			Passkeys:  subject.Passkeys,
			Revision:  1,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		}
		if _, err := s.subjects.InsertOne(ctx, doc); err != nil {
			return saraAuth.Subject{}, subjectError(err)
		}
		return doc.subject(), nil
	}

	update := bson.M{
		"$set": bson.M{
			"lemail":   strings.ToLower(subject.Email),
			"nickname": subject.Nickname,
			"roles":    subject.Roles,
			"passkeys": subject.Passkeys,
			"u":        updatedAt,
		},
		"$inc": bson.M{"rev": 1},
	}
	var doc subjectDoc
	err := s.subjects.FindOneAndUpdate(ctx, bson.M{"_id": subject.ID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return saraAuth.Subject{}, subjectError(err)
	}
	return doc.subject(), nil
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
	doc := tokenDoc{ID: id.String(), SubjectID: subjectID, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	if _, err := s.tokens.InsertOne(ctx, doc); err != nil {
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return doc.entry(), nil
}

func (s *Store) Lookup(ctx context.Context, id string) (saraAuth.LedgerEntry, error) {
	var doc tokenDoc
	err := s.tokens.FindOne(ctx, bson.M{"_id": id, "exp": bson.M{"$gt": s.now().UTC()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return saraAuth.LedgerEntry{}, saraAuth.ErrLedgerEntryNotFound
		}
		return saraAuth.LedgerEntry{}, fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return doc.entry(), nil
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.tokens.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("%w: %v", saraAuth.ErrLedgerUnavailable, err)
	}
	return nil
}

func subjectError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return saraAuth.ErrSubjectNotFound
	case mongo.IsDuplicateKeyError(err):
		return saraAuth.ErrSubjectExists
	default:
		return fmt.Errorf("%w: %v", saraAuth.ErrSubjectStoreUnavailable, err)
	}
}

func (d subjectDoc) subject() saraAuth.Subject {
	return saraAuth.Subject{
		ID:        d.ID,
		Email:     d.Email,
		Nickname:  d.Nickname,
		Roles:     d.Roles,
		Passkeys:  d.Passkeys,
		Revision:  d.Revision,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func (d tokenDoc) entry() saraAuth.LedgerEntry {
	return saraAuth.LedgerEntry{
		ID:        d.ID,
		SubjectID: d.SubjectID,
		CreatedAt: d.CreatedAt.UTC(),
		ExpiresAt: d.ExpiresAt.UTC(),
	}
}
