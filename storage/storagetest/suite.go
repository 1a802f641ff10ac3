// Package storagetest is a conformance suite for durable backends. Each
// backend's tests call Run with a factory returning a fresh store bound to
// the supplied clock.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/saraAuth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Backend is what every storage sub-package provides.
type Backend interface {
	saraAuth.SubjectProvider
	saraAuth.LedgerStore
}

// Clock is a settable time source shared between the suite and a backend.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Unix(1_760_000_000, 0).UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TTL is the ledger lifetime factories must configure.
const TTL = 24 * time.Hour

// Run exercises subject and ledger semantics against backends from factory.
func Run(t *testing.T, factory func(t *testing.T, clock *Clock) Backend) {
	t.Run("SubjectInsertAssignsIDAndRevision", func(t *testing.T) {
		store := factory(t, NewClock())
		ctx := context.Background()

		saved, err := store.SaveSubject(ctx, saraAuth.Subject{Email: "Alice@Example.com", Nickname: "alice", Roles: []string{"member"}})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, uint64(1), saved.Revision)

		byEmail, err := store.FindSubjectByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, saved.ID, byEmail.ID)
		assert.Equal(t, []string{"member"}, byEmail.Roles)
	})

	t.Run("SubjectSaveBumpsRevision", func(t *testing.T) {
		store := factory(t, NewClock())
		ctx := context.Background()

		saved, err := store.SaveSubject(ctx, saraAuth.Subject{Email: "bob@example.com"})
		require.NoError(t, err)
		saved.Nickname = "bobby"
		saved.Passkeys = []saraAuth.PasskeyCredential{{ID: "cred-1", Label: "laptop"}}

		again, err := store.SaveSubject(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, saved.Revision+1, again.Revision)

		loaded, err := store.FindSubjectByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "bobby", loaded.Nickname)
		assert.Equal(t, again.Revision, loaded.Revision)
		require.Len(t, loaded.Passkeys, 1)
		assert.Equal(t, "laptop", loaded.Passkeys[0].Label)
	})

	t.Run("SubjectMisses", func(t *testing.T) {
		store := factory(t, NewClock())
		ctx := context.Background()

		_, err := store.FindSubjectByID(ctx, "missing")
		assert.ErrorIs(t, err, saraAuth.ErrSubjectNotFound)
		_, err = store.FindSubjectByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, saraAuth.ErrSubjectNotFound)
		_, err = store.SaveSubject(ctx, saraAuth.Subject{ID: "missing", Email: "m@example.com"})
		assert.ErrorIs(t, err, saraAuth.ErrSubjectNotFound)
	})

	t.Run("SubjectDuplicateEmail", func(t *testing.T) {
		store := factory(t, NewClock())
		ctx := context.Background()

		_, err := store.SaveSubject(ctx, saraAuth.Subject{Email: "dup@example.com"})
		require.NoError(t, err)
		_, err = store.SaveSubject(ctx, saraAuth.Subject{Email: "dup@example.com"})
		assert.ErrorIs(t, err, saraAuth.ErrSubjectExists)
	})

	t.Run("LedgerCreateLookupDelete", func(t *testing.T) {
		clock := NewClock()
		store := factory(t, clock)
		ctx := context.Background()

		entry, err := store.Create(ctx, "subject-1")
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.True(t, clock.Now().Add(TTL).Equal(entry.ExpiresAt), "expires at %v", entry.ExpiresAt)

		found, err := store.Lookup(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "subject-1", found.SubjectID)

		require.NoError(t, store.Delete(ctx, entry.ID))
		require.NoError(t, store.Delete(ctx, entry.ID))
		_, err = store.Lookup(ctx, entry.ID)
		assert.ErrorIs(t, err, saraAuth.ErrLedgerEntryNotFound)
	})

	t.Run("LedgerRowsExpire", func(t *testing.T) {
		clock := NewClock()
		store := factory(t, clock)
		ctx := context.Background()

		entry, err := store.Create(ctx, "subject-1")
		require.NoError(t, err)

		clock.Advance(TTL - time.Second)
		_, err = store.Lookup(ctx, entry.ID)
		require.NoError(t, err)

		clock.Advance(time.Second)
		_, err = store.Lookup(ctx, entry.ID)
		assert.ErrorIs(t, err, saraAuth.ErrLedgerEntryNotFound)
	})

	t.Run("LedgerRequiresSubject", func(t *testing.T) {
		store := factory(t, NewClock())
		_, err := store.Create(context.Background(), "")
		assert.ErrorIs(t, err, saraAuth.ErrSubjectInvalid)
	})

	t.Run("LedgerIDsAreUnique", func(t *testing.T) {
		store := factory(t, NewClock())
		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			entry, err := store.Create(context.Background(), "subject-1")
			require.NoError(t, err)
			require.False(t, seen[entry.ID], "duplicate ledger id %s", entry.ID)
			seen[entry.ID] = true
		}
	})
}
