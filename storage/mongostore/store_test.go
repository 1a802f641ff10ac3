package mongostore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/saraAuth/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a live server: SARA_MONGO_URI=mongodb://localhost:27017
func newTestStore(t *testing.T, clock *storagetest.Clock) *Store {
	t.Helper()
	uri := os.Getenv("SARA_MONGO_URI")
	if uri == "" {
		t.Skip("SARA_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	database := "sara_test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	if len(database) > 60 {
		database = database[:60]
	}
	store := New(client, Config{Database: database, TTL: storagetest.TTL, Now: clock.Now})
	require.NoError(t, store.EnsureIndexes(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database(database).Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return store
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, clock *storagetest.Clock) storagetest.Backend {
		return newTestStore(t, clock)
	})
}

func TestNewPanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() { New(nil, Config{}) })
}
