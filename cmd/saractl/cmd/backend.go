package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MrEthical07/saraAuth"
	"github.com/MrEthical07/saraAuth/storage/boltstore"
	"github.com/MrEthical07/saraAuth/storage/gormstore"
	"github.com/MrEthical07/saraAuth/storage/mongostore"
	"github.com/redis/go-redis/v9"
)

// backend is a subject store that is also a ledger.
type backend interface {
	saraAuth.SubjectProvider
	saraAuth.LedgerStore
}

// runtime bundles an engine with the stores it was built from.
type runtime struct {
	engine   *saraAuth.Engine
	subjects saraAuth.SubjectProvider
	closers  []func() error
}

func (r *runtime) Close() {
	if r.engine != nil {
		r.engine.Close()
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

func openBackend(ctx context.Context, fc saraAuth.FileConfig) (backend, func() error, error) {
	ttl := fc.Token.TTL
	switch fc.Storage.Backend {
	case "postgres", "sqlite":
		db, err := gormstore.Open(fc.Storage.Backend, fc.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := gormstore.New(db, ttl, nil)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		closeFn := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return store, closeFn, nil
	case "mongo":
		client, err := mongostore.Connect(ctx, fc.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.New(client, mongostore.Config{Database: fc.Storage.Database, TTL: ttl})
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return store, func() error { return client.Disconnect(context.Background()) }, nil
	case "bolt":
		store, err := boltstore.Open(fc.Storage.DSN, ttl, nil)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", fc.Storage.Backend)
	}
}

// openRuntime loads the config at path and builds an engine over the
// configured Redis and storage backend. Logs go to stderr at warn level
// unless verbose.
func openRuntime(ctx context.Context, path string, verbose bool) (*runtime, error) {
	fc, err := saraAuth.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fc.Redis.Addr,
		Password: fc.Redis.Password,
		DB:       fc.Redis.DB,
	})
	rt.closers = append(rt.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rt.Close()
		return nil, fmt.Errorf("redis %s: %w", fc.Redis.Addr, err)
	}

	store, closeStore, err := openBackend(ctx, fc)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)
	rt.subjects = store

	builder := saraAuth.New().
		WithConfig(fc.Config).
		WithRedis(rdb).
		WithSubjectProvider(store).
		WithLogger(newLogger(os.Stderr, verbose))
	switch fc.Storage.Ledger {
	case "redis":
	case "", "backend":
		builder = builder.WithLedger(store, fc.Storage.Backend)
	default:
		rt.Close()
		return nil, fmt.Errorf("unknown ledger location %q", fc.Storage.Ledger)
	}

	engine, err := builder.Build()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	rt.engine = engine
	return rt, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
