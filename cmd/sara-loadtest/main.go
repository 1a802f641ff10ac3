package main

import (
	"context"
	crand "crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/saraAuth"
	"github.com/MrEthical07/saraAuth/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		subjects    = flag.Int("subjects", 1000, "number of subjects to seed")
		tokens      = flag.Int("tokens", 10000, "number of tokens to issue")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "validate operations to run")
		tampered    = flag.Float64("tampered", 0.01, "fraction of validations that use a corrupted guard tag")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *subjects <= 0 || *tokens <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "subjects, tokens, concurrency and ops must be > 0")
		os.Exit(2)
	}

	if err := run(context.Background(), config{
		subjects:    *subjects,
		tokens:      *tokens,
		concurrency: *concurrency,
		ops:         *ops,
		tampered:    *tampered,
		redisAddr:   *redisAddr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	subjects    int
	tokens      int
	concurrency int
	ops         int
	tampered    float64
	redisAddr   string
}

func run(ctx context.Context, cfg config) error {
	addr := cfg.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	priv, pub, err := jwt.GenerateKeyPair(jwt.MethodES256)
	if err != nil {
		return err
	}
	secret := make([]byte, 32)
	if _, err := crand.Read(secret); err != nil {
		return err
	}

	engineCfg := saraAuth.DefaultConfig()
	engineCfg.Token.Audience = "https://loadtest.sara"
	engineCfg.Token.NotBefore = 0
	engineCfg.Token.Leeway = time.Second
	engineCfg.Token.PrivateKey = priv
	engineCfg.Token.PublicKey = pub
	engineCfg.Token.GuardSecret = secret
	engineCfg.Metrics.Enabled = true
	engineCfg.Metrics.EnableLatencyHistograms = true

	provider := newMemorySubjects()
	engine, err := saraAuth.New().
		WithConfig(engineCfg).
		WithRedis(client).
		WithSubjectProvider(provider).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	seeded := make([]saraAuth.Subject, cfg.subjects)
	for i := range seeded {
		s, err := provider.SaveSubject(ctx, saraAuth.Subject{Email: fmt.Sprintf("load-%d@example.com", i), Roles: []string{"member"}})
		if err != nil {
			return err
		}
		seeded[i] = s
	}

	fmt.Printf("issuing %d tokens...\n", cfg.tokens)
	issued := make([]string, cfg.tokens)
	issueStats, err := runPhase(ctx, cfg.tokens, cfg.concurrency, func(ctx context.Context, i int, _ *rand.Rand) error {
		token, err := engine.IssueToken(ctx, seeded[i%len(seeded)])
		issued[i] = token
		return err
	})
	if err != nil {
		return fmt.Errorf("issue phase: %w", err)
	}

	validateStats, err := runPhase(ctx, cfg.ops, cfg.concurrency, func(ctx context.Context, i int, r *rand.Rand) error {
		token := issued[r.Intn(len(issued))]
		if r.Float64() < cfg.tampered {
			token = flipLastHex(token)
		}
		_, err := engine.ValidateToken(ctx, token)
		return err
	})
	if err != nil {
		return fmt.Errorf("validate phase: %w", err)
	}

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("validate", validateStats)
	snap := engine.MetricsSnapshot()
	fmt.Printf("valid=%d guard_mismatch=%d revoked=%d\n",
		snap.Counters[saraAuth.MetricTokenValid],
		snap.Counters[saraAuth.MetricTokenGuardMismatch],
		snap.Counters[saraAuth.MetricTokenRevoked])
	return nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	rejected int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

// runPhase runs op ops times across concurrency workers. Token rejections
// are counted; any other error aborts the phase.
func runPhase(ctx context.Context, ops, concurrency int, op func(context.Context, int, *rand.Rand) error) (phaseStats, error) {
	var (
		cursor    int64
		rejected  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		seed := time.Now().UnixNano() + int64(w)*7919
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed))
			local := make([]time.Duration, 0, ops/concurrency+1)
			defer func() {
				mu.Lock()
				latencies = append(latencies, local...)
				mu.Unlock()
			}()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops || gctx.Err() != nil {
					return nil
				}
				t0 := time.Now()
				err := op(gctx, i, r)
				local = append(local, time.Since(t0))
				if err == nil {
					continue
				}
				if errors.Is(err, saraAuth.ErrTokenInvalid) {
					atomic.AddInt64(&rejected, 1)
					continue
				}
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), latencies, rejected), nil
}

func computeStats(total time.Duration, samples []time.Duration, rejected int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		rejected: rejected,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d rejected=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.rejected,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// flipLastHex corrupts the final hex digit of the guard tag.
func flipLastHex(token string) string {
	if token == "" {
		return token
	}
	b := []byte(token)
	last := len(b) - 1
	if b[last] == '0' {
		b[last] = '1'
	} else {
		b[last] = '0'
	}
	return string(b)
}

type memorySubjects struct {
	mu   sync.RWMutex
	byID map[string]saraAuth.Subject
	next int
}

func newMemorySubjects() *memorySubjects {
	return &memorySubjects{byID: map[string]saraAuth.Subject{}}
}

func (m *memorySubjects) FindSubjectByID(_ context.Context, id string) (saraAuth.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return saraAuth.Subject{}, saraAuth.ErrSubjectNotFound
	}
	return s, nil
}

func (m *memorySubjects) FindSubjectByEmail(_ context.Context, email string) (saraAuth.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byID {
		if s.Email == email {
			return s, nil
		}
	}
	return saraAuth.Subject{}, saraAuth.ErrSubjectNotFound
}

func (m *memorySubjects) SaveSubject(_ context.Context, s saraAuth.Subject) (saraAuth.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		m.next++
		s.ID = fmt.Sprintf("load-%d", m.next)
	} else if prior, ok := m.byID[s.ID]; ok {
		s.Revision = prior.Revision
	}
	s.Revision++
	m.byID[s.ID] = s
	return s, nil
}
