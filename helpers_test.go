package saraAuth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/saraAuth/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testEpoch = time.Unix(1_760_000_000, 0).UTC()

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockSubjectProvider struct {
	mu       sync.Mutex
	subjects map[string]Subject
	nextID   int
	fail     error
}

func newMockSubjectProvider() *mockSubjectProvider {
	return &mockSubjectProvider{subjects: map[string]Subject{}}
}

func (p *mockSubjectProvider) FindSubjectByID(_ context.Context, id string) (Subject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return Subject{}, p.fail
	}
	s, ok := p.subjects[id]
	if !ok {
		return Subject{}, ErrSubjectNotFound
	}
	return s, nil
}

func (p *mockSubjectProvider) FindSubjectByEmail(_ context.Context, email string) (Subject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return Subject{}, p.fail
	}
	for _, s := range p.subjects {
		if strings.EqualFold(s.Email, email) {
			return s, nil
		}
	}
	return Subject{}, ErrSubjectNotFound
}

func (p *mockSubjectProvider) SaveSubject(_ context.Context, s Subject) (Subject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return Subject{}, p.fail
	}
	if s.ID == "" {
		p.nextID++
		s.ID = fmt.Sprintf("subject-%d", p.nextID)
	} else if prior, ok := p.subjects[s.ID]; ok {
		s.Revision = prior.Revision
	}
	s.Revision++
	p.subjects[s.ID] = s
	return s, nil
}

func (p *mockSubjectProvider) add(t *testing.T, email, nickname string) Subject {
	t.Helper()
	s, err := p.SaveSubject(context.Background(), Subject{Email: email, Nickname: nickname, Roles: []string{"member"}})
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	return s
}

// outbox records delivered codes.
type outbox struct {
	mu   sync.Mutex
	sent []CodeMessage
	fail error
}

func (o *outbox) SendCode(_ context.Context, msg CodeMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last(t *testing.T) CodeMessage {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatalf("no code was sent")
	}
	return o.sent[len(o.sent)-1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type testEnv struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	subjects *mockSubjectProvider
	outbox   *outbox
	clock    *testClock
	audit    *ChannelSink
}

func testConfig(t testing.TB) Config {
	t.Helper()
	priv, pub, err := jwt.GenerateKeyPair(jwt.MethodES256)
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	cfg := defaultConfig()
	cfg.Token.Audience = "https://sara.test"
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Token.GuardSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t testing.TB, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(&cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		mr:       mr,
		rdb:      rdb,
		subjects: newMockSubjectProvider(),
		outbox:   &outbox{},
		clock:    newTestClock(),
		audit:    NewChannelSink(256),
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithSubjectProvider(env.subjects).
		WithCodeSender(env.outbox).
		WithAuditSink(env.audit).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	challenge, err := env.engine.RequestToken(ctx, email)
	if err != nil {
		t.Fatalf("RequestToken failed: %v", err)
	}
	token, err := env.engine.ConfirmToken(ctx, challenge.SessionID, env.outbox.last(t).Code)
	if err != nil {
		t.Fatalf("ConfirmToken failed: %v", err)
	}
	return token
}

func (env *testEnv) auditEvents() []AuditEvent {
	var events []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}
