package flows

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/saraAuth/internal"
	"github.com/MrEthical07/saraAuth/jwt"
)

var (
	errTestLedgerNotFound  = errors.New("ledger not found")
	errTestSubjectNotFound = errors.New("subject not found")
)

type tokenFixture struct {
	now       time.Time
	manager   *jwt.Manager
	secret    []byte
	ledger    map[string]string
	expiry    map[string]time.Time
	revisions map[string]uint64
	nextID    int
	mismatch  int
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	fx := &tokenFixture{
		now:       time.Unix(1_750_000_000, 0),
		secret:    []byte("0123456789abcdef0123456789abcdef"),
		ledger:    map[string]string{},
		expiry:    map[string]time.Time{},
		revisions: map[string]uint64{},
	}
	priv, _, err := jwt.GenerateKeyPair(jwt.MethodES256)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fx.manager, err = jwt.NewManager(jwt.Config{
		TokenTTL:   24 * time.Hour,
		NotBefore:  500 * time.Millisecond,
		PrivateKey: priv,
		Issuer:     "Sara Hoshikawa",
		Audience:   "https://sara.example.org",
		Now:        func() time.Time { return fx.now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return fx
}

func (fx *tokenFixture) bearer() BearerDeps {
	return BearerDeps{
		Parse: fx.manager.Parse,
		GuardTagEqual: func(tag, jti string) (bool, error) {
			return internal.GuardTagEqual(tag, jti, fx.secret), nil
		},
	}
}

func (fx *tokenFixture) guardTag(jti string) (string, error) {
	return internal.GuardTag(jti, fx.secret), nil
}

func (fx *tokenFixture) issueDeps() IssueDeps {
	return IssueDeps{
		CreateLedger: func(_ context.Context, subjectID string) (string, error) {
			fx.nextID++
			id := "row-" + string(rune('a'+fx.nextID))
			fx.ledger[id] = subjectID
			fx.expiry[id] = fx.now.Add(24 * time.Hour)
			return id, nil
		},
		Sign:     fx.manager.Sign,
		GuardTag: fx.guardTag,
	}
}

func (fx *tokenFixture) validateDeps() ValidateDeps {
	return ValidateDeps{
		Bearer: fx.bearer(),
		LookupLedger: func(_ context.Context, id string) (string, error) {
			subject, ok := fx.ledger[id]
			if !ok {
				return "", errTestLedgerNotFound
			}
			return subject, nil
		},
		CurrentRevision: func(_ context.Context, id string) (uint64, error) {
			rev, ok := fx.revisions[id]
			if !ok {
				return 0, errTestSubjectNotFound
			}
			return rev, nil
		},
		LedgerNotFound:  errTestLedgerNotFound,
		SubjectNotFound: errTestSubjectNotFound,
		OnGuardMismatch: func(*jwt.Claims) { fx.mismatch++ },
	}
}

func (fx *tokenFixture) updateDeps(nickname string) UpdateDeps {
	return UpdateDeps{
		Bearer: fx.bearer(),
		LedgerExpiry: func(_ context.Context, id string) (time.Time, error) {
			exp, ok := fx.expiry[id]
			if !ok {
				return time.Time{}, errTestLedgerNotFound
			}
			return exp, nil
		},
		LedgerNotFound: errTestLedgerNotFound,
		MergeProfile: func(prior json.RawMessage) (json.RawMessage, error) {
			var p map[string]any
			if err := json.Unmarshal(prior, &p); err != nil {
				return nil, err
			}
			p["nickname"] = nickname
			return json.Marshal(p)
		},
		Sign:     fx.manager.SignUntil,
		GuardTag: fx.guardTag,
	}
}

func TestRunIssueAndValidate(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 3

	issued := RunIssue(context.Background(), "u1", 3, json.RawMessage(`{"_id":"u1"}`), fx.issueDeps())
	if issued.Failure != TokenFailureNone {
		t.Fatalf("issue failed: %v", issued.Err)
	}
	if len(fx.ledger) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(fx.ledger))
	}

	res := RunValidate(context.Background(), issued.Token, fx.validateDeps())
	if res.Failure != TokenFailureNone {
		t.Fatalf("validate failed: %v (%v)", res.Failure, res.Err)
	}
	if res.RecordID != issued.RecordID || res.Revision != 3 || res.Claims.Subject != "u1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.ExpiresAt.Equal(fx.now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}
}

func TestRunValidateFailureOrder(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 1
	issued := RunIssue(context.Background(), "u1", 1, json.RawMessage(`{}`), fx.issueDeps())
	signed, tag, _ := strings.Cut(issued.Token, "|")

	cases := []struct {
		name  string
		token string
		setup func()
		want  TokenFailureKind
	}{
		{name: "no separator", token: signed, want: TokenFailureMalformed},
		{name: "empty tag", token: signed + "|", want: TokenFailureMalformed},
		{name: "garbage jws", token: "abc|" + tag, want: TokenFailureMalformed},
		{name: "guard flipped", token: signed + "|" + flipHex(tag), want: TokenFailureGuardMismatch},
		{name: "revoked row", token: issued.Token, setup: func() { delete(fx.ledger, issued.RecordID) }, want: TokenFailureRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			res := RunValidate(context.Background(), tc.token, fx.validateDeps())
			if res.Failure != tc.want {
				t.Fatalf("expected %v, got %v (%v)", tc.want, res.Failure, res.Err)
			}
		})
	}
	if fx.mismatch != 1 {
		t.Fatalf("expected one guard mismatch callback, got %d", fx.mismatch)
	}
}

func TestRunValidateRevisionAndSubject(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 1
	issued := RunIssue(context.Background(), "u1", 1, json.RawMessage(`{}`), fx.issueDeps())

	fx.revisions["u1"] = 2
	if res := RunValidate(context.Background(), issued.Token, fx.validateDeps()); res.Failure != TokenFailureRevoked {
		t.Fatalf("bumped revision must revoke, got %v", res.Failure)
	}

	fx.revisions["u1"] = 0
	if res := RunValidate(context.Background(), issued.Token, fx.validateDeps()); res.Failure != TokenFailureNone {
		t.Fatalf("older current revision must still validate, got %v", res.Failure)
	}

	delete(fx.revisions, "u1")
	if res := RunValidate(context.Background(), issued.Token, fx.validateDeps()); res.Failure != TokenFailureRevoked {
		t.Fatalf("missing subject must revoke, got %v", res.Failure)
	}

	fx.revisions["u1"] = 1
	fx.ledger[issued.RecordID] = "someone-else"
	if res := RunValidate(context.Background(), issued.Token, fx.validateDeps()); res.Failure != TokenFailureRevoked {
		t.Fatalf("foreign ledger row must revoke, got %v", res.Failure)
	}
}

func TestRunValidateBackendErrors(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 1
	issued := RunIssue(context.Background(), "u1", 1, json.RawMessage(`{}`), fx.issueDeps())

	deps := fx.validateDeps()
	deps.LookupLedger = func(context.Context, string) (string, error) { return "", errors.New("conn refused") }
	if res := RunValidate(context.Background(), issued.Token, deps); res.Failure != TokenFailureLedgerUnavailable {
		t.Fatalf("expected ledger unavailable, got %v", res.Failure)
	}

	deps = fx.validateDeps()
	deps.CurrentRevision = func(context.Context, string) (uint64, error) { return 0, errors.New("conn refused") }
	if res := RunValidate(context.Background(), issued.Token, deps); res.Failure != TokenFailureSubjectUnavailable {
		t.Fatalf("expected subject unavailable, got %v", res.Failure)
	}
}

func TestRunValidateTimeClaims(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 0
	issued := RunIssue(context.Background(), "u1", 0, json.RawMessage(`{}`), fx.issueDeps())

	fx.now = fx.now.Add(24*time.Hour + time.Second)
	if res := RunValidate(context.Background(), issued.Token, fx.validateDeps()); res.Failure != TokenFailureExpired {
		t.Fatalf("expected expired, got %v", res.Failure)
	}
}

func TestRunUpdateKeepsLedgerRow(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 1
	issued := RunIssue(context.Background(), "u1", 1, json.RawMessage(`{"_id":"u1","nickname":"old"}`), fx.issueDeps())

	fx.revisions["u1"] = 2
	if res := RunValidate(context.Background(), issued.Token, fx.validateDeps()); res.Failure != TokenFailureRevoked {
		t.Fatalf("stale token must be revoked before update, got %v", res.Failure)
	}

	updated := RunUpdate(context.Background(), issued.Token, "u1", 2, fx.updateDeps("new"))
	if updated.Failure != TokenFailureNone {
		t.Fatalf("update failed: %v (%v)", updated.Failure, updated.Err)
	}
	if updated.RecordID != issued.RecordID {
		t.Fatalf("update must keep ledger row %q, got %q", issued.RecordID, updated.RecordID)
	}
	if len(fx.ledger) != 1 {
		t.Fatalf("update must not create ledger rows, got %d", len(fx.ledger))
	}

	res := RunValidate(context.Background(), updated.Token, fx.validateDeps())
	if res.Failure != TokenFailureNone || res.Revision != 2 {
		t.Fatalf("updated token must validate at revision 2: %+v", res)
	}
	var profile map[string]string
	if err := json.Unmarshal(res.Claims.Profile, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile["nickname"] != "new" || profile["_id"] != "u1" {
		t.Fatalf("unexpected merged profile %v", profile)
	}
}

func TestRunUpdateKeepsLedgerExpiry(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 1
	issued := RunIssue(context.Background(), "u1", 1, json.RawMessage(`{}`), fx.issueDeps())
	rowExpiry := fx.expiry[issued.RecordID]

	fx.now = fx.now.Add(6 * time.Hour)
	fx.revisions["u1"] = 2
	updated := RunUpdate(context.Background(), issued.Token, "u1", 2, fx.updateDeps("x"))
	if updated.Failure != TokenFailureNone {
		t.Fatalf("update failed: %v (%v)", updated.Failure, updated.Err)
	}

	res := RunValidate(context.Background(), updated.Token, fx.validateDeps())
	if res.Failure != TokenFailureNone {
		t.Fatalf("updated token must validate: %v (%v)", res.Failure, res.Err)
	}
	if !res.ExpiresAt.Equal(rowExpiry) {
		t.Fatalf("expected exp capped at %v, got %v", rowExpiry, res.ExpiresAt)
	}

	delete(fx.expiry, issued.RecordID)
	if res := RunUpdate(context.Background(), updated.Token, "u1", 2, fx.updateDeps("y")); res.Failure != TokenFailureRevoked {
		t.Fatalf("missing ledger row must revoke, got %v", res.Failure)
	}
}

func TestRunUpdateRejects(t *testing.T) {
	fx := newTokenFixture(t)
	fx.revisions["u1"] = 4
	issued := RunIssue(context.Background(), "u1", 4, json.RawMessage(`{}`), fx.issueDeps())
	signed, tag, _ := strings.Cut(issued.Token, "|")

	if res := RunUpdate(context.Background(), issued.Token, "u2", 5, fx.updateDeps("x")); res.Failure != TokenFailureSubjectMismatch {
		t.Fatalf("foreign subject must be rejected, got %v", res.Failure)
	}
	if res := RunUpdate(context.Background(), issued.Token, "u1", 3, fx.updateDeps("x")); res.Failure != TokenFailureSubjectMismatch {
		t.Fatalf("backwards revision must be rejected, got %v", res.Failure)
	}
	if res := RunUpdate(context.Background(), signed+"|"+flipHex(tag), "u1", 5, fx.updateDeps("x")); res.Failure != TokenFailureGuardMismatch {
		t.Fatalf("tampered guard must be rejected, got %v", res.Failure)
	}

	fx.now = fx.now.Add(48 * time.Hour)
	if res := RunUpdate(context.Background(), issued.Token, "u1", 5, fx.updateDeps("x")); res.Failure != TokenFailureExpired {
		t.Fatalf("expired token must be rejected, got %v", res.Failure)
	}
}

func flipHex(tag string) string {
	b := []byte(tag)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	return string(b)
}
