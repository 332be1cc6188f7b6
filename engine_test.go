package rauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/alvidir/rauth-sub001/cache"
	"github.com/alvidir/rauth-sub001/mfa"
	"github.com/alvidir/rauth-sub001/token"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]UserRecord
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: make(map[string]UserRecord)}
}

func (p *memoryUsers) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, user := range p.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (p *memoryUsers) GetUserByID(_ context.Context, id string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, exists := p.byID[id]
	if !exists {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (p *memoryUsers) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, user := range p.byID {
		if user.Email == input.Email {
			return UserRecord{}, ErrAccountExists
		}
	}

	user := UserRecord{ID: uuid.NewString(), Email: input.Email, PasswordHash: input.PasswordHash}
	p.byID[user.ID] = user
	return user, nil
}

func (p *memoryUsers) DeleteUser(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.byID, id)
	return nil
}

func (p *memoryUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return p.update(id, func(user *UserRecord) { user.PasswordHash = hash })
}

func (p *memoryUsers) MarkEmailVerified(_ context.Context, id string) error {
	return p.update(id, func(user *UserRecord) { user.Verified = true })
}

func (p *memoryUsers) UpdateMFAMethod(_ context.Context, id string, method mfa.Method) error {
	return p.update(id, func(user *UserRecord) { user.MFAMethod = method })
}

func (p *memoryUsers) update(id string, apply func(*UserRecord)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, exists := p.byID[id]
	if !exists {
		return ErrUserNotFound
	}
	apply(&user)
	p.byID[id] = user
	return nil
}

func (p *memoryUsers) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

type recordingMailer struct {
	mu    sync.Mutex
	to    string
	body  string
	sends int
	fail  error
}

func (m *recordingMailer) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	m.to = to
	m.body = body
	m.sends++
	return nil
}

func (m *recordingMailer) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}

func testSigningKeys(t *testing.T) (priv, pub []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ec key failed: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key failed: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key failed: %v", err)
	}

	priv = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	pub = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return priv, pub
}

func newTestEngine(t *testing.T) (*Engine, *memoryUsers, *recordingMailer) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	priv, pub := testSigningKeys(t)
	cfg := Config{Issuer: "rauth-test"}
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.TOTP.Skew = 1

	users := newMemoryUsers()
	mailer := &recordingMailer{}

	engine, err := New(cfg, Dependencies{
		Cache:  cache.NewRedis(rdb, "test"),
		Users:  users,
		Mailer: mailer,
	})
	if err != nil {
		t.Fatalf("engine failed: %v", err)
	}
	return engine, users, mailer
}

func signupVerified(t *testing.T, engine *Engine, mailer *recordingMailer, email, pass string) UserRecord {
	t.Helper()
	ctx := context.Background()

	user, err := engine.Signup(ctx, email, pass)
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if err := engine.VerifyEmail(ctx, mailer.lastBody()); err != nil {
		t.Fatalf("verify email failed: %v", err)
	}
	return user
}

func TestSignupMailsVerificationToken(t *testing.T) {
	engine, users, mailer := newTestEngine(t)
	ctx := context.Background()

	user, err := engine.Signup(ctx, "User@Example.org ", "correct horse battery")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if user.Email != "user@example.org" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if users.count() != 1 {
		t.Fatalf("expected one stored user, got %d", users.count())
	}
	if mailer.to != "user@example.org" || mailer.lastBody() == "" {
		t.Fatal("expected verification token to be mailed")
	}

	stored, err := users.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.Verified {
		t.Fatal("expected account to start unverified")
	}
}

func TestSignupRejectsInvalidInput(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Signup(ctx, "not-an-address", "correct horse battery"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := engine.Signup(ctx, "user@example.org", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Signup(ctx, "user@example.org", "correct horse battery"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	_, err := engine.Signup(ctx, "user@example.org", "another password")
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestSignupRollsBackWhenMailFails(t *testing.T) {
	engine, users, mailer := newTestEngine(t)
	mailer.fail = errors.New("smtp down")

	_, err := engine.Signup(context.Background(), "user@example.org", "correct horse battery")
	if err == nil {
		t.Fatal("expected signup to fail")
	}
	if users.count() != 0 {
		t.Fatalf("expected created user to be rolled back, got %d users", users.count())
	}
	if got := engine.MetricsSnapshot().Counters[MetricSignupRolledBack]; got != 1 {
		t.Fatalf("expected one rollback counted, got %d", got)
	}

	mailer.fail = nil
	if _, err := engine.Signup(context.Background(), "user@example.org", "correct horse battery"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestVerifyEmailTokenIsSingleUse(t *testing.T) {
	engine, users, mailer := newTestEngine(t)
	ctx := context.Background()

	user, err := engine.Signup(ctx, "user@example.org", "correct horse battery")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	raw := mailer.lastBody()
	if err := engine.VerifyEmail(ctx, raw); err != nil {
		t.Fatalf("verify email failed: %v", err)
	}

	stored, err := users.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !stored.Verified {
		t.Fatal("expected account to be verified")
	}

	if err := engine.VerifyEmail(ctx, raw); !errors.Is(err, token.ErrRejected) {
		t.Fatalf("expected replayed token to be rejected, got %v", err)
	}
}

func TestLoginOpensSession(t *testing.T) {
	engine, _, mailer := newTestEngine(t)
	ctx := context.Background()
	user := signupVerified(t, engine, mailer, "user@example.org", "correct horse battery")

	result, err := engine.Login(ctx, "user@example.org", "correct horse battery", "")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.User.ID != user.ID {
		t.Fatalf("expected login as %s, got %s", user.ID, result.User.ID)
	}

	sess, err := engine.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if sess.ClientID != user.ID {
		t.Fatalf("expected session owned by %s, got %s", user.ID, sess.ClientID)
	}

	if err := engine.Logout(ctx, result.Token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := engine.Authenticate(ctx, result.Token); err == nil {
		t.Fatal("expected authentication to fail after logout")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	engine, _, mailer := newTestEngine(t)
	ctx := context.Background()
	signupVerified(t, engine, mailer, "user@example.org", "correct horse battery")

	cases := []struct {
		name  string
		email string
		pass  string
	}{
		{"unknown email", "other@example.org", "correct horse battery"},
		{"wrong password", "user@example.org", "wrong password here"},
		{"malformed email", "not-an-address", "correct horse battery"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Login(ctx, tc.email, tc.pass, "")
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestLoginRequiresVerifiedAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Signup(ctx, "user@example.org", "correct horse battery"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	_, err := engine.Login(ctx, "user@example.org", "correct horse battery", "")
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestMetricsCountFlows(t *testing.T) {
	engine, _, mailer := newTestEngine(t)
	ctx := context.Background()
	signupVerified(t, engine, mailer, "user@example.org", "correct horse battery")

	if _, err := engine.Login(ctx, "user@example.org", "wrong password here", ""); err == nil {
		t.Fatal("expected login to fail")
	}
	if _, err := engine.Login(ctx, "user@example.org", "correct horse battery", ""); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	snap := engine.MetricsSnapshot()
	for id, want := range map[MetricID]uint64{
		MetricSignupSuccess:  1,
		MetricEmailVerified:  1,
		MetricLoginFailure:   1,
		MetricLoginSuccess:   1,
		MetricSessionCreated: 1,
	} {
		if snap.Counters[id] != want {
			t.Fatalf("%s: expected %d, got %d", id.Name(), want, snap.Counters[id])
		}
	}
}
