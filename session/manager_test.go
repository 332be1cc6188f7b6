package session

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/alvidir/rauth-sub001/cache"
	"github.com/alvidir/rauth-sub001/token"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T) (*Manager, Repository) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

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

	tokens, err := token.NewManager(token.Config{
		Issuer:          "rauth-test",
		PrivateKey:      pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}),
		PublicKey:       pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		SessionTTL:      time.Hour,
		VerificationTTL: 10 * time.Minute,
		ResetTTL:        10 * time.Minute,
	}, cache.NewRedis(rdb, "test"))
	if err != nil {
		t.Fatalf("token manager failed: %v", err)
	}

	repo := NewRedisRepository(rdb, "test", 0)
	manager, err := NewManager(tokens, repo)
	if err != nil {
		t.Fatalf("session manager failed: %v", err)
	}
	return manager, repo
}

func TestCreateAndAuthenticate(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	raw, created, err := manager.Create(ctx, "client-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Status != StatusActive {
		t.Fatalf("expected active session, got %q", created.Status)
	}
	if created.Deadline.Sub(created.CreatedAt) != time.Hour {
		t.Fatalf("expected deadline one hour after creation, got %v", created.Deadline.Sub(created.CreatedAt))
	}

	sess, err := manager.Authenticate(ctx, raw)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if sess.ID != created.ID || sess.ClientID != "client-1" {
		t.Fatalf("authenticated wrong session: %+v", sess)
	}
	if sess.TouchAt.Before(created.TouchAt) {
		t.Fatal("expected authentication to advance touch time")
	}
}

func TestAuthenticateRejectsForeignToken(t *testing.T) {
	manager, _ := newTestManager(t)
	other, _ := newTestManager(t)
	ctx := context.Background()

	raw, _, err := other.Create(ctx, "client-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := manager.Authenticate(ctx, raw); !errors.Is(err, token.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign signature, got %v", err)
	}
}

func TestAuthenticateAfterDeadline(t *testing.T) {
	manager, repo := newTestManager(t)
	ctx := context.Background()

	raw, created, err := manager.Create(ctx, "client-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	created.Deadline = time.Now().Add(-time.Minute)
	if err := repo.Update(ctx, created); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if _, err := manager.Authenticate(ctx, raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	stored, err := repo.Find(ctx, created.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if stored.Status != StatusExpired {
		t.Fatalf("expected record marked expired, got %q", stored.Status)
	}

	if _, err := manager.Authenticate(ctx, raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired on repeat, got %v", err)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	manager, repo := newTestManager(t)
	ctx := context.Background()

	raw, created, err := manager.Create(ctx, "client-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := manager.Logout(ctx, raw); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := manager.Authenticate(ctx, raw); err == nil {
		t.Fatal("expected authentication to fail after logout")
	}

	stored, err := repo.Find(ctx, created.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if stored.Status != StatusLoggedOut {
		t.Fatalf("expected record marked logged out, got %q", stored.Status)
	}

	if err := manager.Logout(ctx, raw); err != nil {
		t.Fatalf("expected repeated logout to be a no-op, got %v", err)
	}
}

func TestRevokeAllDropsEveryClientSession(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		raw, _, err := manager.Create(ctx, "client-1")
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		tokens = append(tokens, raw)
	}
	keepRaw, _, err := manager.Create(ctx, "client-2")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	removed, err := manager.RevokeAll(ctx, "client-1")
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed sessions, got %d", removed)
	}

	for i, raw := range tokens {
		if _, err := manager.Authenticate(ctx, raw); !errors.Is(err, ErrNotFound) {
			t.Fatalf("token %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if _, err := manager.Authenticate(ctx, keepRaw); err != nil {
		t.Fatalf("expected other client to stay authenticated, got %v", err)
	}
}
