// Package token issues, decodes, and verifies the signed tokens used by
// the authentication core. Replay prevention and revocation are enforced
// through a TTL-bounded cache keyed by the token's unique id (jti).
package token

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alvidir/rauth-sub001/cache"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the purpose a token was issued for. A token of one
// kind is never accepted where another kind is expected.
type Kind string

const (
	// KindSession authenticates an established session.
	KindSession Kind = "session"
	// KindVerification proves ownership of an email address.
	KindVerification Kind = "verification"
	// KindReset authorizes a password reset.
	KindReset Kind = "reset"
)

// SigningMethod selects the asymmetric signature scheme.
type SigningMethod string

const (
	// MethodES256 signs with ECDSA over P-256 (default).
	MethodES256 SigningMethod = "es256"
	// MethodEd25519 signs with Ed25519.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrInvalid is returned when the token is malformed or its signature
	// does not verify.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when the token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrWrongKind is returned when the token kind does not match the
	// expected one.
	ErrWrongKind = errors.New("wrong token kind")
	// ErrRejected is returned when the token was revoked or already
	// consumed.
	ErrRejected = errors.New("token rejected")
	// ErrUnavailable is returned when the revocation cache cannot be
	// reached. It is surfaced, never swallowed.
	ErrUnavailable = errors.New("token backend unavailable")
)

const revocationKeyPrefix = "trk:"

// Claims is the token payload. ID (jti) is cryptographically random and
// doubles as the replay/revocation key.
type Claims struct {
	Kind Kind `json:"knd"`
	jwt.RegisteredClaims
}

// Config holds the signing material and per-kind lifetimes. Keys are
// PEM encoded; for ES256 the private key may be SEC1 or PKCS#8, for
// Ed25519 it must be PKCS#8.
type Config struct {
	Issuer          string
	SigningMethod   SigningMethod
	PrivateKey      []byte
	PublicKey       []byte
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Manager implements the token service. Instances are immutable after
// construction and safe for concurrent use.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   crypto.PrivateKey
	verifyKey crypto.PublicKey
	cache     cache.Store
}

// NewManager validates cfg, parses the key material, and returns a ready
// manager backed by the given revocation cache.
func NewManager(cfg Config, revocations cache.Store) (*Manager, error) {
	if revocations == nil {
		return nil, errors.New("revocation cache is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.SessionTTL <= 0 || cfg.VerificationTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodES256
	}

	m := &Manager{config: cfg, cache: revocations}

	var err error
	switch cfg.SigningMethod {
	case MethodES256:
		m.method = jwt.SigningMethodES256
		if m.signKey, err = jwt.ParseECPrivateKeyFromPEM(cfg.PrivateKey); err != nil {
			return nil, fmt.Errorf("parsing es256 private key: %w", err)
		}
		if m.verifyKey, err = jwt.ParseECPublicKeyFromPEM(cfg.PublicKey); err != nil {
			return nil, fmt.Errorf("parsing es256 public key: %w", err)
		}
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if m.signKey, err = jwt.ParseEdPrivateKeyFromPEM(cfg.PrivateKey); err != nil {
			return nil, fmt.Errorf("parsing ed25519 private key: %w", err)
		}
		if m.verifyKey, err = jwt.ParseEdPublicKeyFromPEM(cfg.PublicKey); err != nil {
			return nil, fmt.Errorf("parsing ed25519 public key: %w", err)
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// Issue signs a fresh token of the given kind for subject. The unique
// id is a random UUID and the lifetime is the configured per-kind TTL.
func (m *Manager) Issue(kind Kind, subject string) (string, *Claims, error) {
	ttl, err := m.ttl(kind)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	raw, err := m.sign(claims)
	if err != nil {
		return "", nil, err
	}

	return raw, claims, nil
}

// Decode parses raw and verifies its signature and shape. It succeeds on
// expired tokens: expiry is enforced by [Manager.Verify] so revocation
// can still decode what it needs to.
func (m *Manager) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(*jwt.Token) (interface{}, error) { return m.verifyKey, nil },
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.ID == "" || claims.Subject == "" || claims.Kind == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalid)
	}
	if claims.Issuer != m.config.Issuer {
		return nil, fmt.Errorf("%w: unknown issuer", ErrInvalid)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: inconsistent lifetime", ErrInvalid)
	}

	return claims, nil
}

// Verify decodes raw and checks kind, expiry, and revocation state. If
// singleUse is set the token is atomically consumed: the first call
// succeeds and marks the jti, every later call fails with ErrRejected.
func (m *Manager) Verify(ctx context.Context, kind Kind, raw string, singleUse bool) (*Claims, error) {
	claims, err := m.Decode(raw)
	if err != nil {
		return nil, err
	}

	if claims.Kind != kind {
		return nil, ErrWrongKind
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil, ErrExpired
	}

	key := revocationKeyPrefix + claims.ID
	if singleUse {
		// Check-and-mark must be one cache operation so two concurrent
		// verifications cannot both observe the jti as absent.
		stored, err := m.cache.SetIfAbsent(ctx, key, []byte{1}, remaining)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !stored {
			return nil, ErrRejected
		}
		return claims, nil
	}

	switch _, err := m.cache.Get(ctx, key); {
	case err == nil:
		return nil, ErrRejected
	case errors.Is(err, cache.ErrNotFound):
		return claims, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Revoke marks the token's jti so every future Verify fails with
// ErrRejected, even before natural expiry. Expiry is ignored while
// decoding: revoking an already expired token is harmless.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	claims, err := m.Decode(raw)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < time.Minute {
		ttl = time.Minute
	}

	if err := m.cache.SetWithTTL(ctx, revocationKeyPrefix+claims.ID, []byte{1}, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (m *Manager) sign(claims *Claims) (string, error) {
	raw, err := jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (m *Manager) ttl(kind Kind) (time.Duration, error) {
	switch kind {
	case KindSession:
		return m.config.SessionTTL, nil
	case KindVerification:
		return m.config.VerificationTTL, nil
	case KindReset:
		return m.config.ResetTTL, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	}
}
