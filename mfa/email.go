package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alvidir/rauth-sub001/cache"
)

const (
	emailChallengeKeyPrefix = "mfc:email:"
	emailAttemptsKeyPrefix  = "mfc:email:att:"

	emailOTPSubject = "Your one time password"
)

// EmailConfig holds the emailed one-time code policy.
type EmailConfig struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
}

func (cfg *EmailConfig) applyDefaults() {
	if cfg.CodeLength == 0 {
		cfg.CodeLength = 6
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
}

// challengeRecord is the cached state of one outstanding challenge.
// Only the hash of the code is kept at rest; the attempt counter lives
// under its own key so increments stay atomic.
type challengeRecord struct {
	CodeHash  []byte `json:"code_hash"`
	ExpiresAt int64  `json:"expires_at"`
}

// EmailMethod implements challenge/verify for codes delivered by email.
//
// A challenge moves from issued to exactly one of verified, expired, or
// exhausted; all three are terminal until a fresh Challenge call.
type EmailMethod struct {
	config EmailConfig
	cache  cache.Store
	mailer Mailer
}

// NewEmailMethod returns the email method.
func NewEmailMethod(cfg EmailConfig, challenges cache.Store, mailer Mailer) (*EmailMethod, error) {
	cfg.applyDefaults()
	if cfg.CodeLength < 4 || cfg.CodeLength > 10 {
		return nil, errors.New("otp code length must be between 4 and 10")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("otp ttl must be positive")
	}
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("otp max attempts must be at least 1")
	}
	if challenges == nil {
		return nil, errors.New("challenge cache is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	return &EmailMethod{config: cfg, cache: challenges, mailer: mailer}, nil
}

// Challenge issues a fresh numeric code for user, caches its hash with
// a zeroed attempt budget, and hands the plaintext to the mailer.
// Any previous challenge for the same user is superseded.
func (m *EmailMethod) Challenge(ctx context.Context, user Identity) error {
	code, err := randomCode(m.config.CodeLength)
	if err != nil {
		return err
	}

	record := challengeRecord{
		CodeHash:  hashCode(code),
		ExpiresAt: time.Now().Add(m.config.TTL).Unix(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := m.cache.SetWithTTL(ctx, emailChallengeKey(user.ID), encoded, m.config.TTL); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := m.cache.Delete(ctx, emailAttemptsKey(user.ID)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return m.mailer.Send(ctx, user.Email, emailOTPSubject, code)
}

// Verify consumes one attempt against the outstanding challenge. On a
// match the challenge is deleted (single use); on a mismatch it stays
// usable until the attempt budget is spent.
func (m *EmailMethod) Verify(ctx context.Context, user Identity, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrRequired
	}

	data, err := m.cache.Get(ctx, emailChallengeKey(user.ID))
	if errors.Is(err, cache.ErrNotFound) {
		return ErrNoChallenge
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var record challengeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("%w: corrupt challenge record", ErrNoChallenge)
	}

	if time.Now().Unix() > record.ExpiresAt {
		m.discard(ctx, user.ID)
		return ErrExpired
	}

	attempts, err := m.cache.Incr(ctx, emailAttemptsKey(user.ID), m.config.TTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if attempts > int64(m.config.MaxAttempts) {
		m.discard(ctx, user.ID)
		return ErrExhausted
	}

	if subtle.ConstantTimeCompare(hashCode(strings.TrimSpace(code)), record.CodeHash) != 1 {
		return ErrInvalid
	}

	m.discard(ctx, user.ID)
	return nil
}

// discard drops the challenge and its attempt counter. Failures are
// ignored: the record's own TTL bounds any leftover state.
func (m *EmailMethod) discard(ctx context.Context, ownerID string) {
	_ = m.cache.Delete(ctx, emailChallengeKey(ownerID))
	_ = m.cache.Delete(ctx, emailAttemptsKey(ownerID))
}

func emailChallengeKey(ownerID string) string {
	return emailChallengeKeyPrefix + ownerID
}

func emailAttemptsKey(ownerID string) string {
	return emailAttemptsKeyPrefix + ownerID
}

func hashCode(code string) []byte {
	sum := sha256.Sum256([]byte(code))
	return sum[:]
}

// randomCode draws length decimal digits from crypto/rand.
func randomCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
