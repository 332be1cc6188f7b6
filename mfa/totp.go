package mfa

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alvidir/rauth-sub001/secret"
)

const totpSecretBytes = 20

// TOTPConfig holds the code-derivation parameters shared with the
// subject's authenticator application.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int // seconds per time step
	Skew      int // accepted steps around the current one, minimum 1
	Algorithm string
}

func (cfg *TOTPConfig) applyDefaults() {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Skew == 0 {
		cfg.Skew = 1
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
}

// AppMethod verifies time-based codes against the subject's enrolled
// TOTP seed.
type AppMethod struct {
	config  TOTPConfig
	secrets *secret.Store
}

// NewAppMethod returns the authenticator-app method.
func NewAppMethod(cfg TOTPConfig, secrets *secret.Store) (*AppMethod, error) {
	cfg.applyDefaults()
	if cfg.Digits < 6 || cfg.Digits > 10 {
		return nil, errors.New("totp digits must be between 6 and 10")
	}
	if cfg.Period < 1 {
		return nil, errors.New("totp period must be positive")
	}
	if cfg.Skew < 1 || cfg.Skew > 2 {
		return nil, errors.New("totp skew must be 1 or 2")
	}
	if _, err := hmacFunc(cfg.Algorithm); err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, errors.New("secret store is required")
	}
	return &AppMethod{config: cfg, secrets: secrets}, nil
}

// Verify checks code against the seed enrolled for user, accepting the
// current time step and the configured skew around it.
func (m *AppMethod) Verify(ctx context.Context, user Identity, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrRequired
	}

	stored, err := m.secrets.FindByOwnerAndKind(ctx, user.ID, secret.KindTotp)
	if errors.Is(err, secret.ErrNotFound) {
		return ErrNotEnrolled
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ok, err := m.matches(stored.Data, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalid
	}
	return nil
}

// GenerateSecret returns a fresh random seed and its base32 encoding
// for provisioning.
func (m *AppMethod) GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw), nil
}

// ProvisionURI renders the otpauth URI an authenticator app imports.
func (m *AppMethod) ProvisionURI(secretBase32, account string) string {
	label := url.PathEscape(m.config.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", m.config.Issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

func (m *AppMethod) matches(seed []byte, code string, now time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isNumericString(trimmed) {
		return false, nil
	}
	if len(seed) == 0 {
		return false, errors.New("empty totp secret")
	}

	baseCounter := now.Unix() / int64(m.config.Period)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(seed, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
