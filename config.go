package rauth

import (
	"errors"
	"strings"
	"time"

	"github.com/alvidir/rauth-sub001/mfa"
	"github.com/alvidir/rauth-sub001/password"
	"github.com/alvidir/rauth-sub001/token"
)

// Config configures an [Engine]. The zero value is not usable: Issuer
// and the token signing keys are mandatory. Everything else defaults
// through the owning package.
type Config struct {
	// Issuer names this deployment. It is stamped into tokens and TOTP
	// provisioning URIs.
	Issuer string

	Token    token.Config
	TOTP     mfa.TOTPConfig
	EmailOTP mfa.EmailConfig
	Password password.Config
}

func (c *Config) applyDefaults() {
	if c.Token.Issuer == "" {
		c.Token.Issuer = c.Issuer
	}
	if c.TOTP.Issuer == "" {
		c.TOTP.Issuer = c.Issuer
	}
	if c.Token.SessionTTL == 0 {
		c.Token.SessionTTL = 24 * time.Hour
	}
	if c.Token.VerificationTTL == 0 {
		c.Token.VerificationTTL = time.Hour
	}
	if c.Token.ResetTTL == 0 {
		c.Token.ResetTTL = 15 * time.Minute
	}
}

// Validate reports the first configuration problem found. Nested
// configs are validated by their own constructors during [New].
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return errors.New("issuer is required")
	}
	if len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0 {
		return errors.New("token signing keys are required")
	}
	return nil
}
