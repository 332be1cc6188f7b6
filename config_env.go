package rauth

import (
	"fmt"
	"os"
	"time"

	"github.com/alvidir/rauth-sub001/token"
	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	Issuer string `env:"RAUTH_ISSUER"`

	SigningMethod  string `env:"RAUTH_TOKEN_SIGNING_METHOD"`
	PrivateKeyFile string `env:"RAUTH_TOKEN_PRIVATE_KEY_FILE"`
	PublicKeyFile  string `env:"RAUTH_TOKEN_PUBLIC_KEY_FILE"`

	SessionTTL      time.Duration `env:"RAUTH_SESSION_TTL"`
	VerificationTTL time.Duration `env:"RAUTH_VERIFICATION_TTL"`
	ResetTTL        time.Duration `env:"RAUTH_RESET_TTL"`

	TOTPSkew            int           `env:"RAUTH_TOTP_SKEW"`
	EmailOTPTTL         time.Duration `env:"RAUTH_EMAIL_OTP_TTL"`
	EmailOTPMaxAttempts int           `env:"RAUTH_EMAIL_OTP_MAX_ATTEMPTS"`
}

// FromEnv builds a [Config] from RAUTH_* environment variables. Signing
// keys are read from the referenced PEM files. Unset variables leave
// the corresponding field at its package default.
func FromEnv() (Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return Config{}, err
	}

	cfg := Config{Issuer: e.Issuer}
	cfg.Token.SigningMethod = token.SigningMethod(e.SigningMethod)
	cfg.Token.SessionTTL = e.SessionTTL
	cfg.Token.VerificationTTL = e.VerificationTTL
	cfg.Token.ResetTTL = e.ResetTTL
	cfg.TOTP.Skew = e.TOTPSkew
	cfg.EmailOTP.TTL = e.EmailOTPTTL
	cfg.EmailOTP.MaxAttempts = e.EmailOTPMaxAttempts

	if e.PrivateKeyFile != "" {
		data, err := os.ReadFile(e.PrivateKeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("read private key: %w", err)
		}
		cfg.Token.PrivateKey = data
	}
	if e.PublicKeyFile != "" {
		data, err := os.ReadFile(e.PublicKeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("read public key: %w", err)
		}
		cfg.Token.PublicKey = data
	}

	return cfg, nil
}
