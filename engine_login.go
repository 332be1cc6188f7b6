package rauth

import (
	"context"
	"errors"

	"github.com/alvidir/rauth-sub001/mfa"
	"github.com/alvidir/rauth-sub001/session"
)

// LoginResult is returned by a completed [Engine.Login].
type LoginResult struct {
	Token   string
	Session *session.Session
	User    UserRecord
}

// Login checks the credentials, runs the account's multi factor method,
// and opens a session.
//
// Unknown addresses and wrong passwords are indistinguishable from the
// outside: both fail with [ErrInvalidCredentials]. When the account
// verifies with an emailed code and none was supplied, a fresh code is
// mailed and the call fails with [ErrMFARequired]; the caller retries
// with the code.
func (e *Engine) Login(ctx context.Context, email, pass, otp string) (*LoginResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	match, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, ErrAccountUnverified
	}

	if user.MFAMethod != "" {
		if err := e.verifySecondFactor(ctx, user, otp); err != nil {
			return nil, err
		}
	}

	if upgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && upgrade {
		if hash, err := e.passwordHash.Hash(pass); err == nil {
			_ = e.users.UpdatePasswordHash(ctx, user.ID, hash)
		}
	}

	raw, sess, err := e.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	return &LoginResult{Token: raw, Session: sess, User: user}, nil
}

func (e *Engine) verifySecondFactor(ctx context.Context, user UserRecord, otp string) error {
	identity := mfa.Identity{ID: user.ID, Email: user.Email}

	err := e.pipeline.Verify(ctx, user.MFAMethod, identity, otp)
	if err == nil {
		return nil
	}

	if errors.Is(err, mfa.ErrRequired) {
		e.metricInc(MetricMFARequired)
		if challengeErr := e.pipeline.Challenge(ctx, user.MFAMethod, identity); challengeErr != nil {
			return challengeErr
		}
		return ErrMFARequired
	}

	e.metricInc(MetricMFAFailure)
	return err
}
