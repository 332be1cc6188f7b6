package rauth

import (
	"context"
	"errors"

	"github.com/alvidir/rauth-sub001/token"
)

const resetSubject = "Reset your password"

// RequestPasswordReset mails a reset token to the given address. An
// unknown address succeeds without sending anything, so the call leaks
// nothing about which accounts exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.Verified {
		return ErrAccountUnverified
	}

	raw, _, err := e.tokens.Issue(token.KindReset, user.ID)
	if err != nil {
		return err
	}
	if err := e.mailer.Send(ctx, user.Email, resetSubject, raw); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	return nil
}

// ConfirmPasswordReset consumes a reset token, replaces the subject's
// password, and drops every open session of the account. The token is
// single use; replaying it fails with [token.ErrRejected].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, rawToken, newPass string) error {
	if len(newPass) < 8 {
		return ErrPasswordPolicy
	}

	claims, err := e.tokens.Verify(ctx, token.KindReset, rawToken, true)
	if err != nil {
		if errors.Is(err, token.ErrRejected) {
			e.metricInc(MetricTokenReplay)
		}
		return err
	}

	hash, err := e.passwordHash.Hash(newPass)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, claims.Subject, hash); err != nil {
		return err
	}

	if _, err := e.sessions.RevokeAll(ctx, claims.Subject); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirm)
	return nil
}
