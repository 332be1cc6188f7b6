package rauth

import (
	"context"
	"errors"

	"github.com/alvidir/rauth-sub001/mfa"
	"github.com/alvidir/rauth-sub001/secret"
)

// ProvisionTOTP enrolls (or re-enrolls) the account with a fresh
// authenticator seed and returns the provisioning material to show the
// subject. The method only starts guarding logins once [Engine.ConfirmTOTP]
// proves the authenticator was set up. Re-provisioning replaces the old
// seed and invalidates any outstanding challenge state.
func (e *Engine) ProvisionTOTP(ctx context.Context, userID string) (*TOTPProvision, error) {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	raw, encoded, err := e.pipeline.App().GenerateSecret()
	if err != nil {
		return nil, err
	}
	if _, err := e.secrets.Rotate(ctx, user.ID, secret.KindTotp, raw); err != nil {
		return nil, err
	}

	return &TOTPProvision{
		Secret: encoded,
		URI:    e.pipeline.App().ProvisionURI(encoded, user.Email),
	}, nil
}

// ConfirmTOTP proves the subject's authenticator produces valid codes
// and flips the account to TOTP-guarded logins.
func (e *Engine) ConfirmTOTP(ctx context.Context, userID, code string) error {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	identity := mfa.Identity{ID: user.ID, Email: user.Email}
	if err := e.pipeline.Verify(ctx, mfa.MethodApp, identity, code); err != nil {
		if errors.Is(err, mfa.ErrNotEnrolled) {
			return ErrMFANotEnrolled
		}
		return err
	}

	return e.users.UpdateMFAMethod(ctx, user.ID, mfa.MethodApp)
}

// DisableTOTP removes the authenticator seed after proving possession
// of a current code, and clears the account's multi factor method.
func (e *Engine) DisableTOTP(ctx context.Context, userID, code string) error {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	identity := mfa.Identity{ID: user.ID, Email: user.Email}
	if err := e.pipeline.Verify(ctx, mfa.MethodApp, identity, code); err != nil {
		if errors.Is(err, mfa.ErrNotEnrolled) {
			return ErrMFANotEnrolled
		}
		return err
	}

	if err := e.secrets.Delete(ctx, user.ID, secret.KindTotp); err != nil && !errors.Is(err, secret.ErrNotFound) {
		return err
	}
	return e.users.UpdateMFAMethod(ctx, user.ID, "")
}

// EnableEmailOTP switches the account to email-delivered one time
// passwords. The address must be verified: the codes are only as
// trustworthy as the mailbox they land in.
func (e *Engine) EnableEmailOTP(ctx context.Context, userID string) error {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Verified {
		return ErrAccountUnverified
	}
	return e.users.UpdateMFAMethod(ctx, user.ID, mfa.MethodEmail)
}

// DisableEmailOTP clears the email method after verifying a code from
// an outstanding challenge. Use [Engine.ChallengeEmailOTP] to issue one.
func (e *Engine) DisableEmailOTP(ctx context.Context, userID, code string) error {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	identity := mfa.Identity{ID: user.ID, Email: user.Email}
	if err := e.pipeline.Verify(ctx, mfa.MethodEmail, identity, code); err != nil {
		return err
	}
	return e.users.UpdateMFAMethod(ctx, user.ID, "")
}

// ChallengeEmailOTP mails the account a fresh one time password,
// superseding any outstanding one.
func (e *Engine) ChallengeEmailOTP(ctx context.Context, userID string) error {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	return e.pipeline.Challenge(ctx, mfa.MethodEmail, mfa.Identity{ID: user.ID, Email: user.Email})
}
