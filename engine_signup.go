package rauth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/alvidir/rauth-sub001/token"
	"github.com/alvidir/rauth-sub001/tx"
)

const verificationSubject = "Verify your email address"

// Signup registers a new account and mails it a verification token.
// The two side effects are compensated as one unit: when the token
// cannot be issued or delivered, the created user is removed again and
// the address stays free for a retry.
func (e *Engine) Signup(ctx context.Context, email, pass string) (UserRecord, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return UserRecord{}, err
	}
	if len(pass) < 8 {
		return UserRecord{}, ErrPasswordPolicy
	}

	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		return UserRecord{}, err
	}

	var created UserRecord
	body := tx.Func[UserRecord]{
		Pre: func(ctx context.Context) error {
			_, err := e.users.GetUserByEmail(ctx, email)
			if err == nil {
				return ErrAccountExists
			}
			if errors.Is(err, ErrUserNotFound) {
				return nil
			}
			return err
		},
		Do: func(ctx context.Context) (UserRecord, error) {
			user, err := e.users.CreateUser(ctx, CreateUserInput{Email: email, PasswordHash: hash})
			if err != nil {
				return UserRecord{}, err
			}
			created = user

			raw, _, err := e.tokens.Issue(token.KindVerification, user.ID)
			if err != nil {
				return UserRecord{}, err
			}
			if err := e.mailer.Send(ctx, user.Email, verificationSubject, raw); err != nil {
				return UserRecord{}, err
			}
			return user, nil
		},
		Undo: func(ctx context.Context) error {
			if created.ID == "" {
				return nil
			}
			return e.users.DeleteUser(ctx, created.ID)
		},
	}

	user, err := tx.Run(ctx, body)
	if err != nil {
		if created.ID != "" {
			e.metricInc(MetricSignupRolledBack)
		}
		return UserRecord{}, err
	}

	e.metricInc(MetricSignupSuccess)
	return user, nil
}

// VerifyEmail consumes a verification token and marks its subject as
// verified. The token is single use: a second confirmation with the
// same token fails with [token.ErrRejected].
func (e *Engine) VerifyEmail(ctx context.Context, rawToken string) error {
	claims, err := e.tokens.Verify(ctx, token.KindVerification, rawToken, true)
	if err != nil {
		return err
	}

	if err := e.users.MarkEmailVerified(ctx, claims.Subject); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerified)
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
