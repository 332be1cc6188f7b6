package rauth

import (
	"context"

	"github.com/alvidir/rauth-sub001/mfa"
)

// UserRecord is the account view the engine needs. Providers may carry
// any richer model underneath.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool

	// MFAMethod is the multi factor method the account verifies with,
	// or empty when none is enabled.
	MFAMethod mfa.Method
}

// CreateUserInput is the payload of [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
}

// UserProvider integrates the engine with the caller's user database.
// Lookup methods return [ErrUserNotFound] for unknown accounts and
// CreateUser returns [ErrAccountExists] on a duplicate email.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	DeleteUser(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateMFAMethod(ctx context.Context, id string, method mfa.Method) error
}

// TOTPProvision holds the secret handed to the subject during
// authenticator enrollment.
type TOTPProvision struct {
	// Secret is the base32 provisioning string.
	Secret string
	// URI is the otpauth:// form of the same secret.
	URI string
}
