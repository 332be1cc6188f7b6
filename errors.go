package rauth

import "errors"

var (
	// ErrInvalidCredentials is returned when the identifier or password
	// of a login attempt does not match a verified account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when no account matches the given
	// identifier. Providers return it from their lookup methods.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when signing up an email that is
	// already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidEmail is returned when the given address does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrAccountUnverified is returned when an operation requires a
	// verified email address.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrPasswordPolicy is returned when a new password does not meet
	// the minimum requirements.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrMFARequired is returned when login needs a one time password
	// and none was supplied. For email delivered codes a fresh
	// challenge has already been mailed when this is returned.
	ErrMFARequired = errors.New("one time password required")
	// ErrMFANotEnrolled is returned when enabling or disabling a multi
	// factor method the account has no secret for.
	ErrMFANotEnrolled = errors.New("multi factor method not enrolled")
)
