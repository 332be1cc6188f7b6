// Package mfa implements the multi-factor verification pipeline. The
// method set is closed and known at compile time: a time-based code
// from an authenticator app, or a one-time code delivered by email.
package mfa

import (
	"context"
	"errors"
)

// Method selects the multi-factor mechanism a subject verifies with.
type Method string

const (
	// MethodApp verifies a TOTP computed by a third-party authenticator
	// application.
	MethodApp Method = "tp_app"
	// MethodEmail verifies a one-time code previously sent by email.
	MethodEmail Method = "email"
)

var (
	// ErrRequired is returned when verification needs a code and none
	// was supplied.
	ErrRequired = errors.New("one time password required")
	// ErrInvalid is returned when the supplied code does not match.
	ErrInvalid = errors.New("invalid one time password")
	// ErrNoChallenge is returned when no challenge is outstanding for
	// the subject.
	ErrNoChallenge = errors.New("challenge not found")
	// ErrExpired is returned when the outstanding challenge is past its
	// expiry.
	ErrExpired = errors.New("challenge expired")
	// ErrExhausted is returned once the attempt budget of a challenge is
	// spent. A fresh challenge must be issued before verifying again.
	ErrExhausted = errors.New("challenge attempts exceeded")
	// ErrNotEnrolled is returned when the subject has no secret for the
	// requested method.
	ErrNotEnrolled = errors.New("method not enrolled")
	// ErrUnknownMethod is returned when dispatching an unrecognized
	// method.
	ErrUnknownMethod = errors.New("unknown multi factor method")
	// ErrUnavailable is returned when a backing store cannot be reached.
	ErrUnavailable = errors.New("multi factor backend unavailable")
)

// Identity carries the subject attributes the pipeline needs.
type Identity struct {
	ID    string
	Email string
}

// Mailer delivers plaintext one-time codes. Rendering and transport are
// external concerns.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Pipeline dispatches verification to the configured methods.
type Pipeline struct {
	app   *AppMethod
	email *EmailMethod
}

// NewPipeline wires the two supported methods.
func NewPipeline(app *AppMethod, email *EmailMethod) (*Pipeline, error) {
	if app == nil || email == nil {
		return nil, errors.New("both mfa methods are required")
	}
	return &Pipeline{app: app, email: email}, nil
}

// Verify runs the given method against the supplied code.
func (p *Pipeline) Verify(ctx context.Context, method Method, user Identity, code string) error {
	switch method {
	case MethodApp:
		return p.app.Verify(ctx, user, code)
	case MethodEmail:
		return p.email.Verify(ctx, user, code)
	default:
		return ErrUnknownMethod
	}
}

// Challenge starts a new challenge for methods that need one. For
// MethodApp this is a no-op: the authenticator derives codes locally.
func (p *Pipeline) Challenge(ctx context.Context, method Method, user Identity) error {
	switch method {
	case MethodApp:
		return nil
	case MethodEmail:
		return p.email.Challenge(ctx, user)
	default:
		return ErrUnknownMethod
	}
}

// App exposes the authenticator-app method for enrollment flows.
func (p *Pipeline) App() *AppMethod { return p.app }

// Email exposes the email method for challenge issuance flows.
func (p *Pipeline) Email() *EmailMethod { return p.email }

// ChallengeKeys returns every cache key that may hold challenge state
// for the given owner. Secret rotation purges these so codes issued
// against replaced material cannot verify.
func ChallengeKeys(ownerID string) []string {
	return []string{
		emailChallengeKey(ownerID),
		emailAttemptsKey(ownerID),
	}
}
