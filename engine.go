package rauth

import (
	"context"
	"errors"

	"github.com/alvidir/rauth-sub001/cache"
	"github.com/alvidir/rauth-sub001/mfa"
	"github.com/alvidir/rauth-sub001/password"
	"github.com/alvidir/rauth-sub001/secret"
	"github.com/alvidir/rauth-sub001/session"
	"github.com/alvidir/rauth-sub001/token"
)

// Engine is the authentication facade. Construct it once with [New];
// instances are immutable afterwards and safe for concurrent use.
type Engine struct {
	config Config

	users  UserProvider
	mailer mfa.Mailer

	tokens       *token.Manager
	secrets      *secret.Store
	pipeline     *mfa.Pipeline
	sessions     *session.Manager
	passwordHash *password.Argon2
	metrics      *Metrics
}

// Dependencies carries the collaborators an [Engine] is built on. Cache,
// Users, and Mailer are mandatory. Secrets and Sessions default to
// in-memory repositories, which only suit tests and single-process
// embeds.
type Dependencies struct {
	Cache  cache.Store
	Users  UserProvider
	Mailer mfa.Mailer

	Secrets  secret.Repository
	Sessions session.Repository
}

// New validates cfg, wires every subsystem, and returns a ready engine.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if deps.Users == nil {
		return nil, errors.New("user provider is required")
	}
	if deps.Mailer == nil {
		return nil, errors.New("mailer is required")
	}
	if deps.Secrets == nil {
		deps.Secrets = secret.NewMemoryRepository()
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewMemoryRepository()
	}

	tokens, err := token.NewManager(cfg.Token, deps.Cache)
	if err != nil {
		return nil, err
	}

	secrets, err := secret.NewStore(deps.Secrets, deps.Cache, mfa.ChallengeKeys)
	if err != nil {
		return nil, err
	}

	app, err := mfa.NewAppMethod(cfg.TOTP, secrets)
	if err != nil {
		return nil, err
	}
	email, err := mfa.NewEmailMethod(cfg.EmailOTP, deps.Cache, deps.Mailer)
	if err != nil {
		return nil, err
	}
	pipeline, err := mfa.NewPipeline(app, email)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(tokens, deps.Sessions)
	if err != nil {
		return nil, err
	}

	passwordHash, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:       cfg,
		users:        deps.Users,
		mailer:       deps.Mailer,
		tokens:       tokens,
		secrets:      secrets,
		pipeline:     pipeline,
		sessions:     sessions,
		passwordHash: passwordHash,
		metrics:      NewMetrics(),
	}, nil
}

// Authenticate resolves a session token to its live session record.
func (e *Engine) Authenticate(ctx context.Context, rawToken string) (*session.Session, error) {
	sess, err := e.sessions.Authenticate(ctx, rawToken)
	if errors.Is(err, token.ErrRejected) {
		e.metricInc(MetricTokenReplay)
	}
	return sess, err
}

// Logout ends the session behind the token. Repeating a logout is a
// no-op.
func (e *Engine) Logout(ctx context.Context, rawToken string) error {
	if err := e.sessions.Logout(ctx, rawToken); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	return nil
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// Tokens exposes the token manager for integrations that verify or
// revoke tokens outside the facade flows.
func (e *Engine) Tokens() *token.Manager { return e.tokens }

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Secrets exposes the secret store.
func (e *Engine) Secrets() *secret.Store { return e.secrets }

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}
