package session

import (
	"context"
	"errors"
	"time"

	"github.com/alvidir/rauth-sub001/token"
)

// Manager issues session tokens and keeps their records in sync. The
// record ID is the token's unique identifier, so every verified token
// resolves to exactly one record.
type Manager struct {
	tokens *token.Manager
	repo   Repository
}

// NewManager returns a session manager.
func NewManager(tokens *token.Manager, repo Repository) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("token manager is required")
	}
	if repo == nil {
		return nil, errors.New("session repository is required")
	}
	return &Manager{tokens: tokens, repo: repo}, nil
}

// Create opens a session for clientID and returns the signed token
// alongside its record. The record deadline mirrors the token expiry
// and never moves afterwards.
func (m *Manager) Create(ctx context.Context, clientID string) (string, *Session, error) {
	raw, claims, err := m.tokens.Issue(token.KindSession, clientID)
	if err != nil {
		return "", nil, err
	}

	issued := claims.IssuedAt.Time
	sess := &Session{
		ID:        claims.ID,
		ClientID:  clientID,
		Status:    StatusActive,
		CreatedAt: issued,
		TouchAt:   issued,
		Deadline:  claims.ExpiresAt.Time,
	}
	if err := m.repo.Insert(ctx, sess); err != nil {
		return "", nil, err
	}
	return raw, sess, nil
}

// Authenticate verifies a session token and resolves its record. A
// deadline crossed since the last call marks the record expired before
// failing; otherwise TouchAt records the activity. Expiry tracking is
// audit state only and never stretches the deadline.
func (m *Manager) Authenticate(ctx context.Context, rawToken string) (*Session, error) {
	claims, err := m.tokens.Verify(ctx, token.KindSession, rawToken, false)
	if err != nil {
		return nil, err
	}

	sess, err := m.repo.Find(ctx, claims.ID)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case StatusLoggedOut:
		return nil, ErrRevoked
	case StatusExpired:
		return nil, ErrExpired
	}

	now := time.Now()
	if sess.ExpiredAt(now) {
		sess.Status = StatusExpired
		if err := m.repo.Update(ctx, sess); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	sess.TouchAt = now
	if err := m.repo.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout ends the session behind the token. The token is revoked for
// its remaining lifetime and the record turns logged out. Logging out a
// session that is already gone or logged out is a no-op.
func (m *Manager) Logout(ctx context.Context, rawToken string) error {
	claims, err := m.tokens.Verify(ctx, token.KindSession, rawToken, false)
	if errors.Is(err, token.ErrRejected) || errors.Is(err, token.ErrExpired) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := m.tokens.Revoke(ctx, rawToken); err != nil {
		return err
	}

	sess, err := m.repo.Find(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.Status == StatusLoggedOut {
		return nil
	}

	sess.Status = StatusLoggedOut
	return m.repo.Update(ctx, sess)
}

// RevokeAll drops every record of clientID and reports how many were
// removed. Outstanding tokens keep validating cryptographically but no
// longer resolve to a record, so authentication fails.
func (m *Manager) RevokeAll(ctx context.Context, clientID string) (int, error) {
	return m.repo.DeleteByClient(ctx, clientID)
}

// Find returns the record with the given ID without touching it.
func (m *Manager) Find(ctx context.Context, id string) (*Session, error) {
	return m.repo.Find(ctx, id)
}
