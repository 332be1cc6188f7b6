// Package session tracks the server-side record behind each issued
// session token. The token proves possession; the record decides
// whether the session is still live.
package session

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a session record.
type Status string

const (
	// StatusNew marks a record built but not yet activated. Records
	// turn Active before they reach the repository.
	StatusNew Status = "new"
	// StatusActive marks a session that authenticates requests.
	StatusActive Status = "active"
	// StatusLoggedOut marks a session ended by its owner. The record is
	// retained until its deadline passes.
	StatusLoggedOut Status = "logged_out"
	// StatusExpired marks a session seen after its deadline.
	StatusExpired Status = "expired"
)

var (
	// ErrNotFound is returned when no record exists for a session ID.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned when a record with the same ID is
	// already stored.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrExpired is returned when the session deadline has passed.
	ErrExpired = errors.New("session expired")
	// ErrRevoked is returned when the session was logged out.
	ErrRevoked = errors.New("session revoked")
	// ErrUnavailable is returned when the backing store cannot be
	// reached.
	ErrUnavailable = errors.New("session backend unavailable")
)

// Session is the record behind one issued session token. ID equals the
// token's unique identifier, so a verified token maps straight to its
// record. Deadline is fixed at creation; activity never extends it.
type Session struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	TouchAt   time.Time `json:"touch_at"`
	Deadline  time.Time `json:"deadline"`
}

// ExpiredAt reports whether the deadline has passed at the given time.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.Deadline)
}
