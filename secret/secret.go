// Package secret manages per-owner secret material (TOTP seeds, public
// key bytes) behind a storage-agnostic repository, and provides a
// threshold secret-sharing utility for recoverable secrets.
package secret

import (
	"errors"
	"time"
)

// Kind identifies what a secret's opaque data is used for.
type Kind string

const (
	// KindTotp is the shared seed of an authenticator-app TOTP.
	KindTotp Kind = "totp"
	// KindPublicKey is the raw bytes of an asymmetric public key.
	KindPublicKey Kind = "public_key"
	// KindSalt is a per-owner salt retained for credential derivation.
	KindSalt Kind = "salt"
)

var (
	// ErrNotFound is returned when no live secret exists for the
	// requested owner and kind.
	ErrNotFound = errors.New("secret not found")
	// ErrAlreadyExists is returned when a live secret for the same owner
	// and kind already exists.
	ErrAlreadyExists = errors.New("secret already exists")
	// ErrUnavailable is returned when the backing repository cannot be
	// reached.
	ErrUnavailable = errors.New("secret backend unavailable")
)

// Secret is some sensitive, read-only data owned by a single subject.
// At most one live Secret exists per (OwnerID, Kind).
type Secret struct {
	ID        string
	OwnerID   string
	Kind      Kind
	Data      []byte
	CreatedAt time.Time
}
