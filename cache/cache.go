// Package cache defines the key/value store contract the authentication
// core relies on for replay prevention and challenge state, together
// with its Redis implementation.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested key does not exist or has expired.
var ErrNotFound = errors.New("cache entry not found")

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("cache unavailable")

// Store is a general purpose cache with per-key TTLs.
//
// SetIfAbsent and Incr must be atomic: two concurrent SetIfAbsent calls
// for the same absent key must not both report stored, and concurrent
// Incr calls must never lose an increment. Replay prevention and OTP
// attempt tracking depend on these two guarantees.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL stores value under key, replacing any previous value.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent stores value under key only if the key does not exist.
	// It reports whether the value was stored.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Incr atomically increments the counter stored under key and returns
	// the new value. The TTL is applied when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
