package secret

import (
	"context"
	"errors"
	"fmt"

	"github.com/alvidir/rauth-sub001/cache"
)

// Store enforces the secret lifecycle on top of a [Repository]. When a
// secret is rotated or deleted, any cached challenge state keyed to it
// is invalidated so stale one-time codes cannot verify against the old
// material.
//
// Concurrent rotation and verification of the same (owner, kind) is not
// serialized here; callers that need that guarantee must provide it.
type Store struct {
	repo      Repository
	cache     cache.Store
	purgeKeys func(ownerID string) []string
}

// NewStore returns a Store. purgeKeys maps an owner to the cache keys
// holding challenge state derived from that owner's secrets; it may be
// nil when no challenge state exists.
func NewStore(repo Repository, challenges cache.Store, purgeKeys func(ownerID string) []string) (*Store, error) {
	if repo == nil {
		return nil, errors.New("secret repository is required")
	}
	if challenges == nil && purgeKeys != nil {
		return nil, errors.New("challenge cache is required when purge keys are configured")
	}
	return &Store{repo: repo, cache: challenges, purgeKeys: purgeKeys}, nil
}

// Create persists a new secret for (ownerID, kind). It fails with
// ErrAlreadyExists when a live secret for the pair exists.
func (s *Store) Create(ctx context.Context, ownerID string, kind Kind, data []byte) (*Secret, error) {
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	if len(data) == 0 {
		return nil, errors.New("secret data is required")
	}

	created := &Secret{OwnerID: ownerID, Kind: kind, Data: data}
	if err := s.repo.Insert(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// FindByOwnerAndKind returns the live secret for (ownerID, kind), or
// ErrNotFound.
func (s *Store) FindByOwnerAndKind(ctx context.Context, ownerID string, kind Kind) (*Secret, error) {
	return s.repo.FindByOwnerAndKind(ctx, ownerID, kind)
}

// Delete removes the live secret for (ownerID, kind) and invalidates
// any challenge state tied to it.
func (s *Store) Delete(ctx context.Context, ownerID string, kind Kind) error {
	if err := s.repo.Delete(ctx, ownerID, kind); err != nil {
		return err
	}
	return s.invalidateChallenges(ctx, ownerID)
}

// Rotate replaces the secret for (ownerID, kind) with fresh data. The
// old secret is removed first; a missing old secret is not an error, so
// Rotate doubles as create-or-replace. Outstanding challenges against
// the old secret are invalidated.
func (s *Store) Rotate(ctx context.Context, ownerID string, kind Kind, data []byte) (*Secret, error) {
	if err := s.repo.Delete(ctx, ownerID, kind); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rotated, err := s.Create(ctx, ownerID, kind, data)
	if err != nil {
		return nil, err
	}

	if err := s.invalidateChallenges(ctx, ownerID); err != nil {
		return nil, err
	}
	return rotated, nil
}

func (s *Store) invalidateChallenges(ctx context.Context, ownerID string) error {
	if s.purgeKeys == nil {
		return nil
	}
	for _, key := range s.purgeKeys(ownerID) {
		if err := s.cache.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}
