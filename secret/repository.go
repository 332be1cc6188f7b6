package secret

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for secrets. Implementations
// return the package's domain errors, never storage-specific ones, and
// must enforce the (owner, kind) uniqueness invariant on Insert.
type Repository interface {
	FindByOwnerAndKind(ctx context.Context, ownerID string, kind Kind) (*Secret, error)
	Insert(ctx context.Context, secret *Secret) error
	Delete(ctx context.Context, ownerID string, kind Kind) error
}

// MemoryRepository is an in-memory [Repository], suitable as a test
// double and for single-process deployments.
type MemoryRepository struct {
	mu      sync.RWMutex
	secrets map[memoryKey]*Secret
}

type memoryKey struct {
	owner string
	kind  Kind
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{secrets: make(map[memoryKey]*Secret)}
}

// FindByOwnerAndKind implements [Repository].
func (r *MemoryRepository) FindByOwnerAndKind(_ context.Context, ownerID string, kind Kind) (*Secret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.secrets[memoryKey{owner: ownerID, kind: kind}]
	if !ok {
		return nil, ErrNotFound
	}

	out := *stored
	out.Data = append([]byte(nil), stored.Data...)
	return &out, nil
}

// Insert implements [Repository]. It assigns the secret's ID and
// creation time and fails with ErrAlreadyExists on a duplicate
// (owner, kind) pair.
func (r *MemoryRepository) Insert(_ context.Context, secret *Secret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey{owner: secret.OwnerID, kind: secret.Kind}
	if _, ok := r.secrets[key]; ok {
		return ErrAlreadyExists
	}

	if secret.ID == "" {
		secret.ID = uuid.NewString()
	}
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = time.Now()
	}

	stored := *secret
	stored.Data = append([]byte(nil), secret.Data...)
	r.secrets[key] = &stored
	return nil
}

// Delete implements [Repository]. Deleting an absent secret returns
// ErrNotFound.
func (r *MemoryRepository) Delete(_ context.Context, ownerID string, kind Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey{owner: ownerID, kind: kind}
	if _, ok := r.secrets[key]; !ok {
		return ErrNotFound
	}

	delete(r.secrets, key)
	return nil
}
