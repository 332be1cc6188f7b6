package session

import (
	"context"
	"sync"
)

// Repository persists session records. Implementations must keep at
// most one record per ID and index records by client for bulk removal.
type Repository interface {
	Insert(ctx context.Context, sess *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
	DeleteByClient(ctx context.Context, clientID string) (int, error)
}

// MemoryRepository is an in-memory [Repository] for tests and embedded
// single-process deployments.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
	byClient map[string]map[string]struct{}
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]Session),
		byClient: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRepository) Insert(_ context.Context, sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return ErrAlreadyExists
	}

	r.sessions[sess.ID] = *sess
	if r.byClient[sess.ClientID] == nil {
		r.byClient[sess.ClientID] = make(map[string]struct{})
	}
	r.byClient[sess.ClientID][sess.ID] = struct{}{}
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (r *MemoryRepository) Update(_ context.Context, sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; !exists {
		return ErrNotFound
	}
	r.sessions[sess.ID] = *sess
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return nil
	}

	delete(r.sessions, id)
	if index := r.byClient[sess.ClientID]; index != nil {
		delete(index, id)
		if len(index) == 0 {
			delete(r.byClient, sess.ClientID)
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteByClient(_ context.Context, clientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.byClient[clientID]
	for id := range index {
		delete(r.sessions, id)
	}
	delete(r.byClient, clientID)
	return len(index), nil
}
