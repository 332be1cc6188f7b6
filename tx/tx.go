// Package tx provides a small precondition/commit/rollback executor for
// composite operations whose side effects span heterogeneous stores.
//
// This is application-level compensation, not a two-phase commit: it
// gives effective atomicity for the narrow case of a few sequential
// external side effects where the earlier ones are reversible.
package tx

import (
	"context"
	"errors"
	"fmt"
)

// Body describes one compensable unit of work.
//
// Precondition must be free of side effects: any failure there aborts
// the transaction with nothing to undo. Commit applies the side effects
// and is expected to track internally which of them it performed, so
// that Rollback can undo exactly the applied subset when a later step
// of the commit fails.
type Body[T any] interface {
	Precondition(ctx context.Context) error
	Commit(ctx context.Context) (T, error)
	Rollback(ctx context.Context) error
}

// Run executes body. On a precondition failure the error is returned
// with no side effects performed and no rollback attempted. On a commit
// failure Rollback runs exactly once before the commit error is
// returned. Rollback is best-effort: its failure never masks the commit
// error, but is attached to it via errors.Join.
func Run[T any](ctx context.Context, body Body[T]) (T, error) {
	var zero T

	if err := body.Precondition(ctx); err != nil {
		return zero, err
	}

	out, err := body.Commit(ctx)
	if err == nil {
		return out, nil
	}

	if rbErr := body.Rollback(ctx); rbErr != nil {
		err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}

	return zero, err
}

// Func adapts three closures into a [Body]. Nil precondition and
// rollback functions are treated as no-ops.
type Func[T any] struct {
	Pre  func(ctx context.Context) error
	Do   func(ctx context.Context) (T, error)
	Undo func(ctx context.Context) error
}

// Precondition implements [Body].
func (f Func[T]) Precondition(ctx context.Context) error {
	if f.Pre == nil {
		return nil
	}
	return f.Pre(ctx)
}

// Commit implements [Body].
func (f Func[T]) Commit(ctx context.Context) (T, error) {
	return f.Do(ctx)
}

// Rollback implements [Body].
func (f Func[T]) Rollback(ctx context.Context) error {
	if f.Undo == nil {
		return nil
	}
	return f.Undo(ctx)
}
