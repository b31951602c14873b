package merge

import (
	"context"
	"fmt"
)

// Task is a unit of work producing a result of type R.
// The context is cancelled once its batch is aborted; a task may watch it to stop early,
// but it is never interrupted.
type Task[R any] func(context.Context) (R, error)

// TaskFunc adapts func(ctx) (R, error) to Task[R].
func TaskFunc[R any](fn func(context.Context) (R, error)) Task[R] { return Task[R](fn) }

// TaskValue adapts an infallible func(ctx) R to Task[R].
func TaskValue[R any](fn func(context.Context) R) Task[R] {
	return func(ctx context.Context) (R, error) { return fn(ctx), nil }
}

// Action is a side-effecting unit of work with no result.
type Action func(context.Context) error

// ChunkFunc reduces one partition of the source to a single result.
// The slice must be treated as read-only; it aliases the caller's source.
type ChunkFunc[T, R any] func(context.Context, []T) (R, error)

// call runs fn, turning a panic into an error wrapping ErrUnitPanicked.
func call[R any](ctx context.Context, fn func(context.Context) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result, err = zero, fmt.Errorf("%w: %v", ErrUnitPanicked, r)
		}
	}()
	return fn(ctx)
}
