package merge

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/merge/metrics"
	"github.com/ygrebnov/merge/pool"
)

// PartitionedCompute splits source into chunks of chunkSize items, applies fn to every chunk on p,
// and returns one result per chunk in completion order.
//
// A non-positive chunkSize fails with ErrInvalidChunkSize before anything is submitted.
// An empty source returns an empty slice without touching the pool.
// If any chunk fails, the call returns a *ComputeError as soon as the failure is observed.
func PartitionedCompute[T, R any](
	ctx context.Context, p *pool.Pool, fn ChunkFunc[T, R], source []T, chunkSize int, opts ...Option,
) ([]R, error) {
	return partitioned(ctx, p, fn, source, chunkSize, false, opts)
}

// PartitionedComputeInOrder is PartitionedCompute with results in partition order.
func PartitionedComputeInOrder[T, R any](
	ctx context.Context, p *pool.Pool, fn ChunkFunc[T, R], source []T, chunkSize int, opts ...Option,
) ([]R, error) {
	return partitioned(ctx, p, fn, source, chunkSize, true, opts)
}

func partitioned[T, R any](
	ctx context.Context, p *pool.Pool, fn ChunkFunc[T, R], source []T, chunkSize int, inOrder bool, opts []Option,
) ([]R, error) {
	parts, err := Plan(source, chunkSize)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errorc.With(ErrInvalidInput, errorc.String("input", "nil chunk function"))
	}
	return execute(ctx, p, len(parts), inOrder, opts, func(c context.Context, i int) (R, error) {
		return fn(c, parts[i].Items)
	})
}

// ComputeAll runs every task on p and returns their results in completion order.
// The first failing task aborts the batch: tasks not yet started are skipped and the call
// returns a *ComputeError without waiting for tasks still running.
func ComputeAll[R any](ctx context.Context, p *pool.Pool, tasks []Task[R], opts ...Option) ([]R, error) {
	return computeTasks(ctx, p, tasks, false, opts)
}

// ComputeInOrder is ComputeAll with results in the order of tasks.
func ComputeInOrder[R any](ctx context.Context, p *pool.Pool, tasks []Task[R], opts ...Option) ([]R, error) {
	return computeTasks(ctx, p, tasks, true, opts)
}

func computeTasks[R any](
	ctx context.Context, p *pool.Pool, tasks []Task[R], inOrder bool, opts []Option,
) ([]R, error) {
	for i, t := range tasks {
		if t == nil {
			return nil, errorc.With(ErrInvalidInput, errorc.String("nil_task", strconv.Itoa(i)))
		}
	}
	return execute(ctx, p, len(tasks), inOrder, opts, func(c context.Context, i int) (R, error) {
		return tasks[i](c)
	})
}

// RunAll runs every action on p for its side effects. Failure handling matches ComputeAll.
func RunAll(ctx context.Context, p *pool.Pool, actions []Action, opts ...Option) error {
	for i, a := range actions {
		if a == nil {
			return errorc.With(ErrInvalidInput, errorc.String("nil_action", strconv.Itoa(i)))
		}
	}
	_, err := execute(ctx, p, len(actions), false, opts, func(c context.Context, i int) (struct{}, error) {
		return struct{}{}, actions[i](c)
	})
	return err
}

// ResizePool changes the core and maximum worker counts of p. Batches in flight keep running;
// the new sizes apply to scheduling from now on.
func ResizePool(p *pool.Pool, coreSize, maxSize int) error {
	if p == nil {
		return errorc.With(ErrInvalidInput, errorc.String("input", "nil pool"))
	}
	return p.Resize(coreSize, maxSize)
}

// MapEach applies fn to every item sequentially on the calling goroutine.
func MapEach[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}

// execute runs one batch of n units and blocks until it resolves.
func execute[R any](
	ctx context.Context, p *pool.Pool, n int, inOrder bool, opts []Option, unit func(context.Context, int) (R, error),
) ([]R, error) {
	if p == nil {
		return nil, errorc.With(ErrInvalidInput, errorc.String("input", "nil pool"))
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []R{}, nil
	}

	started := cfg.Metrics.Counter(metrics.BatchStarted, metrics.WithDescription("Batches dispatched."))
	failed := cfg.Metrics.Counter(metrics.BatchFailed, metrics.WithDescription("Batches aborted."))
	duration := cfg.Metrics.Histogram(
		metrics.BatchDuration,
		metrics.WithDescription("Time from dispatch until a batch resolves."),
		metrics.WithUnit("seconds"),
	)

	bctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	results := newCollector[R](n, inOrder)
	t := newTracker(n, cancel)
	d := newDispatcher(p, t, cfg)

	start := time.Now()
	started.Add(1)

	d.dispatch(bctx, n, func(c context.Context, i int) error {
		r, err := call(c, func(c context.Context) (R, error) { return unit(c, i) })
		if err != nil {
			return err
		}
		results.add(i, r)
		return nil
	})

	state := t.wait(ctx)
	duration.Record(time.Since(start).Seconds())

	if state == stateFailed {
		failed.Add(1)
		cerr := t.err(results.len())
		cfg.Logger.Debug("batch aborted",
			slog.Int("units", n),
			slog.Int("failed_unit", cerr.Index),
			slog.Int("collected", cerr.Collected),
			slog.String("cause", cerr.Cause.Error()),
		)
		return nil, cerr
	}
	return results.results(), nil
}
