package merge

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/ygrebnov/merge/metrics"
	"github.com/ygrebnov/merge/pool"
)

// dispatcher submits the units of one batch to the pool in index order.
//
// Each submitted job checks the abort flag on entry and reports to the tracker exactly once,
// whether it ran, failed or was skipped. Units that never reach the pool (submission failed,
// batch aborted or caller context ended during dispatch) are reported as skipped by the
// dispatcher itself, so the tracker always counts down to zero. The only exception is a pool
// using the Discard policy: a dropped job never reports.
type dispatcher struct {
	pool    *pool.Pool
	tracker *tracker
	sem     *semaphore.Weighted // nil when the batch has no in-flight cap
	skipped metrics.Counter
}

func newDispatcher(p *pool.Pool, t *tracker, cfg config) *dispatcher {
	d := &dispatcher{
		pool:    p,
		tracker: t,
		skipped: cfg.Metrics.Counter(metrics.UnitsSkipped, metrics.WithDescription("Units skipped after an abort.")),
	}
	if cfg.MaxInFlight > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	return d
}

// dispatch submits units 0..n-1. unit runs the caller logic of index i and returns its error.
// ctx is the batch context: cancelled when the batch aborts or the caller's context ends.
func (d *dispatcher) dispatch(ctx context.Context, n int, unit func(context.Context, int) error) {
	for i := 0; i < n; i++ {
		if d.tracker.stopped() {
			d.skipFrom(i, n)
			return
		}
		if ctx.Err() != nil {
			d.stop(ctx, i, n)
			return
		}

		if d.sem != nil {
			if err := d.sem.Acquire(ctx, 1); err != nil {
				d.stop(ctx, i, n)
				return
			}
		}

		idx := i
		err := d.pool.Submit(ctx, func() { d.execute(ctx, idx, unit) })
		if err == nil {
			continue
		}

		d.release()
		if ctx.Err() != nil && !errors.Is(err, pool.ErrSaturated) {
			// aborted or cancelled while waiting for room
			d.stop(ctx, i, n)
			return
		}
		d.tracker.fail(i, newUnitError(fmt.Errorf("submit: %w", err), i))
		d.skipFrom(i+1, n)
		return
	}
}

// execute is the job body run on a pool worker.
func (d *dispatcher) execute(ctx context.Context, i int, unit func(context.Context, int) error) {
	defer d.release()

	if d.tracker.stopped() {
		d.skipped.Add(1)
		d.tracker.skip()
		return
	}
	if err := unit(ctx, i); err != nil {
		d.tracker.fail(i, newUnitError(err, i))
		return
	}
	d.tracker.succeed()
}

// stop ends dispatch because ctx is done. The batch is aborted with the context cause unless it
// already failed, so skipping the rest cannot be mistaken for success.
func (d *dispatcher) stop(ctx context.Context, from, n int) {
	d.tracker.trip(-1, context.Cause(ctx))
	d.skipFrom(from, n)
}

// skipFrom reports units from..n-1 as skipped without submitting them.
func (d *dispatcher) skipFrom(from, n int) {
	if from >= n {
		return
	}
	d.skipped.Add(int64(n - from))
	for i := from; i < n; i++ {
		d.tracker.skip()
	}
}

func (d *dispatcher) release() {
	if d.sem != nil {
		d.sem.Release(1)
	}
}
