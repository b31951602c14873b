package merge

import (
	"context"
	"sync/atomic"
)

type batchState int

const (
	stateRunning batchState = iota
	stateSucceeded
	stateFailed
)

func (s batchState) String() string {
	switch s {
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "running"
	}
}

type failure struct {
	index int
	err   error
}

// tracker is the shared completion state of one batch.
//
// Every unit reports exactly once through succeed, fail or skip, each of which decrements
// remaining; the last decrement closes done. The first fail stores the failure slot (first write
// wins), sets aborted and closes abort, and cancels the batch context. aborted never reverts.
type tracker struct {
	total     int
	remaining atomic.Int64
	aborted   atomic.Bool
	first     atomic.Pointer[failure]
	failures  atomic.Int64
	skipped   atomic.Int64

	done   chan struct{}
	abort  chan struct{}
	cancel context.CancelCauseFunc
}

func newTracker(n int, cancel context.CancelCauseFunc) *tracker {
	t := &tracker{
		total:  n,
		done:   make(chan struct{}),
		abort:  make(chan struct{}),
		cancel: cancel,
	}
	t.remaining.Store(int64(n))
	if n == 0 {
		close(t.done)
	}
	return t
}

// stopped reports whether the batch was aborted. Units check it before running.
func (t *tracker) stopped() bool { return t.aborted.Load() }

func (t *tracker) succeed() { t.countDown() }

func (t *tracker) skip() {
	t.skipped.Add(1)
	t.countDown()
}

func (t *tracker) fail(index int, err error) {
	t.failures.Add(1)
	t.trip(index, err)
	t.countDown()
}

// trip records the failure if it is the first one and aborts the batch. It does not count down.
func (t *tracker) trip(index int, err error) {
	// the slot is written before abort is closed, so a woken waiter always finds it set
	t.first.CompareAndSwap(nil, &failure{index: index, err: err})
	if t.aborted.CompareAndSwap(false, true) {
		close(t.abort)
		if t.cancel != nil {
			t.cancel(ErrBatchAborted)
		}
	}
}

func (t *tracker) countDown() {
	if t.remaining.Add(-1) == 0 {
		close(t.done)
	}
}

// wait blocks until every unit reported, the batch aborted, or ctx ended.
// An aborted batch is reported as failed at once, without waiting for units still running.
// Ending ctx aborts the batch.
func (t *tracker) wait(ctx context.Context) batchState {
	select {
	case <-t.abort:
		return stateFailed
	case <-t.done:
		if t.aborted.Load() {
			return stateFailed
		}
		return stateSucceeded
	case <-ctx.Done():
		t.trip(-1, context.Cause(ctx))
		return stateFailed
	}
}

// err builds the error returned for a failed batch. collected is the size of the dropped results.
func (t *tracker) err(collected int) *ComputeError {
	f := t.first.Load()
	return &ComputeError{
		Index:     f.index,
		Cause:     f.err,
		Failures:  int(t.failures.Load()),
		Collected: collected,
		Total:     t.total,
	}
}
