package merge_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ygrebnov/merge"
	"github.com/ygrebnov/merge/metrics"
	"github.com/ygrebnov/merge/pool"
)

func newPool(t *testing.T, opts ...pool.Option) *pool.Pool {
	t.Helper()
	p, err := pool.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func sum(_ context.Context, items []int) (int, error) {
	s := 0
	for _, v := range items {
		s += v
	}
	return s, nil
}

func oneToTen() []int { return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} }

func indexTasks(n int) []merge.Task[int] {
	tasks := make([]merge.Task[int], n)
	for i := range tasks {
		tasks[i] = merge.TaskValue(func(context.Context) int { return i })
	}
	return tasks
}

func TestPartitionedCompute_Sum(t *testing.T) {
	p := newPool(t, pool.WithSize(4, 4))
	ctx := context.Background()

	ordered, err := merge.PartitionedComputeInOrder(ctx, p, sum, oneToTen(), 3)
	require.NoError(t, err)
	require.Equal(t, []int{6, 15, 24, 10}, ordered)

	arrival, err := merge.PartitionedCompute(ctx, p, sum, oneToTen(), 3)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{6, 15, 24, 10}, arrival)
}

func TestPartitionedCompute_ChunkSizes(t *testing.T) {
	p := newPool(t, pool.WithSize(4, 4))
	src := make([]string, 23)
	for i := range src {
		src[i] = strconv.Itoa(i)
	}

	for _, depth := range []int{1, 2, 5, 22, 23, 24, 100} {
		t.Run(strconv.Itoa(depth), func(t *testing.T) {
			got, err := merge.PartitionedComputeInOrder(context.Background(), p,
				func(_ context.Context, items []string) ([]string, error) { return items, nil },
				src, depth)
			require.NoError(t, err)

			var flat []string
			for i, chunk := range got {
				if i < len(got)-1 {
					require.Len(t, chunk, depth)
				}
				flat = append(flat, chunk...)
			}
			require.Equal(t, src, flat)
		})
	}
}

func TestPartitionedCompute_InvalidInput(t *testing.T) {
	p := newPool(t)
	ctx := context.Background()

	for _, size := range []int{0, -1} {
		_, err := merge.PartitionedCompute(ctx, p, sum, oneToTen(), size)
		require.ErrorIs(t, err, merge.ErrInvalidChunkSize)
	}

	// chunk size is checked before the source is looked at
	_, err := merge.PartitionedCompute(ctx, p, sum, nil, 0)
	require.ErrorIs(t, err, merge.ErrInvalidChunkSize)

	_, err = merge.PartitionedCompute[int, int](ctx, p, nil, oneToTen(), 3)
	require.ErrorIs(t, err, merge.ErrInvalidInput)

	_, err = merge.PartitionedCompute(ctx, nil, sum, oneToTen(), 3)
	require.ErrorIs(t, err, merge.ErrInvalidInput)

	_, err = merge.PartitionedCompute(ctx, p, sum, oneToTen(), 3, merge.WithMaxInFlight(0))
	require.ErrorIs(t, err, merge.ErrInvalidConfig)

	require.Zero(t, p.Stats().Submitted, "validation never reaches the pool")
}

func TestPartitionedCompute_EmptySource(t *testing.T) {
	p := newPool(t)

	got, err := merge.PartitionedCompute(context.Background(), p, sum, []int{}, 4)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	got, err = merge.ComputeInOrder[int](context.Background(), p, nil)
	require.NoError(t, err)
	require.Empty(t, got)

	require.Zero(t, p.Stats().Submitted)
}

func TestComputeInOrder_KeepsInputOrder(t *testing.T) {
	p := newPool(t, pool.WithSize(8, 8))

	const n = 500
	got, err := merge.ComputeInOrder(context.Background(), p, indexTasks(n))
	require.NoError(t, err)

	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, got)
}

func TestComputeAll_ArrivalOrder(t *testing.T) {
	p := newPool(t, pool.WithSize(2, 2))

	// the first task finishes last, so arrival order differs from input order
	tasks := []merge.Task[string]{
		merge.TaskValue(func(context.Context) string { time.Sleep(100 * time.Millisecond); return "slow" }),
		merge.TaskValue(func(context.Context) string { return "fast" }),
	}

	got, err := merge.ComputeAll(context.Background(), p, tasks)
	require.NoError(t, err)
	require.Equal(t, []string{"fast", "slow"}, got)
}

func TestComputeAll_FailureReported(t *testing.T) {
	p := newPool(t, pool.WithSize(1, 1))

	var ran atomic.Int64
	tasks := make([]merge.Task[int], 5)
	for i := range tasks {
		tasks[i] = merge.TaskFunc(func(context.Context) (int, error) {
			ran.Add(1)
			if i == 3 {
				return 0, errors.New("boom")
			}
			return i, nil
		})
	}

	got, err := merge.ComputeInOrder(context.Background(), p, tasks)
	require.Nil(t, got)
	require.ErrorContains(t, err, "boom")
	require.ErrorIs(t, err, merge.ErrBatchAborted)

	var cerr *merge.ComputeError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, 3, cerr.Index)
	require.Equal(t, 5, cerr.Total)
	require.Equal(t, 1, cerr.Failures)
	require.Less(t, cerr.Collected, 5)

	idx, ok := merge.ExtractUnitIndex(err)
	require.True(t, ok)
	require.Equal(t, 3, idx)

	// a single worker runs units in order; unit 4 is skipped once unit 3 failed
	require.Eventually(t, func() bool { return p.Stats().Active == 0 && p.Stats().Queued == 0 }, time.Second, time.Millisecond)
	require.EqualValues(t, 4, ran.Load())
}

func TestComputeAll_FailsFast(t *testing.T) {
	p := newPool(t, pool.WithSize(4, 4))

	var (
		cancelled atomic.Int64
		started   sync.WaitGroup
	)
	started.Add(3)
	tasks := make([]merge.Task[int], 4)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			if i == 3 {
				started.Wait()
				return 0, errors.New("boom")
			}
			started.Done()
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				cancelled.Add(1)
			}
			return i, nil
		}
	}

	start := time.Now()
	_, err := merge.ComputeAll(context.Background(), p, tasks)
	require.ErrorContains(t, err, "boom")
	require.Less(t, time.Since(start), 500*time.Millisecond, "the call must not wait for stragglers")

	// running units observe the cancelled batch context
	require.Eventually(t, func() bool { return cancelled.Load() == 3 }, time.Second, time.Millisecond)
}

func TestComputeAll_FirstFailureWins(t *testing.T) {
	p := newPool(t, pool.WithSize(8, 8))

	const n = 64
	tasks := make([]merge.Task[int], n)
	for i := range tasks {
		tasks[i] = merge.TaskFunc(func(context.Context) (int, error) {
			return 0, fmt.Errorf("unit %d", i)
		})
	}

	_, err := merge.ComputeAll(context.Background(), p, tasks)
	var cerr *merge.ComputeError
	require.ErrorAs(t, err, &cerr)
	require.GreaterOrEqual(t, cerr.Failures, 1)
	require.EqualError(t, cerr.Cause, fmt.Sprintf("unit %d", cerr.Index))
}

func TestComputeAll_PanicIsFailure(t *testing.T) {
	p := newPool(t, pool.WithSize(2, 2))

	tasks := []merge.Task[int]{
		merge.TaskValue(func(context.Context) int { return 1 }),
		merge.TaskValue(func(context.Context) int { panic("kaboom") }),
	}

	_, err := merge.ComputeAll(context.Background(), p, tasks)
	require.ErrorIs(t, err, merge.ErrUnitPanicked)
	require.ErrorContains(t, err, "kaboom")

	// the worker survived
	got, err := merge.ComputeInOrder(context.Background(), p, indexTasks(3))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, got)
}

func TestComputeAll_NilTask(t *testing.T) {
	p := newPool(t)
	_, err := merge.ComputeAll(context.Background(), p, []merge.Task[int]{nil})
	require.ErrorIs(t, err, merge.ErrInvalidInput)
}

func TestComputeAll_RejectSaturated(t *testing.T) {
	p := newPool(t, pool.WithSize(1, 1), pool.WithQueueCapacity(2))

	release := make(chan struct{})
	defer close(release)
	tasks := make([]merge.Task[int], 10)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) { <-release; return i, nil }
	}

	start := time.Now()
	_, err := merge.ComputeAll(context.Background(), p, tasks)
	require.ErrorIs(t, err, pool.ErrSaturated)
	require.ErrorIs(t, err, merge.ErrBatchAborted)
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.EqualValues(t, 1, p.Stats().Rejected)
}

func TestComputeAll_DiscardStallsUntilDeadline(t *testing.T) {
	p := newPool(t, pool.WithSize(1, 1), pool.WithQueueCapacity(1), pool.WithSaturationPolicy(pool.Discard))

	release := make(chan struct{})
	defer close(release)
	tasks := make([]merge.Task[int], 5)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) { <-release; return i, nil }
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := merge.ComputeAll(ctx, p, tasks)
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "dropped units never report")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var cerr *merge.ComputeError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, -1, cerr.Index)
	// at most one unit runs and one waits in the queue
	require.GreaterOrEqual(t, p.Stats().Discarded, int64(3))
}

func TestComputeAll_BlockWaitsForRoom(t *testing.T) {
	p := newPool(t, pool.WithSize(1, 1), pool.WithQueueCapacity(1), pool.WithSaturationPolicy(pool.Block))

	got, err := merge.ComputeInOrder(context.Background(), p, indexTasks(50))
	require.NoError(t, err)
	require.Len(t, got, 50)
	require.Equal(t, 49, got[49])
}

func TestComputeAll_MaxInFlight(t *testing.T) {
	p := newPool(t, pool.WithSize(8, 8))

	var cur, peak atomic.Int64
	tasks := make([]merge.Task[int], 30)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) {
			c := cur.Add(1)
			defer cur.Add(-1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			return i, nil
		}
	}

	got, err := merge.ComputeInOrder(context.Background(), p, tasks, merge.WithMaxInFlight(3))
	require.NoError(t, err)
	require.Len(t, got, 30)
	require.LessOrEqual(t, peak.Load(), int64(3))
}

func TestRunAll(t *testing.T) {
	p := newPool(t, pool.WithSize(4, 4))

	var mu sync.Mutex
	seen := map[int]bool{}
	actions := make([]merge.Action, 20)
	for i := range actions {
		actions[i] = func(context.Context) error {
			mu.Lock()
			seen[i] = true
			mu.Unlock()
			return nil
		}
	}
	require.NoError(t, merge.RunAll(context.Background(), p, actions))
	require.Len(t, seen, 20)

	actions[7] = func(context.Context) error { return errors.New("write failed") }
	err := merge.RunAll(context.Background(), p, actions)
	require.ErrorContains(t, err, "write failed")
	idx, ok := merge.ExtractUnitIndex(err)
	require.True(t, ok)
	require.Equal(t, 7, idx)

	actions[3] = nil
	require.ErrorIs(t, merge.RunAll(context.Background(), p, actions), merge.ErrInvalidInput)
}

func TestResizePool(t *testing.T) {
	p := newPool(t, pool.WithSize(2, 2))
	ctx := context.Background()

	before, err := merge.PartitionedComputeInOrder(ctx, p, sum, oneToTen(), 3)
	require.NoError(t, err)

	require.NoError(t, merge.ResizePool(p, 5, 10))
	s := p.Stats()
	require.Equal(t, 5, s.Core)
	require.Equal(t, 10, s.Max)

	after, err := merge.PartitionedComputeInOrder(ctx, p, sum, oneToTen(), 3)
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.ErrorIs(t, merge.ResizePool(p, 3, 2), pool.ErrInvalidSize)
	require.ErrorIs(t, merge.ResizePool(nil, 1, 1), merge.ErrInvalidInput)
}

func TestInvalidInput_Fields(t *testing.T) {
	ctx := context.Background()

	require.EqualError(t, merge.ResizePool(nil, 1, 1), "merge: invalid input, input: nil pool")

	_, err := merge.ComputeAll[int](ctx, nil, nil)
	require.EqualError(t, err, "merge: invalid input, input: nil pool")

	p := newPool(t)
	_, err = merge.PartitionedCompute[int, int](ctx, p, nil, oneToTen(), 3)
	require.EqualError(t, err, "merge: invalid input, input: nil chunk function")
}

func TestResizePool_DuringBatches(t *testing.T) {
	p := newPool(t, pool.WithSize(2, 4))

	src := make([]int, 1000)
	want := 0
	for i := range src {
		src[i] = i
		want += i
	}

	var g errgroup.Group
	for b := 0; b < 8; b++ {
		g.Go(func() error {
			got, err := merge.PartitionedCompute(context.Background(), p, sum, src, 7)
			if err != nil {
				return err
			}
			total := 0
			for _, v := range got {
				total += v
			}
			if total != want {
				return fmt.Errorf("batch %d: got %d, want %d", b, total, want)
			}
			return nil
		})
	}
	g.Go(func() error {
		for _, size := range [][2]int{{1, 1}, {6, 8}, {0, 2}, {3, 3}} {
			if err := merge.ResizePool(p, size[0], size[1]); err != nil {
				return err
			}
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	require.NoError(t, g.Wait())
}

func TestMapEach(t *testing.T) {
	got := merge.MapEach([]int{1, 2, 3}, strconv.Itoa)
	require.Equal(t, []string{"1", "2", "3"}, got)
	require.Empty(t, merge.MapEach(nil, strconv.Itoa))
}

func TestCompute_MetricsAndLogging(t *testing.T) {
	p := newPool(t, pool.WithSize(2, 2))
	mp := metrics.NewBasicProvider()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := merge.ComputeAll(context.Background(), p, indexTasks(4), merge.WithMetrics(mp), merge.WithLogger(logger))
	require.NoError(t, err)

	_, err = merge.ComputeAll(context.Background(), p, []merge.Task[int]{
		merge.TaskFunc(func(context.Context) (int, error) { return 0, errors.New("boom") }),
	}, merge.WithMetrics(mp), merge.WithLogger(logger))
	require.Error(t, err)

	require.EqualValues(t, 2, mp.CounterValue(metrics.BatchStarted))
	require.EqualValues(t, 1, mp.CounterValue(metrics.BatchFailed))
	require.EqualValues(t, 2, mp.HistogramSnapshot(metrics.BatchDuration).Count)

	require.Contains(t, buf.String(), "batch aborted")
	require.Contains(t, buf.String(), "cause=boom")
}
