// Package merge runs map/reduce style batches on a shared worker pool.
//
// A batch is either a slice split into fixed-size chunks (PartitionedCompute) or a set of
// independent tasks (ComputeAll, ComputeInOrder, RunAll). Every unit of the batch is submitted
// to a *pool.Pool owned by the host application; the calling goroutine blocks until the batch
// resolves.
//
// Ordering
//   - PartitionedCompute and ComputeAll return results in completion order.
//   - PartitionedComputeInOrder and ComputeInOrder return results in input order.
//
// Failure
// The first unit error (or panic) aborts the batch. Units that have not started yet are skipped;
// units already running are not interrupted, but the context passed to them is cancelled. The call
// returns a *ComputeError right away, without waiting for running units, and drops every result
// gathered so far. When several units fail concurrently, the first one recorded wins.
//
// Saturation
// What happens when the pool cannot take a unit depends on its SaturationPolicy. With the default
// pool.Reject the batch fails with pool.ErrSaturated. With pool.Block dispatch waits for room.
// With pool.Discard the unit is dropped silently and never reports back, so the batch can only end
// through its context: always pass a context with a deadline when using a discarding pool.
//
// There is no overall deadline besides the caller's context. A unit that never returns keeps its
// batch waiting.
package merge
