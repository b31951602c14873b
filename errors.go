package merge

import (
	"errors"
	"fmt"
)

const Namespace = "merge"

var (
	ErrInvalidChunkSize = errors.New(Namespace + ": chunk size must be positive")
	ErrInvalidInput     = errors.New(Namespace + ": invalid input")
	ErrInvalidConfig    = errors.New(Namespace + ": invalid configuration")
	ErrUnitPanicked     = errors.New(Namespace + ": unit panicked")
	ErrBatchAborted     = errors.New(Namespace + ": batch aborted")
)

// ComputeError reports an abandoned batch. It is returned as soon as the first failure is seen;
// units still running at that moment are not waited for and their results are dropped.
//
// errors.Is(err, ErrBatchAborted) holds for every ComputeError. Unwrap yields the first failure,
// which is a *UnitError when a unit failed, or the context error when the caller's context ended.
type ComputeError struct {
	// Index of the first failed unit, or -1 when the caller's context ended first.
	Index int
	// Cause is the first captured failure. Later failures only bump Failures.
	Cause error
	// Failures is the number of failures observed before the call returned.
	Failures int
	// Collected is the number of results gathered, then dropped, before the call returned.
	Collected int
	// Total is the batch size.
	Total int
}

func (e *ComputeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", ErrBatchAborted.Error(), e.Cause)
	}
	return fmt.Sprintf("%s: unit %d of %d failed: %v", ErrBatchAborted.Error(), e.Index, e.Total, e.Cause)
}

func (e *ComputeError) Unwrap() error { return e.Cause }

func (e *ComputeError) Is(target error) bool { return target == ErrBatchAborted }
