package pool

import "errors"

const Namespace = "pool"

var (
	ErrSaturated     = errors.New(Namespace + ": queue is full and all workers are busy")
	ErrClosed        = errors.New(Namespace + ": pool is closed")
	ErrInvalidSize   = errors.New(Namespace + ": invalid size")
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
	ErrNilJob        = errors.New(Namespace + ": nil job")
)
