package pool

import "fmt"

// SaturationPolicy decides what Submit does when the queue is full and no more workers may start.
type SaturationPolicy int

const (
	// Reject makes Submit return ErrSaturated. This is the default.
	Reject SaturationPolicy = iota
	// Block makes Submit wait for queue space, ctx cancellation or Close.
	Block
	// Discard drops the job and returns nil.
	// A caller waiting for the dropped job to report will wait forever unless it bounds the wait itself.
	Discard
)

func (p SaturationPolicy) String() string {
	switch p {
	case Reject:
		return "reject"
	case Block:
		return "block"
	case Discard:
		return "discard"
	default:
		return fmt.Sprintf("SaturationPolicy(%d)", int(p))
	}
}
