package merge

import (
	"strconv"

	"github.com/ygrebnov/errorc"
)

// Partition is a contiguous window [Low, High) of a source slice.
type Partition[T any] struct {
	Index int
	Low   int
	High  int
	// Items aliases source[Low:High]. Its capacity is capped at its length,
	// so appending to it never writes into the neighbouring partition.
	Items []T
}

// Plan splits source into ceil(len/depth) contiguous partitions of depth items each;
// the last one may be shorter. An empty source yields no partitions.
// depth must be positive.
func Plan[T any](source []T, depth int) ([]Partition[T], error) {
	if depth <= 0 {
		return nil, errorc.With(ErrInvalidChunkSize, errorc.String("chunk_size", strconv.Itoa(depth)))
	}

	n := len(source) / depth
	if len(source)%depth != 0 {
		n++
	}

	parts := make([]Partition[T], 0, n)
	for i := 0; i < n; i++ {
		low := i * depth
		high := min(low+depth, len(source))
		parts = append(parts, Partition[T]{Index: i, Low: low, High: high, Items: source[low:high:high]})
	}
	return parts, nil
}
