package merge

import (
	"slices"
	"sync"
)

// collector gathers unit results for one batch. add is called concurrently from pool workers.
type collector[R any] interface {
	add(index int, result R)
	len() int
	results() []R
}

func newCollector[R any](n int, inOrder bool) collector[R] {
	if inOrder {
		return &orderedCollector[R]{items: make([]indexed[R], 0, n)}
	}
	return &arrivalCollector[R]{items: make([]R, 0, n)}
}

// arrivalCollector keeps results in completion order.
type arrivalCollector[R any] struct {
	mu    sync.Mutex
	items []R
}

func (c *arrivalCollector[R]) add(_ int, result R) {
	c.mu.Lock()
	c.items = append(c.items, result)
	c.mu.Unlock()
}

func (c *arrivalCollector[R]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *arrivalCollector[R]) results() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// indexed tags a result with the index of the unit that produced it.
type indexed[R any] struct {
	index int
	val   R
}

// orderedCollector restores input order: results are tagged on arrival and sorted by index
// when the batch completes.
type orderedCollector[R any] struct {
	mu    sync.Mutex
	items []indexed[R]
}

func (c *orderedCollector[R]) add(index int, result R) {
	c.mu.Lock()
	c.items = append(c.items, indexed[R]{index: index, val: result})
	c.mu.Unlock()
}

func (c *orderedCollector[R]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *orderedCollector[R]) results() []R {
	c.mu.Lock()
	items := slices.Clone(c.items)
	c.mu.Unlock()

	slices.SortFunc(items, func(a, b indexed[R]) int { return a.index - b.index })

	out := make([]R, len(items))
	for i, it := range items {
		out[i] = it.val
	}
	return out
}
