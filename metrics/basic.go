package metrics

import (
	"sync"
	"sync/atomic"
)

// BasicProvider keeps instrument values in memory.
// It is safe for concurrent use and intended for tests and small deployments.
type BasicProvider struct {
	counters   *registry[*BasicCounter]
	updowns    *registry[*BasicUpDownCounter]
	histograms *registry[*BasicHistogram]
}

// NewBasicProvider constructs an empty BasicProvider.
func NewBasicProvider() *BasicProvider {
	return &BasicProvider{
		counters:   newRegistry(func() *BasicCounter { return &BasicCounter{} }),
		updowns:    newRegistry(func() *BasicUpDownCounter { return &BasicUpDownCounter{} }),
		histograms: newRegistry(func() *BasicHistogram { return &BasicHistogram{} }),
	}
}

func (p *BasicProvider) Counter(name string, _ ...InstrumentOption) Counter {
	return p.counters.get(name)
}

func (p *BasicProvider) UpDownCounter(name string, _ ...InstrumentOption) UpDownCounter {
	return p.updowns.get(name)
}

func (p *BasicProvider) Histogram(name string, _ ...InstrumentOption) Histogram {
	return p.histograms.get(name)
}

// CounterValue returns the current value of the named counter, or 0 if it was never created.
func (p *BasicProvider) CounterValue(name string) int64 {
	if c, ok := p.counters.lookup(name); ok {
		return c.Snapshot()
	}
	return 0
}

// UpDownValue returns the current value of the named up/down counter, or 0.
func (p *BasicProvider) UpDownValue(name string) int64 {
	if u, ok := p.updowns.lookup(name); ok {
		return u.Snapshot()
	}
	return 0
}

// HistogramSnapshot returns the named histogram state, or a zero snapshot.
func (p *BasicProvider) HistogramSnapshot(name string) HistSnapshot {
	if h, ok := p.histograms.lookup(name); ok {
		return h.Snapshot()
	}
	return HistSnapshot{}
}

// registry creates instruments once per name.
type registry[I any] struct {
	mu    sync.RWMutex
	items map[string]I
	newFn func() I
}

func newRegistry[I any](newFn func() I) *registry[I] {
	return &registry[I]{items: make(map[string]I), newFn: newFn}
}

func (r *registry[I]) lookup(name string) (I, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.items[name]
	return i, ok
}

func (r *registry[I]) get(name string) I {
	if i, ok := r.lookup(name); ok {
		return i
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.items[name]; ok {
		return i
	}
	i := r.newFn()
	r.items[name] = i
	return i
}

// BasicCounter is a monotonic counter.
type BasicCounter struct{ val atomic.Int64 }

func (c *BasicCounter) Add(n int64)     { c.val.Add(n) }
func (c *BasicCounter) Snapshot() int64 { return c.val.Load() }

// BasicUpDownCounter is a counter that can go down.
type BasicUpDownCounter struct{ val atomic.Int64 }

func (u *BasicUpDownCounter) Add(n int64)     { u.val.Add(n) }
func (u *BasicUpDownCounter) Snapshot() int64 { return u.val.Load() }

// BasicHistogram tracks count, sum, min and max. It keeps no buckets.
type BasicHistogram struct {
	mu   sync.Mutex
	snap HistSnapshot
}

// HistSnapshot is a copy of a BasicHistogram state.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// Mean returns Sum/Count, or 0 for an empty snapshot.
func (s HistSnapshot) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

func (h *BasicHistogram) Record(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.snap.Count == 0 || v < h.snap.Min {
		h.snap.Min = v
	}
	if h.snap.Count == 0 || v > h.snap.Max {
		h.snap.Max = v
	}
	h.snap.Count++
	h.snap.Sum += v
}

func (h *BasicHistogram) Snapshot() HistSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}
