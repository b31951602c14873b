// Package pool provides a bounded, resizable pool of worker goroutines fed by a bounded queue.
//
// A Pool is meant to be created once by the host application and shared by every caller
// that needs parallel execution. Core workers are started by New and stay alive while idle;
// workers above the core size start only when the queue is full and retire after KeepAlive.
// What happens when the queue is full and the maximum number of workers is busy is decided
// by the SaturationPolicy.
package pool

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/merge/metrics"
)

// Pool executes submitted jobs on a bounded set of worker goroutines.
// Methods are safe for concurrent use.
type Pool struct {
	cfg   config
	queue chan func()
	log   *slog.Logger

	// sizing; guarded by sizeMu
	sizeMu  sync.Mutex
	core    int
	max     int
	live    int
	resized chan struct{} // closed and replaced by Resize to wake idle workers

	// gate orders Submit/Resize against Close: both hold it for reading, Close for writing.
	gate      sync.RWMutex
	closed    bool
	quit      chan struct{} // closed first by Close
	sealed    chan struct{} // closed once no Submit can enqueue anymore
	closeOnce sync.Once
	workers   sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	active    atomic.Int64
	submitted atomic.Int64
	rejected  atomic.Int64
	discarded atomic.Int64

	inst instruments
}

type instruments struct {
	submitted metrics.Counter
	rejected  metrics.Counter
	discarded metrics.Counter
	panics    metrics.Counter
	queued    metrics.UpDownCounter
	workers   metrics.UpDownCounter
	duration  metrics.Histogram
}

func newInstruments(p metrics.Provider) instruments {
	return instruments{
		submitted: p.Counter(metrics.PoolSubmitted, metrics.WithDescription("Jobs accepted by the pool.")),
		rejected:  p.Counter(metrics.PoolRejected, metrics.WithDescription("Jobs rejected on saturation.")),
		discarded: p.Counter(metrics.PoolDiscarded, metrics.WithDescription("Jobs dropped on saturation.")),
		panics:    p.Counter(metrics.PoolPanics, metrics.WithDescription("Jobs that panicked.")),
		queued:    p.UpDownCounter(metrics.PoolQueueDepth, metrics.WithDescription("Jobs waiting in the queue.")),
		workers:   p.UpDownCounter(metrics.PoolWorkers, metrics.WithDescription("Live worker goroutines.")),
		duration: p.Histogram(
			metrics.PoolJobDuration,
			metrics.WithDescription("Job execution time."),
			metrics.WithUnit("seconds"),
		),
	}
}

// New creates a Pool and starts its core workers.
func New(opts ...Option) (*Pool, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		queue:   make(chan func(), cfg.QueueCapacity),
		log:     cfg.Logger.With(slog.String("pool", cfg.Name)),
		core:    cfg.CoreSize,
		max:     cfg.MaxSize,
		resized: make(chan struct{}),
		quit:    make(chan struct{}),
		sealed:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		inst:    newInstruments(cfg.Metrics),
	}

	p.sizeMu.Lock()
	for p.live < p.core {
		p.startWorker(nil)
	}
	p.sizeMu.Unlock()

	p.log.Debug("pool started",
		slog.Int("core", cfg.CoreSize),
		slog.Int("max", cfg.MaxSize),
		slog.Int("queue_capacity", cfg.QueueCapacity),
		slog.String("policy", cfg.Policy.String()),
	)
	return p, nil
}

// Submit hands job to the pool.
//
// The job is queued when the queue has room. When it does not and fewer than the maximum
// number of workers are alive, a new worker starts with job as its first task. Otherwise the
// saturation policy applies: Reject returns ErrSaturated, Block waits for room (bounded by ctx
// and Close), Discard drops the job and returns nil.
//
// Submit returns ErrClosed after Close.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return ErrNilJob
	}

	p.gate.RLock()
	defer p.gate.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- job:
		p.accepted(true)
		p.ensureWorker()
		return nil
	default:
	}

	if p.startBurst(job) {
		p.accepted(false)
		return nil
	}

	switch p.cfg.Policy {
	case Block:
		select {
		case p.queue <- job:
			p.accepted(true)
			p.ensureWorker()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-p.quit:
			return ErrClosed
		}

	case Discard:
		p.discarded.Add(1)
		p.inst.discarded.Add(1)
		p.log.Warn("pool saturated, job discarded", slog.Int("queued", len(p.queue)))
		return nil

	default:
		p.rejected.Add(1)
		p.inst.rejected.Add(1)
		p.log.Warn("pool saturated, job rejected", slog.Int("queued", len(p.queue)))
		return errorc.With(
			ErrSaturated,
			errorc.String("pool", p.cfg.Name),
			errorc.String("queue_capacity", strconv.Itoa(cap(p.queue))),
		)
	}
}

func (p *Pool) accepted(queued bool) {
	p.submitted.Add(1)
	p.inst.submitted.Add(1)
	if queued {
		p.inst.queued.Add(1)
	}
}

// startBurst starts a worker above core size running job first, if the maximum allows it.
func (p *Pool) startBurst(job func()) bool {
	p.sizeMu.Lock()
	defer p.sizeMu.Unlock()
	if p.live >= p.max {
		return false
	}
	p.startWorker(job)
	return true
}

// ensureWorker starts a worker when a job was queued while none is alive (core size 0).
func (p *Pool) ensureWorker() {
	p.sizeMu.Lock()
	defer p.sizeMu.Unlock()
	if p.live == 0 && p.max > 0 {
		p.startWorker(nil)
	}
}

// Resize changes the core and maximum number of workers. Requires 0 <= core <= max and max >= 1.
//
// Growing the core starts workers immediately. Shrinking is lazy: workers above the new max
// finish their current job and retire before taking another, workers above the new core retire
// after KeepAlive of idleness. Jobs already queued or running are not affected.
func (p *Pool) Resize(coreSize, maxSize int) error {
	if err := validateSize(coreSize, maxSize); err != nil {
		return err
	}

	p.gate.RLock()
	defer p.gate.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.sizeMu.Lock()
	p.core, p.max = coreSize, maxSize
	for p.live < p.core {
		p.startWorker(nil)
	}
	close(p.resized)
	p.resized = make(chan struct{})
	live := p.live
	p.sizeMu.Unlock()

	p.log.Info("pool resized", slog.Int("core", coreSize), slog.Int("max", maxSize), slog.Int("live", live))
	return nil
}

// Stats is a point-in-time view of a Pool.
type Stats struct {
	Name          string
	Core          int
	Max           int
	Workers       int
	Active        int
	Queued        int
	QueueCapacity int
	Policy        SaturationPolicy
	Submitted     int64
	Rejected      int64
	Discarded     int64
	Closed        bool
}

// Stats returns the current pool state.
func (p *Pool) Stats() Stats {
	p.sizeMu.Lock()
	core, maxSize, live := p.core, p.max, p.live
	p.sizeMu.Unlock()

	p.gate.RLock()
	closed := p.closed
	p.gate.RUnlock()

	return Stats{
		Name:          p.cfg.Name,
		Core:          core,
		Max:           maxSize,
		Workers:       live,
		Active:        int(p.active.Load()),
		Queued:        len(p.queue),
		QueueCapacity: cap(p.queue),
		Policy:        p.cfg.Policy,
		Submitted:     p.submitted.Load(),
		Rejected:      p.rejected.Load(),
		Discarded:     p.discarded.Load(),
		Closed:        closed,
	}
}
