package pool

import (
	"fmt"
	"log/slog"
	"time"
)

// startWorker launches a worker goroutine. Caller holds sizeMu.
func (p *Pool) startWorker(first func()) {
	p.live++
	p.workers.Add(1)
	p.inst.workers.Add(1)
	go p.work(first)
}

// work is the worker loop. A worker takes jobs from the queue until it retires or the pool closes.
func (p *Pool) work(first func()) {
	defer p.workers.Done()
	defer p.inst.workers.Add(-1)

	if first != nil {
		p.run(first)
		if p.retire(false) {
			return
		}
	}

	for {
		// resized is read under the same lock Resize uses to change the sizes, so a shrink is
		// either seen here or signalled through the channel.
		p.sizeMu.Lock()
		if p.live > p.max {
			p.live--
			p.sizeMu.Unlock()
			return
		}
		resized := p.resized
		surplus := p.live > p.core
		p.sizeMu.Unlock()

		var idle <-chan time.Time
		var timer *time.Timer
		if surplus {
			timer = time.NewTimer(p.cfg.KeepAlive)
			idle = timer.C
		}

		select {
		case job := <-p.queue:
			stopTimer(timer)
			p.inst.queued.Add(-1)
			p.run(job)
			if p.retire(false) {
				return
			}

		case <-resized:
			// surplus workers keep their keep-alive; only a lower max retires them now
			stopTimer(timer)
			if p.retire(false) {
				return
			}

		case <-idle:
			if p.retire(true) {
				return
			}

		case <-p.quit:
			stopTimer(timer)
			p.drain()
			return
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// retire reports whether the calling worker should exit, and if so removes it from the live count.
// Workers above max always retire; when idle, workers above core retire if the queue is empty.
func (p *Pool) retire(idle bool) bool {
	p.sizeMu.Lock()
	defer p.sizeMu.Unlock()
	if p.live > p.max || (idle && p.live > p.core && len(p.queue) == 0) {
		p.live--
		return true
	}
	return false
}

// drain runs whatever is left in the queue once Close has sealed it, then retires the worker.
func (p *Pool) drain() {
	<-p.sealed
	for {
		select {
		case job := <-p.queue:
			p.inst.queued.Add(-1)
			p.run(job)
		default:
			p.sizeMu.Lock()
			p.live--
			p.sizeMu.Unlock()
			return
		}
	}
}

// run executes one job, recovering a panic so the worker survives it.
func (p *Pool) run(job func()) {
	if p.cfg.Limiter != nil {
		// An error means the pool is closing; run the job anyway so its owner hears back.
		_ = p.cfg.Limiter.Wait(p.ctx)
	}

	p.active.Add(1)
	start := time.Now()
	defer func() {
		p.inst.duration.Record(time.Since(start).Seconds())
		p.active.Add(-1)
		if r := recover(); r != nil {
			p.inst.panics.Add(1)
			p.log.Error("job panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()

	job()
}
