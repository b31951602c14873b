package pool

import "log/slog"

// Close shuts the pool down and waits for its workers to exit.
//
// The sequence runs exactly once:
// 1) close quit, waking workers and unblocking Submit calls waiting under the Block policy
// 2) take the gate for writing, so no Submit or Resize is in progress, and mark the pool closed
// 3) close sealed: from here nothing can enter the queue
// 4) workers drain the queue, running every job that was accepted, and exit
// 5) wait for all workers, then cancel the rate limiter context
//
// Submit and Resize return ErrClosed afterwards. Close is idempotent and safe for concurrent use.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.quit)

		p.gate.Lock()
		p.closed = true
		p.gate.Unlock()

		close(p.sealed)
		p.workers.Wait()
		p.cancel()

		p.log.Info("pool closed", slog.Int64("submitted", p.submitted.Load()))
	})
	return nil
}
