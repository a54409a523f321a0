// Package workerpool runs jobs on a fixed set of goroutines fed by a bounded
// queue. The download task uses a pool of one so at most one pipeline runs
// in the background at a time.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/openra-mobius/mobius-content/internal/logging"
)

var log = logging.L("workerpool")

// Job is a unit of work. Its ctx is cancelled by Shutdown.
type Job func(ctx context.Context)

// Pool is a bounded goroutine pool.
type Pool struct {
	jobs    chan Job
	pending sync.WaitGroup

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts workers goroutines reading from a queue holding up to depth
// jobs. Both are at least one.
func New(workers, depth int) *Pool {
	workers = max(workers, 1)
	depth = max(depth, 1)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{jobs: make(chan Job, depth), ctx: ctx, cancel: cancel}
	for range workers {
		go p.work()
	}
	log.Debug("worker pool started", "workers", workers, "depth", depth)
	return p
}

// Context is the context handed to jobs.
func (p *Pool) Context() context.Context { return p.ctx }

// Submit queues job without blocking. It reports false once the pool is
// draining or while the queue is full.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	p.pending.Add(1)
	select {
	case p.jobs <- job:
		return true
	default:
		p.pending.Done()
		log.Warn("worker pool queue full, job rejected")
		return false
	}
}

// Drain stops intake and waits for queued and running jobs. It returns
// ctx.Err() if ctx ends first; the remaining jobs still run to completion in
// the background.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Warn("worker pool drain timed out")
		return ctx.Err()
	}
}

// Shutdown drains the pool, then cancels the job context.
func (p *Pool) Shutdown(ctx context.Context) error {
	err := p.Drain(ctx)
	p.cancel()
	return err
}

func (p *Pool) work() {
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	job(p.ctx)
}
