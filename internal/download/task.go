package download

import (
	"context"
	"errors"
	"sync"

	"github.com/openra-mobius/mobius-content/internal/tick"
	"github.com/openra-mobius/mobius-content/internal/workerpool"
)

// Task runs one download in the background. Events and the success callback
// are posted to a tick.Queue and only run when the host drains it.
type Task struct {
	manager   *Manager
	dl        *Download
	queue     *tick.Queue
	pool      *workerpool.Pool
	onEvent   func(Event)
	onSuccess func(path string)

	mu        sync.Mutex
	state     State
	err       error
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// NewTask prepares a task. Either callback may be nil.
func NewTask(m *Manager, dl *Download, q *tick.Queue, onEvent func(Event), onSuccess func(path string)) *Task {
	return &Task{
		manager:   m,
		dl:        dl,
		queue:     q,
		pool:      workerpool.New(1, 1),
		onEvent:   onEvent,
		onSuccess: onSuccess,
		state:     StateIdle,
	}
}

// State returns the latest state reached by the background pipeline.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the terminal error, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Start launches the pipeline. It fails with ErrBusy while a previous run
// has not reached a terminal state.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateIdle && !t.state.Terminal() {
		t.mu.Unlock()
		return ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.state = StateFetchingMirrorList
	if t.dl.MirrorList == "" {
		t.state = StateDownloading
	}
	t.err = nil
	t.cancel = cancel
	t.cancelled = false
	t.done = done
	t.mu.Unlock()

	ok := t.pool.Submit(func(poolCtx context.Context) {
		defer close(done)
		defer cancel()
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()
		t.run(runCtx)
	})
	if !ok {
		cancel()
		close(done)
		t.mu.Lock()
		t.state = StateIdle
		t.mu.Unlock()
		return errors.New("download worker unavailable")
	}
	return nil
}

// Retry restarts the whole pipeline. Only allowed after a terminal state.
func (t *Task) Retry(ctx context.Context) error {
	if !t.State().Terminal() {
		return ErrBusy
	}
	return t.Start(ctx)
}

// Cancel stops the running pipeline. A cancelled task never invokes the
// success callback, even if the transfer had already finished.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	if t.cancel != nil {
		t.cancel()
	}
}

// Wait blocks until the current run finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any run and stops the background worker.
func (t *Task) Close(ctx context.Context) {
	t.Cancel()
	t.pool.Shutdown(ctx)
}

func (t *Task) run(ctx context.Context) {
	var host string
	path, err := t.manager.Run(ctx, t.dl, func(e Event) {
		if e.Progress.Host != "" {
			host = e.Progress.Host
		}
		t.setState(e.State, nil)
		t.post(e)
	})

	switch {
	case err == nil:
		t.queue.Post(func() {
			t.mu.Lock()
			cancelled := t.cancelled
			t.mu.Unlock()
			if cancelled {
				t.setState(StateCancelled, context.Canceled)
				if t.onEvent != nil {
					t.onEvent(Event{State: StateCancelled, Err: context.Canceled})
				}
				return
			}
			if t.onSuccess != nil {
				t.onSuccess(path)
			}
		})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		t.setState(StateCancelled, err)
		t.post(Event{State: StateCancelled, Err: err})
	default:
		t.setState(StateError, err)
		t.post(Event{State: StateError, Err: err, Progress: Progress{Host: host}})
	}
}

func (t *Task) setState(s State, err error) {
	t.mu.Lock()
	t.state = s
	if err != nil {
		t.err = err
	}
	t.mu.Unlock()
}

func (t *Task) post(e Event) {
	if t.onEvent == nil {
		return
	}
	t.queue.Post(func() { t.onEvent(e) })
}
