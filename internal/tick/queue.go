// Package tick marshals callbacks from background goroutines onto the
// host's update loop.
package tick

import "sync"

// Queue collects callbacks posted from any goroutine. They run only when the
// owning loop calls Drain.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	notify  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Post schedules fn for the next Drain.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Ready is signalled after a Post. Loops without a fixed tick can wait on it
// before calling Drain.
func (q *Queue) Ready() <-chan struct{} {
	return q.notify
}

// Drain runs every pending callback on the calling goroutine, in post order,
// and returns how many ran. Callbacks posted during Drain run on the next call.
func (q *Queue) Drain() int {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return len(pending)
}

// Len returns the number of pending callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
