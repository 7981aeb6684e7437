package eventstream

import (
	"sync"

	"github.com/mrzor/alloc-tracer/internal/event"
)

// Queue is an unbounded FIFO of decoded events shared by the reader
// goroutine and the consumer.
type Queue struct {
	mu     sync.Mutex
	events []event.Event
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends e. It returns false once the queue has been closed.
func (q *Queue) Push(e event.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	return true
}

// TryDrain removes and returns every queued event, oldest first, without
// blocking. It returns nil when the queue is empty.
func (q *Queue) TryDrain() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = nil
	return out
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops the queue from accepting events. Queued events can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
