package query

import (
	"sync"

	"github.com/roach88/ecowatch/internal/store"
)

// eventType distinguishes between event kinds.
type eventType int

const (
	eventSetQuery eventType = iota + 1
	eventSetSort
	eventDebounced
	eventLookup
	eventSubscribe
	eventUnsubscribe
	eventGraceExpired
)

// event is a single input to the pipeline loop. Only the fields relevant to
// typ are set.
type event struct {
	typ  eventType
	text string
	sort SortMode
	gen  uint64
	snap store.ListSnapshot
	obs  *observer
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that Enqueue never blocks: timers, lookup
// forwarders and public setters all enqueue from their own goroutines while
// the Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]
	// Nil out the slot so the snapshot and observer can be collected.
	q.events[0] = event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further events and returns whatever was still queued.
func (q *eventQueue) Close() []event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	rest := q.events
	q.events = nil
	return rest
}
