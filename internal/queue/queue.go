// Package queue implements the bounded command queue that sits between
// producers and the relay worker.
//
// Capacity is backpressure, not a limit: a producer that finds the queue
// full waits until space frees or the queue is closed, and then appends
// anyway. Nothing handed to Enqueue is ever dropped.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/pikarelay/internal/domain"
)

// Defaults used when New is given non-positive values.
const (
	DefaultCapacity     = 100000
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrDrained is returned by Dequeue once the queue is closed and empty.
var ErrDrained = errors.New("queue: closed and drained")

// Queue is a FIFO of commands shared by any number of producers and one consumer.
//
// Every wait is bounded by the poll interval and re-checks the exit flag, so
// a waiter never depends solely on a notification to make progress.
type Queue struct {
	mu       sync.Mutex
	items    []domain.Command
	capacity int
	poll     time.Duration

	// elements counts commands handed to the consumer minus those requeued.
	elements int64

	// changed is closed and replaced whenever items or the exit flag change
	// while someone is waiting on it.
	changed chan struct{}
	waiting int

	closed atomic.Bool
}

// New creates an empty queue.
func New(capacity int, poll time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Queue{
		capacity: capacity,
		poll:     poll,
		changed:  make(chan struct{}),
	}
}

// Enqueue appends cmd at the tail.
// While the queue is at capacity and not closed the caller blocks. The only
// way to leave without appending is ctx ending first, in which case ctx.Err()
// is returned.
func (q *Queue) Enqueue(ctx context.Context, cmd domain.Command) error {
	q.mu.Lock()
	for len(q.items) >= q.capacity && !q.closed.Load() {
		if err := q.waitLocked(ctx); err != nil {
			q.mu.Unlock()
			return err
		}
	}
	q.items = append(q.items, cmd)
	q.broadcastLocked()
	q.mu.Unlock()
	return nil
}

// Requeue puts back a command whose send failed. It goes to the tail, not
// to its old position, and the call never blocks, so the queue may hold one
// more than its capacity for a while. Only the consumer calls Requeue.
func (q *Queue) Requeue(cmd domain.Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.elements--
	q.broadcastLocked()
	q.mu.Unlock()
}

// Dequeue removes and returns the head command, blocking while the queue is
// empty and open. It returns ErrDrained when the queue is empty and closed,
// or ctx.Err() if ctx ends first.
func (q *Queue) Dequeue(ctx context.Context) (domain.Command, error) {
	q.mu.Lock()
	for len(q.items) == 0 {
		if q.closed.Load() {
			q.mu.Unlock()
			return domain.Command{}, ErrDrained
		}
		if err := q.waitLocked(ctx); err != nil {
			q.mu.Unlock()
			return domain.Command{}, err
		}
	}
	cmd := q.items[0]
	q.items[0] = domain.Command{}
	q.items = q.items[1:]
	q.elements++
	q.broadcastLocked()
	q.mu.Unlock()
	return cmd, nil
}

// Close sets the exit flag and wakes every waiter. The flag is never cleared.
// Queued commands stay queued; Dequeue keeps returning them until empty.
func (q *Queue) Close() {
	if q.closed.Swap(true) {
		return
	}
	q.mu.Lock()
	q.broadcastLocked()
	q.mu.Unlock()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the backpressure threshold.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Elements returns the number of commands dequeued for sending and not requeued.
func (q *Queue) Elements() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.elements
}

// waitLocked releases the lock for at most one poll interval or until the
// next change, then takes it back. q.mu must be held.
func (q *Queue) waitLocked(ctx context.Context) error {
	ch := q.changed
	q.waiting++
	q.mu.Unlock()

	t := time.NewTimer(q.poll)
	var err error
	select {
	case <-ch:
	case <-t.C:
	case <-ctx.Done():
		err = ctx.Err()
	}
	t.Stop()

	q.mu.Lock()
	q.waiting--
	return err
}

func (q *Queue) broadcastLocked() {
	if q.waiting == 0 {
		return
	}
	close(q.changed)
	q.changed = make(chan struct{})
}
