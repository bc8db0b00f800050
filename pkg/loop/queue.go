package loop

import (
	"context"
	"sync/atomic"
)

// Queue is a bounded FIFO shared between goroutines. Push blocks while the
// queue is full and Pop blocks while it is empty; both give up when ctx ends.
type Queue[T any] struct {
	ch  chan T
	gen atomic.Uint64
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Push appends v, waiting for space.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop removes the oldest item, waiting for one to arrive.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Clear discards every item queued at call time and starts a new
// generation. It returns the number of items dropped.
func (q *Queue[T]) Clear() int {
	q.gen.Add(1)
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Generation counts calls to Clear.
func (q *Queue[T]) Generation() uint64 {
	return q.gen.Load()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }
