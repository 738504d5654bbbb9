package sequence

import "sync/atomic"

type spscNode[T any] struct {
	value T
	next  atomic.Pointer[spscNode[T]]
}

// SPSCQueue is an unbounded lock-free queue for exactly one producer
// goroutine and one consumer goroutine at a time. Enqueue never blocks.
//
// The single-producer rule is not checked; concurrent Enqueue calls corrupt
// the tail.
type SPSCQueue[T any] struct {
	head *spscNode[T] // consumer side, always a consumed stub
	_    [56]byte
	tail *spscNode[T] // producer side
	size atomic.Int64
}

// NewSPSCQueue returns an empty queue.
func NewSPSCQueue[T any]() *SPSCQueue[T] {
	stub := &spscNode[T]{}
	return &SPSCQueue[T]{head: stub, tail: stub}
}

// Enqueue appends value. Producer side only.
func (q *SPSCQueue[T]) Enqueue(value T) {
	n := &spscNode[T]{value: value}
	q.tail.next.Store(n)
	q.tail = n
	q.size.Add(1)
}

// Dequeue removes the oldest value. Consumer side only.
func (q *SPSCQueue[T]) Dequeue() (T, bool) {
	next := q.head.next.Load()
	if next == nil {
		var zero T
		return zero, false
	}
	value := next.value
	var zero T
	next.value = zero
	q.head = next
	q.size.Add(-1)
	return value, true
}

// Drain dequeues until the queue is observed empty, calling fn for each
// value in FIFO order. Values enqueued concurrently may or may not be seen.
func (q *SPSCQueue[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := q.Dequeue()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

// Len is an approximate count, safe from either side.
func (q *SPSCQueue[T]) Len() int {
	return int(q.size.Load())
}

// IsEmpty reports whether the consumer would currently see no value.
func (q *SPSCQueue[T]) IsEmpty() bool {
	return q.head.next.Load() == nil
}
