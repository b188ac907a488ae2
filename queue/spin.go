package queue

import "sync/atomic"

// node is a link in the intrusive MPSC list
// The consumer-owned head node is always a stub whose value is already taken
type node[T any] struct {
	next  atomic.Pointer[node[T]]
	value T
}

// SpinQueue is an unbounded lock-free MPSC FIFO
// Thread-Safety:
//   - Enqueue: wait-free swap on tail, multiple producers OK
//   - TryDequeue/TryPeek: single consumer only (render loop)
//   - A producer between tail swap and next link leaves a gap; the consumer
//     sees the queue as empty at that point and picks the rest up on the next poll
//
// Growth: unbounded, backpressure is the caller's concern
type SpinQueue[T any] struct {
	head  *node[T]                // Consumer-only, stub node
	tail  atomic.Pointer[node[T]] // Last linked node, producers swap
	count atomic.Int64            // Approximate length
}

// NewSpinQueue creates an empty queue
func NewSpinQueue[T any]() *SpinQueue[T] {
	stub := &node[T]{}
	q := &SpinQueue[T]{head: stub}
	q.tail.Store(stub)
	return q
}

// Enqueue appends item at the tail. Never blocks, never fails. O(1)
func (q *SpinQueue[T]) Enqueue(item T) {
	n := &node[T]{value: item}
	// Count first so Len never dips below zero when the consumer races ahead
	q.count.Add(1)
	prev := q.tail.Swap(n)
	prev.next.Store(n) // Publish: MUST be after swap
}

// TryDequeue removes and returns the head item, false when empty
// Consumer-only
func (q *SpinQueue[T]) TryDequeue() (T, bool) {
	var zero T
	next := q.head.next.Load()
	if next == nil {
		return zero, false
	}

	item := next.value
	next.value = zero // Next becomes the new stub, drop the reference
	q.head = next
	q.count.Add(-1)
	return item, true
}

// TryPeek returns the item the next TryDequeue would remove without removing it
// Consumer-only
func (q *SpinQueue[T]) TryPeek() (T, bool) {
	next := q.head.next.Load()
	if next == nil {
		var zero T
		return zero, false
	}
	return next.value, true
}

// Len returns approximate pending count
// May over-report while a producer is mid-link; never negative
func (q *SpinQueue[T]) Len() int {
	n := q.count.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// IsEmpty reports whether the consumer currently sees no linked items
// Consumer-only
func (q *SpinQueue[T]) IsEmpty() bool {
	return q.head.next.Load() == nil
}

// Drain dequeues up to max items into fn and returns the count, max <= 0 drains until empty
// Consumer-only
func (q *SpinQueue[T]) Drain(max int, fn func(T)) int {
	count := 0
	for max <= 0 || count < max {
		item, ok := q.TryDequeue()
		if !ok {
			break
		}
		fn(item)
		count++
	}
	return count
}
