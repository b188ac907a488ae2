package core

import (
	"context"
	"errors"
	"sync"
)

// ErrFutureFaulted marks errors carried by a faulted future whose cause was nil
var ErrFutureFaulted = errors.New("future faulted")

// Future is a single-assignment result handed from the render thread to a waiting producer
// Exactly one of Resolve or Fault takes effect; later calls are ignored
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	completed bool
	callbacks []func(T, error)
}

// NewFuture creates a pending future
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve completes the future with a value, returns false if already complete
func (f *Future[T]) Resolve(v T) bool {
	return f.complete(v, nil)
}

// Fault completes the future with an error, returns false if already complete
func (f *Future[T]) Fault(err error) bool {
	if err == nil {
		err = ErrFutureFaulted
	}
	var zero T
	return f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.value = v
	f.err = err
	f.completed = true
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	// Callbacks run on the completing goroutine, outside the lock
	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Done returns a channel closed on completion
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until completion or context cancellation
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryResult returns the result without blocking, ok is false while pending
func (f *Future[T]) TryResult() (value T, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// OnComplete registers fn to run once the future completes
// Runs immediately on the caller if already complete, otherwise on the completing goroutine
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if f.completed {
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}
