// Package fifo implements the bounded, reference-counted packet queue
// described in spec.md §4.1: a fixed-size free list plus an ordered
// delivery queue, guarded by one mutex and one not-empty condvar as
// mandated by spec.md §5's layering rule (the fifo mutex must never be
// held across a metronom call, and vice versa).
//
// Grounded on original_source/src/xine-engine/video_out.c's
// vo_new_img_buf_queue/vo_append_to_img_buf_queue/
// vo_remove_from_img_buf_queue, generalized with Go generics since the
// video, audio, and spu packet fifos (and the frame free/display queues
// of package framepool) are all instances of the same shape.
package fifo

import (
	"context"
	"sync"
)

// FIFO is a bounded queue of *T with an associated free list. Construct
// with New, which preallocates cap elements via alloc so that the total
// element count (free + queued) never changes after construction.
type FIFO[T any] struct {
	mu   sync.Mutex
	cond sync.Cond

	free  []*T
	queue []*T

	closed bool
}

// New creates a FIFO of the given capacity. alloc is called capacity
// times to populate the free list.
func New[T any](capacity int, alloc func() *T) *FIFO[T] {
	f := &FIFO[T]{
		free: make([]*T, 0, capacity),
	}
	f.cond.L = &f.mu
	for i := 0; i < capacity; i++ {
		f.free = append(f.free, alloc())
	}
	return f
}

// Acquire returns an element from the free list, blocking while it is
// empty. The caller owns the returned element until it calls Release (if
// it abandons it before Put) or until the consumer side calls Release
// after Get.
func (f *FIFO[T]) Acquire(ctx context.Context) (*T, error) {
	return f.wait(ctx, func() (*T, bool) {
		n := len(f.free)
		if n == 0 {
			return nil, false
		}
		elem := f.free[n-1]
		f.free = f.free[:n-1]
		return elem, true
	})
}

// Put hands elem to the consumer side, preserving enqueue order, and
// wakes the waiters (consumers and Acquire callers share one condition
// variable, so all are woken and each rechecks its own condition). O(1).
func (f *FIFO[T]) Put(elem *T) {
	f.mu.Lock()
	f.queue = append(f.queue, elem)
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Get dequeues the next element in FIFO order, blocking while the queue
// is empty. O(1).
func (f *FIFO[T]) Get(ctx context.Context) (*T, error) {
	return f.wait(ctx, func() (*T, bool) {
		if len(f.queue) == 0 {
			return nil, false
		}
		elem := f.queue[0]
		f.queue = f.queue[1:]
		return elem, true
	})
}

// Release returns elem to the free list and wakes the waiters, so that a
// caller blocked in Acquire sees the freed element.
func (f *FIFO[T]) Release(elem *T) {
	f.mu.Lock()
	f.free = append(f.free, elem)
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Clear discards all queued elements, returning them directly to the
// free list. Used on flush; does not affect elements currently held by a
// consumer (those return via Release as usual).
func (f *FIFO[T]) Clear() {
	f.mu.Lock()
	f.free = append(f.free, f.queue...)
	f.queue = f.queue[:0]
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Close wakes every blocked Acquire/Get with an error so worker
// goroutines can exit during shutdown without a context deadline.
func (f *FIFO[T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Len returns the number of elements currently queued (not counting the
// free list). Used for diagnostics only.
func (f *FIFO[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

var errClosed = errClosedFIFO{}

type errClosedFIFO struct{}

func (errClosedFIFO) Error() string { return "fifo: closed" }

// wait is the shared blocking-poll implementation for Acquire and Get: it
// repeatedly attempts try() under the lock, parking on the condvar
// between attempts, until try() succeeds, ctx is cancelled, or Close is
// called.
func (f *FIFO[T]) wait(ctx context.Context, try func() (*T, bool)) (*T, error) {
	if ctx != nil && ctx.Done() != nil {
		// cond.Wait only wakes on Signal/Broadcast; bridge ctx
		// cancellation into a Broadcast so a cancelled caller doesn't
		// block forever behind an unrelated Put/Release.
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				f.cond.Broadcast()
			case <-stop:
			}
		}()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if elem, ok := try(); ok {
			return elem, nil
		}
		if f.closed {
			return nil, errClosed
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		f.cond.Wait()
	}
}
