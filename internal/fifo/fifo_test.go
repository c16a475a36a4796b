package fifo

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFIFOPutGetOrder(t *testing.T) {
	t.Parallel()
	f := New(4, func() *int { v := 0; return &v })

	ctx := context.Background()
	a, err := f.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	*a = 1
	b, err := f.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	*b = 2

	f.Put(a)
	f.Put(b)

	got1, err := f.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got2, err := f.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got1 != 1 || *got2 != 2 {
		t.Fatalf("order: got %d, %d want 1, 2", *got1, *got2)
	}
}

func TestFIFOConservation(t *testing.T) {
	t.Parallel()
	const capacity = 8
	f := New(capacity, func() *int { v := 0; return &v })

	ctx := context.Background()
	acquired := make([]*int, 0, capacity)
	for i := 0; i < capacity; i++ {
		e, err := f.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		acquired = append(acquired, e)
	}

	for _, e := range acquired {
		f.Put(e)
	}
	for range acquired {
		e, err := f.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		f.Release(e)
	}

	f.mu.Lock()
	total := len(f.free) + len(f.queue)
	f.mu.Unlock()
	if total != capacity {
		t.Fatalf("conservation violated: free+queue = %d, want %d", total, capacity)
	}
}

func TestFIFOAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()
	f := New(1, func() *int { v := 0; return &v })
	ctx := context.Background()

	first, err := f.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	unblocked := make(chan struct{})
	go func() {
		e, err := f.Acquire(ctx)
		if err != nil {
			t.Errorf("second Acquire: %v", err)
		}
		_ = e
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("Acquire returned before the only element was released")
	case <-time.After(20 * time.Millisecond):
	}

	f.Release(first)

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("Acquire never unblocked after Release")
	}
}

func TestFIFOClearReturnsQueuedToFree(t *testing.T) {
	t.Parallel()
	f := New(3, func() *int { v := 0; return &v })
	ctx := context.Background()

	var acquired []*int
	for i := 0; i < 3; i++ {
		e, _ := f.Acquire(ctx)
		acquired = append(acquired, e)
		f.Put(e)
	}

	if f.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", f.Len())
	}

	f.Clear()

	if f.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", f.Len())
	}

	// All three must be re-acquirable now.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Acquire(ctx); err != nil {
				t.Errorf("Acquire after Clear: %v", err)
			}
		}()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Clear did not return queued elements to the free list")
	}
}

func TestFIFOGetUnblocksOnContextCancel(t *testing.T) {
	t.Parallel()
	f := New(1, func() *int { v := 0; return &v })
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := f.Get(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("Get returned nil error after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock on context cancellation")
	}
}
