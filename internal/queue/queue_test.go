package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFIFOPerKey(t *testing.T) {
	q := NewKeyed(0)
	defer q.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		q.Enqueue("session", func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	q.Wait()

	if len(order) != 50 {
		t.Fatalf("ran %d jobs, want 50", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestKeysRunConcurrently(t *testing.T) {
	q := NewKeyed(0)
	defer q.Close()

	release := make(chan struct{})
	done := make(chan struct{})
	q.Enqueue("a", func(ctx context.Context) { <-release })
	q.Enqueue("b", func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job on key b blocked behind key a")
	}
	close(release)
}

func TestWorkerBound(t *testing.T) {
	q := NewKeyed(1)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	ran := make(chan struct{})
	q.Enqueue("a", func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started
	q.Enqueue("b", func(ctx context.Context) { close(ran) })

	select {
	case <-ran:
		t.Fatal("second job ran while the only worker slot was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("second job never ran after the slot freed")
	}
}

func TestPendingCountsBacklog(t *testing.T) {
	q := NewKeyed(0)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue("k", func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started
	q.Enqueue("k", func(ctx context.Context) {})
	q.Enqueue("k", func(ctx context.Context) {})

	if got := q.Pending("k"); got != 2 {
		t.Fatalf("Pending = %d, want 2", got)
	}
	close(release)
}

func TestCloseDrainsBacklog(t *testing.T) {
	q := NewKeyed(0)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		q.Enqueue("k", func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	q.Close()

	if ran != 10 {
		t.Fatalf("Close returned with %d of 10 jobs run", ran)
	}
}

func TestEnqueueAfterCloseDropped(t *testing.T) {
	q := NewKeyed(0)
	q.Close()

	ran := make(chan struct{})
	q.Enqueue("k", func(ctx context.Context) { close(ran) })

	select {
	case <-ran:
		t.Fatal("job ran after Close")
	case <-time.After(50 * time.Millisecond):
	}
	if got := q.Pending("k"); got != 0 {
		t.Fatalf("Pending = %d after Close, want 0", got)
	}
}
