// Package queue provides a small in-process task queue that guarantees
// FIFO execution per key. Jobs enqueued under the same key run one at a
// time, in submission order, on a dedicated goroutine; jobs under
// different keys run concurrently.
package queue

import (
	"context"
	"sync"

	"github.com/growcoach/coachd/internal/logging"
)

// Job is a unit of background work.
type Job func(ctx context.Context)

type keyWorker struct {
	jobs    []Job
	running bool
}

// Keyed dispatches jobs with per-key ordering.
type Keyed struct {
	mu      sync.Mutex
	workers map[string]*keyWorker
	wg      sync.WaitGroup
	sem     chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
}

// NewKeyed creates a keyed queue. At most maxWorkers jobs execute at once
// across all keys; 0 means unlimited. Jobs receive a context that is
// cancelled when Close is called.
func NewKeyed(maxWorkers int) *Keyed {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Keyed{
		workers: make(map[string]*keyWorker),
		ctx:     ctx,
		cancel:  cancel,
	}
	if maxWorkers > 0 {
		q.sem = make(chan struct{}, maxWorkers)
	}
	return q
}

// Enqueue schedules fn to run after all previously enqueued jobs for the
// same key have finished. It never blocks the caller. Jobs enqueued after
// Close are dropped.
func (q *Keyed) Enqueue(key string, fn Job) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		logging.Warnf("[Queue] Dropping job for key %q: queue closed", key)
		return
	}

	w, ok := q.workers[key]
	if !ok {
		w = &keyWorker{}
		q.workers[key] = w
	}
	w.jobs = append(w.jobs, fn)

	if !w.running {
		w.running = true
		q.wg.Add(1)
		go q.drain(key, w)
	}
	q.mu.Unlock()
}

// drain runs jobs for one key until its backlog is empty.
func (q *Keyed) drain(key string, w *keyWorker) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(w.jobs) == 0 {
			w.running = false
			delete(q.workers, key)
			q.mu.Unlock()
			return
		}
		fn := w.jobs[0]
		w.jobs = w.jobs[1:]
		q.mu.Unlock()

		if q.sem != nil {
			q.sem <- struct{}{}
		}
		fn(q.ctx)
		if q.sem != nil {
			<-q.sem
		}
	}
}

// Pending reports the number of jobs not yet started for a key.
func (q *Keyed) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w, ok := q.workers[key]; ok {
		return len(w.jobs)
	}
	return 0
}

// Wait blocks until every enqueued job has finished. Useful in tests and
// during shutdown to let in-flight saves complete.
func (q *Keyed) Wait() {
	q.wg.Wait()
}

// Close stops accepting jobs, drains the backlog, then cancels the job
// context.
func (q *Keyed) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	q.cancel()
}
