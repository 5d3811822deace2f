// Package persist runs fire-and-forget persistence work off the request
// path. Jobs are consumed by a fixed pool of workers from a bounded queue:
// once accepted, a job runs at least once even though the handler that
// scheduled it has already returned. Work still queued when the process is
// torn down is lost; Drain bounds that gap at shutdown.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// jobTimeout bounds a single background job. Jobs run on a detached context
// because the originating request context is gone by the time they execute.
const jobTimeout = 30 * time.Second

// Job is one named unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue is a bounded work queue consumed by persistence workers.
type Queue struct {
	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts workers goroutines consuming a queue of the given size.
func NewQueue(workers, size int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	q := &Queue{jobs: make(chan Job, size)}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		if err := job.Run(ctx); err != nil {
			// Persistence failures are logged, never propagated.
			slog.Error("background persistence failed", "job", job.Name, "error", err)
		}
		cancel()
	}
}

// Enqueue schedules a job without blocking. It returns false when the queue
// is full or already draining; the job is then dropped with a warning.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		slog.Warn("persistence queue closed, dropping job", "job", name)
		return false
	}
	select {
	case q.jobs <- Job{Name: name, Run: run}:
		return true
	default:
		slog.Warn("persistence queue full, dropping job", "job", name)
		return false
	}
}

// Drain stops intake and waits for queued and in-flight jobs to finish,
// bounded by ctx. Called once at shutdown.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("persistence queue drain timed out", "error", ctx.Err())
	}
}
