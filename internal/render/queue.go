package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
	"github.com/pankajydv07/ai-tutor/gateway/internal/session"
)

var (
	// ErrQueueFull is returned by Submit when every slot is taken.
	ErrQueueFull = errors.New("render queue full")
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("render queue closed")
)

// Runner executes one job.
type Runner interface {
	Run(ctx context.Context, job Job) (*session.Record, error)
}

// Queue runs jobs on a fixed pool of goroutines, detached from the request
// that submitted them.
type Queue struct {
	runner  Runner
	workers int
	jobs    chan Job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a queue holding at most size waiting jobs.
func NewQueue(runner Runner, workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	return &Queue{
		runner:  runner,
		workers: workers,
		jobs:    make(chan Job, size),
	}
}

// Start launches the workers. Jobs run under ctx, so cancelling it aborts
// in-flight worker calls.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.jobs {
		metrics.RenderQueueDepth.Dec()
		if _, err := q.runner.Run(ctx, job); err != nil {
			slog.Debug("render_job_ended", "session_id", job.SessionID, "job_id", job.ID, "error", err)
		}
	}
}

// Submit enqueues job without blocking. It assigns ID and Enqueued when unset.
func (q *Queue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now()
	}
	select {
	case q.jobs <- job:
		metrics.RenderQueueDepth.Inc()
		return nil
	default:
		metrics.Errors.WithLabelValues("render", "queue_full").Inc()
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued and running jobs to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}
